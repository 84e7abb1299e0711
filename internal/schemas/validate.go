// Package schemas validates structured model output against embedded JSON Schemas.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed analysis_report.schema.json
var analysisReportSchema string

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

var (
	reportOnce   sync.Once
	reportSchema *gojsonschema.Schema
	reportErr    error
)

func compiledReportSchema() (*gojsonschema.Schema, error) {
	reportOnce.Do(func() {
		reportSchema, reportErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(analysisReportSchema))
		if reportErr != nil {
			reportErr = &SchemaLoadError{Name: "analysis_report", Cause: reportErr}
		}
	})
	return reportSchema, reportErr
}

// ValidateAnalysisReport checks a model-produced match report.
// A document that is not valid JSON is reported as a *ValidationError at the root.
func ValidateAnalysisReport(jsonContent string) error {
	schema, err := compiledReportSchema()
	if err != nil {
		return err
	}
	return validate(schema, jsonContent)
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaContent))
	if err != nil {
		return &SchemaLoadError{Name: "(string schema)", Cause: err}
	}
	return validate(schema, jsonContent)
}

func validate(schema *gojsonschema.Schema, jsonContent string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		return &ValidationError{Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
