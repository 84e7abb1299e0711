package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema describes the JSON object a prompt asks the model to return.
type ExtractionSchema struct {
	Name        string
	Description string // system preamble describing the task
	Fields      []SchemaField
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string
	Type        string // type hint shown to the model, e.g. `[{"skill": "string"}]`
	Description string
	Required    bool
}

// BuildExtractionPrompt renders schema followed by the context sections in order.
func BuildExtractionPrompt(schema ExtractionSchema, sections ...PromptSection) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  %q: %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")

	for _, s := range sections {
		sb.WriteString("\n")
		sb.WriteString(s.Title)
		sb.WriteString(":\n\"\"\"\n")
		sb.WriteString(strings.TrimSpace(s.Body))
		sb.WriteString("\n\"\"\"\n")
	}

	return sb.String()
}

// PromptSection is a titled block of context appended to a prompt.
type PromptSection struct {
	Title string
	Body  string
}
