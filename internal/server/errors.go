package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/matching"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrAnalysisNotFound indicates no analysis exists yet for the pair.
type ErrAnalysisNotFound struct {
	JobID       uuid.UUID
	CandidateID uuid.UUID
}

func (e *ErrAnalysisNotFound) Error() string {
	return fmt.Sprintf("analysis not found for job %s and candidate %s", e.JobID, e.CandidateID)
}

// ErrCallNotFound indicates the scheduled call does not exist or is not visible.
type ErrCallNotFound struct {
	CallID uuid.UUID
}

func (e *ErrCallNotFound) Error() string {
	return fmt.Sprintf("scheduled call not found: %s", e.CallID)
}

// Category classifies err using the matching taxonomy, extended with the
// request-level errors defined here.
func Category(err error) matching.Category {
	var (
		validation *ErrValidation
		analysisNF *ErrAnalysisNotFound
		callNF     *ErrCallNotFound
	)
	switch {
	case errors.As(err, &validation):
		return matching.CategoryInvalid
	case errors.As(err, &analysisNF), errors.As(err, &callNF):
		return matching.CategoryNotFound
	default:
		return matching.CategoryOf(err)
	}
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch Category(err) {
	case "":
		return http.StatusOK
	case matching.CategoryNotFound:
		return http.StatusNotFound
	case matching.CategoryInvalid:
		return http.StatusBadRequest
	case matching.CategoryUpstreamUnavailable:
		return http.StatusBadGateway
	case matching.CategoryMalformedResponse:
		return http.StatusBadGateway
	case matching.CategoryIntegrityViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text shown to clients. Causes from external
// services stay in the logs.
func publicMessage(err error) string {
	var resumeNF *matching.ResumeNotFoundError
	if errors.As(err, &resumeNF) {
		return fmt.Sprintf("resume not found for candidate %s", resumeNF.CandidateID)
	}
	switch Category(err) {
	case matching.CategoryNotFound, matching.CategoryInvalid:
		return err.Error()
	case matching.CategoryUpstreamUnavailable:
		return "a downstream service is unavailable, try again later"
	case matching.CategoryMalformedResponse:
		return "the analysis service returned an unusable response"
	case matching.CategoryIntegrityViolation:
		return "stored data is inconsistent for this request"
	default:
		return "internal server error"
	}
}
