package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/db"
)

// Category is the stable error code reported to API clients.
type Category string

const (
	CategoryNotFound            Category = "not_found"
	CategoryUpstreamUnavailable Category = "upstream_unavailable"
	CategoryMalformedResponse   Category = "malformed_response"
	CategoryIntegrityViolation  Category = "integrity_violation"
	CategoryInvalid             Category = "invalid"
	CategoryInternal            Category = "internal"
)

// ErrJobNotFound indicates the job does not exist or is not visible to the requester.
type ErrJobNotFound struct {
	JobID uuid.UUID
}

func (e *ErrJobNotFound) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

// ErrCandidateNotFound indicates the candidate does not exist.
type ErrCandidateNotFound struct {
	CandidateID uuid.UUID
}

func (e *ErrCandidateNotFound) Error() string {
	return fmt.Sprintf("candidate not found: %s", e.CandidateID)
}

// ErrEmbeddingNotFound indicates an entity was stored without its vector.
type ErrEmbeddingNotFound struct {
	Namespace string
	ID        string
}

func (e *ErrEmbeddingNotFound) Error() string {
	return fmt.Sprintf("embedding not found: %s/%s", e.Namespace, e.ID)
}

// ResumeNotFoundError indicates the candidate's resume reference could not be resolved.
type ResumeNotFoundError struct {
	CandidateID uuid.UUID
	Cause       error
}

func (e *ResumeNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resume not found for candidate %s: %v", e.CandidateID, e.Cause)
	}
	return fmt.Sprintf("resume not found for candidate %s", e.CandidateID)
}

func (e *ResumeNotFoundError) Unwrap() error {
	return e.Cause
}

// ResumeFetchError indicates the resume download failed.
type ResumeFetchError struct {
	CandidateID uuid.UUID
	StatusCode  int
	Cause       error
}

func (e *ResumeFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("resume fetch for candidate %s returned status %d", e.CandidateID, e.StatusCode)
	}
	return fmt.Sprintf("resume fetch for candidate %s failed: %v", e.CandidateID, e.Cause)
}

func (e *ResumeFetchError) Unwrap() error {
	return e.Cause
}

// MalformedAnalysisError indicates the model output could not be used.
// Snippet holds a truncated copy of the raw output for logs only.
type MalformedAnalysisError struct {
	Reason  string
	Snippet string
	Cause   error
}

func (e *MalformedAnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed analysis: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed analysis: %s", e.Reason)
}

func (e *MalformedAnalysisError) Unwrap() error {
	return e.Cause
}

// UpstreamError wraps a failure of an external collaborator.
type UpstreamError struct {
	Service string
	Cause   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// ErrInvalidPage indicates a bad pagination request.
var ErrInvalidPage = errors.New("invalid page request")

// CategoryOf classifies err for API responses.
func CategoryOf(err error) Category {
	var (
		jobNF     *ErrJobNotFound
		candNF    *ErrCandidateNotFound
		embNF     *ErrEmbeddingNotFound
		resumeNF  *ResumeNotFoundError
		fetchErr  *ResumeFetchError
		malformed *MalformedAnalysisError
		upstream  *UpstreamError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &jobNF), errors.As(err, &candNF), errors.As(err, &resumeNF):
		return CategoryNotFound
	case errors.As(err, &embNF):
		// A job without a vector is a data fault, not a user error.
		return CategoryIntegrityViolation
	case errors.Is(err, db.ErrDuplicate):
		return CategoryIntegrityViolation
	case errors.As(err, &malformed):
		return CategoryMalformedResponse
	case errors.As(err, &fetchErr), errors.As(err, &upstream),
		errors.Is(err, context.DeadlineExceeded):
		return CategoryUpstreamUnavailable
	case errors.Is(err, ErrInvalidPage):
		return CategoryInvalid
	default:
		return CategoryInternal
	}
}
