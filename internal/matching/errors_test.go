package matching

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/db"
	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, ""},
		{"job", &ErrJobNotFound{JobID: uuid.New()}, CategoryNotFound},
		{"wrapped candidate", fmt.Errorf("load: %w", &ErrCandidateNotFound{}), CategoryNotFound},
		{"resume", &ResumeNotFoundError{}, CategoryNotFound},
		{"embedding", &ErrEmbeddingNotFound{Namespace: db.NamespaceJobs, ID: "x"}, CategoryIntegrityViolation},
		{"duplicate", fmt.Errorf("insert: %w", db.ErrDuplicate), CategoryIntegrityViolation},
		{"malformed", &MalformedAnalysisError{Reason: "empty response"}, CategoryMalformedResponse},
		{"fetch", &ResumeFetchError{StatusCode: 503}, CategoryUpstreamUnavailable},
		{"upstream", &UpstreamError{Service: "llm", Cause: errors.New("boom")}, CategoryUpstreamUnavailable},
		{"deadline", context.DeadlineExceeded, CategoryUpstreamUnavailable},
		{"page", fmt.Errorf("%w: bad limit", ErrInvalidPage), CategoryInvalid},
		{"other", errors.New("boom"), CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	id := uuid.New()
	assert.Contains(t, (&ErrJobNotFound{JobID: id}).Error(), id.String())
	assert.Contains(t, (&ResumeFetchError{CandidateID: id, StatusCode: 502}).Error(), "502")

	cause := errors.New("signing key missing")
	err := &ResumeNotFoundError{CandidateID: id, Cause: cause}
	assert.ErrorIs(t, err, cause)
}
