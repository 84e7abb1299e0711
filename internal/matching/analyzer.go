// Package matching ranks candidates against jobs: score arithmetic, the
// idempotent per-pair analyzer and the paginating ranker that fills gaps
// on demand.
package matching

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/llm"
	"github.com/jonathan/talent-match/internal/resume"
	"github.com/jonathan/talent-match/internal/types"
	"go.uber.org/zap"
)

// failureWriteTimeout bounds the write that marks an analysis failed after
// the request context is gone.
const failureWriteTimeout = 10 * time.Second

// AnalysisStore is the persistence the analyzer needs.
type AnalysisStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (*db.Job, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (*db.Candidate, error)
	GetAnalysis(ctx context.Context, jobID, candidateID uuid.UUID) (*db.Analysis, error)
	ClaimAnalysis(ctx context.Context, jobID, candidateID uuid.UUID) (*db.Analysis, error)
	ReclaimAnalysis(ctx context.Context, id uuid.UUID, staleBefore time.Time) (*db.Analysis, error)
	CompleteAnalysis(ctx context.Context, id uuid.UUID, data *types.AnalysisData, rank int) (*db.Analysis, error)
	FailAnalysis(ctx context.Context, id uuid.UUID, message string) error
	CountHigherScores(ctx context.Context, jobID uuid.UUID, score float64, excludeID uuid.UUID) (int, error)
}

// ResumeResolver turns a stored resume reference into a fetchable URL.
type ResumeResolver interface {
	FetchableURL(ctx context.Context, ref string) (string, error)
}

// ResumeFetcher downloads a resume.
type ResumeFetcher interface {
	Fetch(ctx context.Context, url string) (*resume.Document, error)
}

// DocumentModel is the language model call used to assess a resume.
type DocumentModel interface {
	GenerateWithDocument(ctx context.Context, prompt string, doc llm.Document, tier llm.ModelTier) (string, error)
}

// Analyzer performs at most one expensive analysis per (job, candidate) pair.
type Analyzer struct {
	store      AnalysisStore
	resolver   ResumeResolver
	fetcher    ResumeFetcher
	model      DocumentModel
	logger     *zap.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// NewAnalyzer creates an Analyzer. Pending records untouched for longer than
// staleAfter are considered abandoned and may be reclaimed.
func NewAnalyzer(store AnalysisStore, resolver ResumeResolver, fetcher ResumeFetcher, model DocumentModel, staleAfter time.Duration, logger *zap.Logger) *Analyzer {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &Analyzer{
		store:      store,
		resolver:   resolver,
		fetcher:    fetcher,
		model:      model,
		logger:     logger,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Analyze returns the analysis for the pair, running it if no usable record exists.
func (a *Analyzer) Analyze(ctx context.Context, jobID, candidateID uuid.UUID) (*db.Analysis, error) {
	job, err := a.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, &ErrJobNotFound{JobID: jobID}
	}
	return a.AnalyzeForJob(ctx, job, candidateID)
}

// AnalyzeForJob is Analyze for a job the caller has already loaded.
func (a *Analyzer) AnalyzeForJob(ctx context.Context, job *db.Job, candidateID uuid.UUID) (*db.Analysis, error) {
	candidate, err := a.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate: %w", err)
	}
	if candidate == nil {
		return nil, &ErrCandidateNotFound{CandidateID: candidateID}
	}

	log := a.logger.With(zap.String("job_id", job.ID.String()), zap.String("candidate_id", candidateID.String()))

	claimed, current, err := a.claim(ctx, job.ID, candidateID)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		log.Debug("analysis already held", zap.String("status", current.Status))
		return current, nil
	}
	log = log.With(zap.String("analysis_id", claimed.ID.String()), zap.Int("attempt", claimed.Attempts))

	result, err := a.run(ctx, job, candidate, claimed, log)
	if err != nil {
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
		defer cancel()
		if ferr := a.store.FailAnalysis(failCtx, claimed.ID, err.Error()); ferr != nil {
			log.Error("failed to mark analysis failed", zap.Error(ferr))
		}
		log.Warn("analysis failed", zap.Error(err))
		return nil, err
	}

	log.Info("analysis complete",
		zap.Float64("match_score", result.MatchScore()),
		zap.Intp("rank", result.Rank))
	return result, nil
}

// claim returns the record this caller now owns, or nil plus the record some
// other caller holds.
func (a *Analyzer) claim(ctx context.Context, jobID, candidateID uuid.UUID) (claimed, current *db.Analysis, err error) {
	existing, err := a.store.GetAnalysis(ctx, jobID, candidateID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read analysis: %w", err)
	}

	if existing == nil {
		claimed, err = a.store.ClaimAnalysis(ctx, jobID, candidateID)
		if err != nil && !errors.Is(err, db.ErrDuplicate) {
			return nil, nil, fmt.Errorf("failed to claim analysis: %w", err)
		}
	} else {
		if !a.retryable(existing) {
			return nil, existing, nil
		}
		claimed, err = a.store.ReclaimAnalysis(ctx, existing.ID, a.now().Add(-a.staleAfter))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to reclaim analysis: %w", err)
		}
	}
	if claimed != nil {
		return claimed, nil, nil
	}

	// Lost the race; whoever won owns the pair.
	current, err = a.store.GetAnalysis(ctx, jobID, candidateID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read analysis: %w", err)
	}
	if current == nil {
		return nil, nil, fmt.Errorf("analysis for job %s candidate %s vanished after claim conflict", jobID, candidateID)
	}
	return nil, current, nil
}

func (a *Analyzer) retryable(rec *db.Analysis) bool {
	switch rec.Status {
	case db.AnalysisStatusFailed:
		return true
	case db.AnalysisStatusPending:
		return rec.UpdatedAt.Before(a.now().Add(-a.staleAfter))
	default:
		return false
	}
}

func (a *Analyzer) run(ctx context.Context, job *db.Job, candidate *db.Candidate, claimed *db.Analysis, log *zap.Logger) (*db.Analysis, error) {
	if candidate.ResumeKey == "" {
		return nil, &ResumeNotFoundError{CandidateID: candidate.ID}
	}
	url, err := a.resolver.FetchableURL(ctx, candidate.ResumeKey)
	if err != nil || url == "" {
		return nil, &ResumeNotFoundError{CandidateID: candidate.ID, Cause: err}
	}

	doc, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		var statusErr *resume.StatusError
		if errors.As(err, &statusErr) {
			if statusErr.StatusCode == http.StatusNotFound {
				return nil, &ResumeNotFoundError{CandidateID: candidate.ID, Cause: err}
			}
			return nil, &ResumeFetchError{CandidateID: candidate.ID, StatusCode: statusErr.StatusCode, Cause: err}
		}
		return nil, &ResumeFetchError{CandidateID: candidate.ID, Cause: err}
	}

	prompt := BuildAnalysisPrompt(job.Description, job.Skills)
	raw, err := a.model.GenerateWithDocument(ctx, prompt, llm.Document{
		Name:     doc.Name,
		MIMEType: doc.MIMEType,
		Data:     doc.Data,
	}, llm.TierStandard)
	if err != nil {
		return nil, &UpstreamError{Service: "llm", Cause: err}
	}

	data, err := ParseReport(raw, job.Skills)
	if err != nil {
		var malformed *MalformedAnalysisError
		if errors.As(err, &malformed) {
			log.Warn("malformed analysis response",
				zap.String("reason", malformed.Reason),
				zap.String("snippet", malformed.Snippet))
		}
		return nil, err
	}

	higher, err := a.store.CountHigherScores(ctx, job.ID, data.PercentageMatchScore, claimed.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute rank: %w", err)
	}

	completed, err := a.store.CompleteAnalysis(ctx, claimed.ID, data, higher+1)
	if err != nil {
		return nil, fmt.Errorf("failed to store analysis: %w", err)
	}
	return completed, nil
}
