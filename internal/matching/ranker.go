package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/cache"
	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/identity"
	"github.com/jonathan/talent-match/internal/types"
	"go.uber.org/zap"
)

// MaxPageLimit bounds a single page request.
const MaxPageLimit = 100

// RankerStore is the persistence the ranker reads.
type RankerStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (*db.Job, error)
	ListAnalysesByJob(ctx context.Context, jobID uuid.UUID) ([]db.Analysis, error)
	ListBookmarks(ctx context.Context, jobID uuid.UUID) ([]db.Bookmark, error)
	GetCandidatesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Candidate, error)
	AcknowledgeAnalyses(ctx context.Context, ids []uuid.UUID) error
	ListRetryableAnalyses(ctx context.Context, staleBefore time.Time, limit int) ([]db.Analysis, error)
}

// VectorStore is the similarity-search oracle.
type VectorStore interface {
	FetchEmbedding(ctx context.Context, namespace, id string) ([]float32, error)
	QueryEmbeddings(ctx context.Context, namespace string, q db.VectorQuery) ([]db.VectorMatch, error)
	CountEmbeddings(ctx context.Context, namespace string, filter map[string]string) (int, error)
}

// PairAnalyzer runs or returns the analysis for one candidate.
type PairAnalyzer interface {
	AnalyzeForJob(ctx context.Context, job *db.Job, candidateID uuid.UUID) (*db.Analysis, error)
}

// RankerOptions tunes gap filling and caching.
type RankerOptions struct {
	PoolCeiling       int
	MinBatch          int
	Concurrency       int
	AnalysisTimeout   time.Duration
	StalePendingAfter time.Duration
	JobCacheTTL       time.Duration
	EmbeddingCacheTTL time.Duration
}

// DefaultRankerOptions returns the production defaults.
func DefaultRankerOptions() RankerOptions {
	return RankerOptions{
		PoolCeiling:       50,
		MinBatch:          10,
		Concurrency:       3,
		AnalysisTimeout:   3 * time.Minute,
		StalePendingAfter: 15 * time.Minute,
		JobCacheTTL:       5 * time.Second,
		EmbeddingCacheTTL: 10 * time.Minute,
	}
}

// PageRequest asks for one page of ranked candidates.
type PageRequest struct {
	JobID    uuid.UUID
	OrgID    uuid.UUID // requester's organization; uuid.Nil skips the check
	MemberID uuid.UUID
	Start    int
	Limit    int
	// OnlyBookmarked restricts the page to candidates bookmarked by anyone.
	OnlyBookmarked bool
}

// RankedCandidate is one row of a ranked page.
type RankedCandidate struct {
	CandidateID    uuid.UUID           `json:"candidate_id"`
	Name           string              `json:"name"`
	Email          string              `json:"email,omitempty"`
	AnalysisID     uuid.UUID           `json:"analysis_id"`
	Analysis       *types.AnalysisData `json:"analysis"`
	Rank           *int                `json:"rank,omitempty"`
	NewlyAnalysed  bool                `json:"newly_analysed"`
	Bookmarked     bool                `json:"bookmarked"`
	BookmarkedByMe bool                `json:"bookmarked_by_me"`
	BookmarkedBy   []string            `json:"bookmarked_by"`
}

// Page is a ranked page plus hints for the UI.
type Page struct {
	Candidates      []RankedCandidate `json:"candidates"`
	TotalCandidates int               `json:"total_candidates"`
	LoadMoreExists  bool              `json:"load_more_exists"`
	// Acknowledge lists newly analysed records shown on this page. The
	// caller clears their flag once the response has been sent.
	Acknowledge []uuid.UUID `json:"-"`
}

// Ranker serves ranked candidate pages for a job.
type Ranker struct {
	store     RankerStore
	vectors   VectorStore
	analyzer  PairAnalyzer
	directory identity.Directory
	cache     cache.Cache
	opts      RankerOptions
	logger    *zap.Logger
	now       func() time.Time
}

// NewRanker creates a Ranker. c may be nil to disable caching.
func NewRanker(store RankerStore, vectors VectorStore, analyzer PairAnalyzer, directory identity.Directory, c cache.Cache, opts RankerOptions, logger *zap.Logger) *Ranker {
	def := DefaultRankerOptions()
	if opts.PoolCeiling <= 0 {
		opts.PoolCeiling = def.PoolCeiling
	}
	if opts.MinBatch <= 0 {
		opts.MinBatch = def.MinBatch
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.StalePendingAfter <= 0 {
		opts.StalePendingAfter = def.StalePendingAfter
	}
	return &Ranker{
		store:     store,
		vectors:   vectors,
		analyzer:  analyzer,
		directory: directory,
		cache:     c,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// RankedPage returns one page of candidates for a job, analyzing more
// candidates first when too few analyses exist to fill the page.
func (r *Ranker) RankedPage(ctx context.Context, req PageRequest) (*Page, error) {
	if req.Start < 0 || req.Limit <= 0 || req.Limit > MaxPageLimit {
		return nil, fmt.Errorf("%w: start must be >= 0 and limit in 1..%d", ErrInvalidPage, MaxPageLimit)
	}

	job, err := r.loadJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if req.OrgID != uuid.Nil && job.OrgID != req.OrgID {
		return nil, &ErrJobNotFound{JobID: req.JobID}
	}
	log := r.logger.With(zap.String("job_id", job.ID.String()))

	records, err := r.store.ListAnalysesByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	want := req.Start + req.Limit
	if usable := countUsable(records); !req.OnlyBookmarked && usable < want {
		if err := r.fillGap(ctx, job, records, want-usable, log); err != nil {
			return nil, err
		}
		records, err = r.store.ListAnalysesByJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list analyses: %w", err)
		}
	}

	vectorCount, err := r.vectors.CountEmbeddings(ctx, db.NamespaceCandidates, orgFilter(job.OrgID))
	if err != nil {
		return nil, &UpstreamError{Service: "vector store", Cause: err}
	}
	totalCandidates := min(r.opts.PoolCeiling, vectorCount)

	bookmarks, err := r.store.ListBookmarks(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	bookmarkedBy := make(map[uuid.UUID][]uuid.UUID)
	for _, b := range bookmarks {
		bookmarkedBy[b.CandidateID] = append(bookmarkedBy[b.CandidateID], b.MemberID)
	}

	displayable := sortForDisplay(records)
	if req.OnlyBookmarked {
		filtered := make([]db.Analysis, 0, len(displayable))
		for _, rec := range displayable {
			if len(bookmarkedBy[rec.CandidateID]) > 0 {
				filtered = append(filtered, rec)
			}
		}
		displayable = filtered
	}

	page := &Page{
		Candidates:      []RankedCandidate{},
		TotalCandidates: totalCandidates,
		LoadMoreExists:  want < len(displayable) || totalCandidates > len(records),
	}

	window := paginate(displayable, req.Start, req.Limit)
	if len(window) == 0 {
		return page, nil
	}

	ids := make([]uuid.UUID, len(window))
	for i, rec := range window {
		ids[i] = rec.CandidateID
	}
	profiles, err := r.store.GetCandidatesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	lookup := identity.NewLookup(r.directory, r.logger)
	for _, rec := range window {
		members := bookmarkedBy[rec.CandidateID]
		row := RankedCandidate{
			CandidateID:   rec.CandidateID,
			AnalysisID:    rec.ID,
			Analysis:      rec.Data,
			Rank:          rec.Rank,
			NewlyAnalysed: rec.NewlyAnalysed,
			Bookmarked:    len(members) > 0,
			BookmarkedBy:  lookup.Names(ctx, members),
		}
		for _, m := range members {
			if m == req.MemberID {
				row.BookmarkedByMe = true
			}
		}
		if p, ok := profiles[rec.CandidateID]; ok {
			row.Name = p.Name
			row.Email = p.Email
		}
		if rec.NewlyAnalysed {
			page.Acknowledge = append(page.Acknowledge, rec.ID)
		}
		page.Candidates = append(page.Candidates, row)
	}

	return page, nil
}

// Acknowledge clears the newly analysed flag on records a client has seen.
func (r *Ranker) Acknowledge(ctx context.Context, ids []uuid.UUID) error {
	return r.store.AcknowledgeAnalyses(ctx, ids)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Sweep re-runs up to limit failed or abandoned analyses.
func (r *Ranker) Sweep(ctx context.Context, limit int) (SweepResult, error) {
	records, err := r.store.ListRetryableAnalyses(ctx, r.now().Add(-r.opts.StalePendingAfter), limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list retryable analyses: %w", err)
	}

	errs := RunBounded(ctx, records, r.opts.Concurrency, r.opts.AnalysisTimeout, func(ctx context.Context, rec db.Analysis) error {
		job, err := r.loadJob(ctx, rec.JobID)
		if err != nil {
			return err
		}
		_, err = r.analyzer.AnalyzeForJob(ctx, job, rec.CandidateID)
		return err
	})

	res := SweepResult{Attempted: len(records)}
	for i, err := range errs {
		if err != nil {
			res.Failed++
			r.logger.Warn("sweep analysis failed",
				zap.String("analysis_id", records[i].ID.String()),
				zap.String("job_id", records[i].JobID.String()),
				zap.String("candidate_id", records[i].CandidateID.String()),
				zap.Error(err))
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

// fillGap analyzes the closest unanalyzed candidates.
func (r *Ranker) fillGap(ctx context.Context, job *db.Job, records []db.Analysis, shortfall int, log *zap.Logger) error {
	vec, err := r.loadJobEmbedding(ctx, job.ID)
	if err != nil {
		return err
	}

	matches, err := r.vectors.QueryEmbeddings(ctx, db.NamespaceCandidates, db.VectorQuery{
		Vector: vec,
		TopK:   r.opts.PoolCeiling,
		Filter: orgFilter(job.OrgID),
	})
	if err != nil {
		return &UpstreamError{Service: "vector store", Cause: err}
	}

	analyzed := make(map[uuid.UUID]bool, len(records))
	for _, rec := range records {
		analyzed[rec.CandidateID] = true
	}

	batch := max(r.opts.MinBatch, shortfall)
	selected := make([]uuid.UUID, 0, batch)
	for _, m := range matches {
		if len(selected) == batch {
			break
		}
		id, err := uuid.Parse(m.ID)
		if err != nil {
			log.Warn("skipping malformed vector id", zap.String("id", m.ID))
			continue
		}
		if analyzed[id] {
			continue
		}
		analyzed[id] = true
		selected = append(selected, id)
	}
	if len(selected) == 0 {
		return nil
	}

	log.Info("filling analysis gap", zap.Int("shortfall", shortfall), zap.Int("selected", len(selected)))
	errs := RunBounded(ctx, selected, r.opts.Concurrency, r.opts.AnalysisTimeout, func(ctx context.Context, id uuid.UUID) error {
		_, err := r.analyzer.AnalyzeForJob(ctx, job, id)
		return err
	})
	for i, err := range errs {
		if err != nil {
			log.Warn("gap-fill analysis failed",
				zap.String("candidate_id", selected[i].String()),
				zap.String("category", string(CategoryOf(err))),
				zap.Error(err))
		}
	}
	return nil
}

func (r *Ranker) loadJob(ctx context.Context, id uuid.UUID) (*db.Job, error) {
	job, err := cache.Fetch(ctx, r.cache, cache.Key("job", id.String()), r.opts.JobCacheTTL,
		func(ctx context.Context) (*db.Job, error) {
			return r.store.GetJob(ctx, id)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, &ErrJobNotFound{JobID: id}
	}
	return job, nil
}

func (r *Ranker) loadJobEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	vec, err := cache.Fetch(ctx, r.cache, cache.Key("job-embedding", id.String()), r.opts.EmbeddingCacheTTL,
		func(ctx context.Context) (*[]float32, error) {
			v, err := r.vectors.FetchEmbedding(ctx, db.NamespaceJobs, id.String())
			if err != nil || len(v) == 0 {
				return nil, err
			}
			return &v, nil
		})
	if err != nil {
		return nil, &UpstreamError{Service: "vector store", Cause: err}
	}
	if vec == nil {
		return nil, &ErrEmbeddingNotFound{Namespace: db.NamespaceJobs, ID: id.String()}
	}
	return *vec, nil
}

func orgFilter(orgID uuid.UUID) map[string]string {
	return map[string]string{"org_id": orgID.String()}
}

// countUsable counts records that are complete or still being worked on.
func countUsable(records []db.Analysis) int {
	n := 0
	for _, rec := range records {
		if rec.Status != db.AnalysisStatusFailed {
			n++
		}
	}
	return n
}

// sortForDisplay keeps completed records, best score first, ties by candidate id.
func sortForDisplay(records []db.Analysis) []db.Analysis {
	out := make([]db.Analysis, 0, len(records))
	for _, rec := range records {
		if rec.Status == db.AnalysisStatusComplete && rec.Data != nil {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].MatchScore(), out[j].MatchScore()
		if si != sj {
			return si > sj
		}
		return out[i].CandidateID.String() < out[j].CandidateID.String()
	})
	return out
}

func paginate(records []db.Analysis, start, limit int) []db.Analysis {
	if start >= len(records) {
		return nil
	}
	end := min(start+limit, len(records))
	return records[start:end]
}
