package matching

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/llm"
	"github.com/jonathan/talent-match/internal/resume"
	"github.com/jonathan/talent-match/internal/types"
)

type pairKey struct {
	job, candidate uuid.UUID
}

// memStore is an in-memory AnalysisStore and RankerStore with the same
// claim semantics as the database.
type memStore struct {
	mu           sync.Mutex
	jobs         map[uuid.UUID]*db.Job
	candidates   map[uuid.UUID]*db.Candidate
	analyses     map[pairKey]*db.Analysis
	bookmarks    []db.Bookmark
	acknowledged []uuid.UUID
	getJobCalls  atomic.Int32
	now          func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		jobs:       make(map[uuid.UUID]*db.Job),
		candidates: make(map[uuid.UUID]*db.Candidate),
		analyses:   make(map[pairKey]*db.Analysis),
		now:        time.Now,
	}
}

func (s *memStore) addJob(orgID uuid.UUID, skills ...types.ExpectedSkill) *db.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &db.Job{ID: uuid.New(), OrgID: orgID, Title: "Engineer", Description: "Write Go.", Skills: skills}
	s.jobs[job.ID] = job
	return job
}

func (s *memStore) addCandidate(orgID uuid.UUID) *db.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &db.Candidate{ID: uuid.New(), OrgID: orgID, Name: "Candidate " + fmt.Sprint(len(s.candidates)), ResumeKey: "resumes/cv.pdf"}
	s.candidates[c.ID] = c
	return c
}

// addAnalysis stores a record directly, bypassing the claim.
func (s *memStore) addAnalysis(jobID, candidateID uuid.UUID, status string, score float64) *db.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &db.Analysis{
		ID:          uuid.New(),
		JobID:       jobID,
		CandidateID: candidateID,
		Status:      status,
		Attempts:    1,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if status == db.AnalysisStatusComplete {
		a.Data = &types.AnalysisData{PercentageMatchScore: score}
	}
	s.analyses[pairKey{jobID, candidateID}] = a
	return a
}

func (s *memStore) analysisFor(jobID, candidateID uuid.UUID) *db.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.analyses[pairKey{jobID, candidateID}]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.analyses)
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID) (*db.Job, error) {
	s.getJobCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) GetCandidate(_ context.Context, id uuid.UUID) (*db.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.candidates[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) GetAnalysis(_ context.Context, jobID, candidateID uuid.UUID) (*db.Analysis, error) {
	return s.analysisFor(jobID, candidateID), nil
}

func (s *memStore) ClaimAnalysis(_ context.Context, jobID, candidateID uuid.UUID) (*db.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{jobID, candidateID}
	if _, ok := s.analyses[key]; ok {
		return nil, nil
	}
	a := &db.Analysis{
		ID:            uuid.New(),
		JobID:         jobID,
		CandidateID:   candidateID,
		Status:        db.AnalysisStatusPending,
		NewlyAnalysed: true,
		Attempts:      1,
		CreatedAt:     s.now(),
		UpdatedAt:     s.now(),
	}
	s.analyses[key] = a
	cp := *a
	return &cp, nil
}

func (s *memStore) find(id uuid.UUID) *db.Analysis {
	for _, a := range s.analyses {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *memStore) ReclaimAnalysis(_ context.Context, id uuid.UUID, staleBefore time.Time) (*db.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.find(id)
	if a == nil {
		return nil, nil
	}
	eligible := a.Status == db.AnalysisStatusFailed ||
		(a.Status == db.AnalysisStatusPending && a.UpdatedAt.Before(staleBefore))
	if !eligible {
		return nil, nil
	}
	a.Status = db.AnalysisStatusPending
	a.Attempts++
	a.ErrorMessage = nil
	a.UpdatedAt = s.now()
	cp := *a
	return &cp, nil
}

func (s *memStore) CompleteAnalysis(_ context.Context, id uuid.UUID, data *types.AnalysisData, rank int) (*db.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.find(id)
	if a == nil {
		return nil, fmt.Errorf("analysis not found: %s", id)
	}
	a.Status = db.AnalysisStatusComplete
	a.Data = data
	a.Rank = &rank
	a.NewlyAnalysed = true
	a.UpdatedAt = s.now()
	cp := *a
	return &cp, nil
}

func (s *memStore) FailAnalysis(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.find(id); a != nil && a.Status == db.AnalysisStatusPending {
		a.Status = db.AnalysisStatusFailed
		a.ErrorMessage = &message
	}
	return nil
}

func (s *memStore) CountHigherScores(_ context.Context, jobID uuid.UUID, score float64, excludeID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.analyses {
		if a.JobID == jobID && a.ID != excludeID && a.Status == db.AnalysisStatusComplete && a.MatchScore() > score {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListAnalysesByJob(_ context.Context, jobID uuid.UUID) ([]db.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Analysis
	for _, a := range s.analyses {
		if a.JobID == jobID {
			out = append(out, *a)
		}
	}
	// Store order is arbitrary; the ranker must not depend on it.
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *memStore) ListBookmarks(_ context.Context, jobID uuid.UUID) ([]db.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Bookmark
	for _, b := range s.bookmarks {
		if b.JobID == jobID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) GetCandidatesByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]db.Candidate)
	for _, id := range ids {
		if c, ok := s.candidates[id]; ok {
			out[id] = *c
		}
	}
	return out, nil
}

func (s *memStore) AcknowledgeAnalyses(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if a := s.find(id); a != nil {
			a.NewlyAnalysed = false
		}
	}
	s.acknowledged = append(s.acknowledged, ids...)
	return nil
}

func (s *memStore) ListRetryableAnalyses(_ context.Context, staleBefore time.Time, limit int) ([]db.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Analysis
	for _, a := range s.analyses {
		if a.Status == db.AnalysisStatusFailed || (a.Status == db.AnalysisStatusPending && a.UpdatedAt.Before(staleBefore)) {
			out = append(out, *a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) FetchableURL(_ context.Context, ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://blobs.example.com/" + ref, nil
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*resume.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &resume.Document{Name: "cv.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4")}, nil
}

// fakeModel returns a fixed response, optionally after a delay.
type fakeModel struct {
	mu       sync.Mutex
	response string
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (f *fakeModel) set(response string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.response, f.err = response, err
}

func (f *fakeModel) GenerateWithDocument(ctx context.Context, _ string, _ llm.Document, _ llm.ModelTier) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.response, f.err
}

// reportJSON renders a model response scoring every skill and trait equally.
func reportJSON(skills []types.ExpectedSkill, skillScore, traitScore float64) string {
	out := `{"perSkillMatch": [`
	for i, s := range skills {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"skill": %q, "candidateScore": %g}`, s.Name, skillScore)
	}
	out += `], "perCulturalFitMatch": [`
	for i, t := range types.CulturalTraitNames {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"trait": %q, "candidateScore": %g}`, t, traitScore)
	}
	return "```json\n" + out + "]}\n```"
}

type fakeVectors struct {
	mu         sync.Mutex
	jobs       map[string][]float32
	matches    []db.VectorMatch
	count      int
	queryErr   error
	queryCalls atomic.Int32
	fetchCalls atomic.Int32
}

func (f *fakeVectors) FetchEmbedding(_ context.Context, namespace, id string) ([]float32, error) {
	f.fetchCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if namespace != db.NamespaceJobs {
		return nil, nil
	}
	return f.jobs[id], nil
}

func (f *fakeVectors) QueryEmbeddings(_ context.Context, _ string, q db.VectorQuery) ([]db.VectorMatch, error) {
	f.queryCalls.Add(1)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.matches) > q.TopK {
		return f.matches[:q.TopK], nil
	}
	return f.matches, nil
}

func (f *fakeVectors) CountEmbeddings(context.Context, string, map[string]string) (int, error) {
	return f.count, nil
}

// scoredAnalyzer completes every pair with a preset score.
type scoredAnalyzer struct {
	store  *memStore
	scores map[uuid.UUID]float64
	calls  atomic.Int32
}

func (f *scoredAnalyzer) AnalyzeForJob(ctx context.Context, job *db.Job, candidateID uuid.UUID) (*db.Analysis, error) {
	f.calls.Add(1)
	a, err := f.store.ClaimAnalysis(ctx, job.ID, candidateID)
	if err != nil || a == nil {
		return f.store.analysisFor(job.ID, candidateID), err
	}
	return f.store.CompleteAnalysis(ctx, a.ID, &types.AnalysisData{PercentageMatchScore: f.scores[candidateID]}, 0)
}

type fakeDirectory struct {
	names map[uuid.UUID]string
}

func (f *fakeDirectory) MemberDisplayName(_ context.Context, id uuid.UUID) (string, error) {
	return f.names[id], nil
}
