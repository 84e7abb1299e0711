package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/config"
	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/matching"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type storedVector struct {
	vec      []float32
	metadata map[string]string
}

// memStore is an in-memory Store.
type memStore struct {
	mu         sync.Mutex
	pingErr    error
	jobs       map[uuid.UUID]*db.Job
	candidates map[uuid.UUID]*db.Candidate
	analyses   map[[2]uuid.UUID]*db.Analysis
	bookmarks  map[[3]uuid.UUID]bool
	vectors    map[string]storedVector
	calls      map[uuid.UUID]*db.ScheduledCall
}

func newMemStore() *memStore {
	return &memStore{
		jobs:       make(map[uuid.UUID]*db.Job),
		candidates: make(map[uuid.UUID]*db.Candidate),
		analyses:   make(map[[2]uuid.UUID]*db.Analysis),
		bookmarks:  make(map[[3]uuid.UUID]bool),
		vectors:    make(map[string]storedVector),
		calls:      make(map[uuid.UUID]*db.ScheduledCall),
	}
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) CreateJob(_ context.Context, in *db.JobInput) (*db.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	createdBy := in.CreatedBy
	job := &db.Job{
		ID:          uuid.New(),
		OrgID:       in.OrgID,
		Title:       in.Title,
		Description: in.Description,
		CreatedBy:   &createdBy,
		Skills:      in.Skills,
		CulturalFit: in.CulturalFit,
		CreatedAt:   time.Now(),
	}
	m.jobs[job.ID] = job
	return job, nil
}

func (m *memStore) GetJob(_ context.Context, id uuid.UUID) (*db.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id], nil
}

func (m *memStore) CreateCandidate(_ context.Context, in *db.CandidateInput) (*db.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fit := in.CulturalFit
	cand := &db.Candidate{
		ID:          uuid.New(),
		OrgID:       in.OrgID,
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		ResumeKey:   in.ResumeKey,
		Skills:      in.Skills,
		CulturalFit: &fit,
	}
	m.candidates[cand.ID] = cand
	return cand, nil
}

func (m *memStore) GetCandidate(_ context.Context, id uuid.UUID) (*db.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.candidates[id], nil
}

func (m *memStore) DeleteCandidate(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidates[id]; !ok {
		return false, nil
	}
	delete(m.candidates, id)
	delete(m.vectors, db.NamespaceCandidates+"/"+id.String())
	return true, nil
}

func (m *memStore) GetAnalysis(_ context.Context, jobID, candidateID uuid.UUID) (*db.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyses[[2]uuid.UUID{jobID, candidateID}], nil
}

func (m *memStore) AddBookmark(_ context.Context, jobID, candidateID, memberID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [3]uuid.UUID{jobID, candidateID, memberID}
	if m.bookmarks[key] {
		return false, nil
	}
	m.bookmarks[key] = true
	return true, nil
}

func (m *memStore) RemoveBookmark(_ context.Context, jobID, candidateID, memberID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [3]uuid.UUID{jobID, candidateID, memberID}
	if !m.bookmarks[key] {
		return false, nil
	}
	delete(m.bookmarks, key)
	return true, nil
}

func (m *memStore) UpsertEmbedding(_ context.Context, namespace, id string, vec []float32, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[namespace+"/"+id] = storedVector{vec: vec, metadata: metadata}
	return nil
}

func (m *memStore) CreateScheduledCall(_ context.Context, in *db.ScheduledCallInput) (*db.ScheduledCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := &db.ScheduledCall{
		ID:          uuid.New(),
		CandidateID: in.CandidateID,
		JobID:       in.JobID,
		PhoneNumber: in.PhoneNumber,
		AssistantID: in.AssistantID,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	}
	m.calls[call.ID] = call
	return call, nil
}

func (m *memStore) GetScheduledCall(_ context.Context, id uuid.UUID) (*db.ScheduledCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id], nil
}

// fakeRanker records page requests and acknowledgements.
type fakeRanker struct {
	mu       sync.Mutex
	page     *matching.Page
	err      error
	requests []matching.PageRequest
	acked    []uuid.UUID
}

func (f *fakeRanker) RankedPage(_ context.Context, req matching.PageRequest) (*matching.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeRanker) Acknowledge(_ context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return nil
}

// fakeAnalyzer returns a canned record or error.
type fakeAnalyzer struct {
	rec   *db.Analysis
	err   error
	calls int
}

func (f *fakeAnalyzer) AnalyzeForJob(_ context.Context, job *db.Job, candidateID uuid.UUID) (*db.Analysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec := *f.rec
	rec.JobID = job.ID
	rec.CandidateID = candidateID
	return &rec, nil
}

type fakeEmbedder struct {
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

var errProvider = errors.New("provider: quota exceeded for key sk-secret")

type testEnv struct {
	server   *Server
	store    *memStore
	ranker   *fakeRanker
	analyzer *fakeAnalyzer
	embedder *fakeEmbedder
	memberID uuid.UUID
	orgID    uuid.UUID
	token    string
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Matching:  config.MatchingConfig{SkillWeight: 0.7, CulturalWeight: 0.3},
		Scheduler: config.SchedulerConfig{CallDuration: 10 * time.Minute},
		JWT:       config.JWTConfig{Secret: testJWTSecret, ExpirationHours: 1},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, testConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    newMemStore(),
		ranker:   &fakeRanker{page: &matching.Page{Candidates: []matching.RankedCandidate{}}},
		analyzer: &fakeAnalyzer{rec: &db.Analysis{ID: uuid.New(), Status: db.AnalysisStatusComplete}},
		embedder: &fakeEmbedder{},
		memberID: uuid.New(),
		orgID:    uuid.New(),
	}
	env.server = New(cfg, Deps{
		Store:    env.store,
		Ranker:   env.ranker,
		Analyzer: env.analyzer,
		Embedder: env.embedder,
		Logger:   zap.NewNop(),
	})
	t.Cleanup(env.server.rateLimiter.Stop)

	token, err := env.server.jwtService.GenerateToken(env.memberID, env.orgID)
	require.NoError(t, err)
	env.token = token
	return env
}

// do sends a request through the full middleware chain.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.token, method, path, body)
}

func (e *testEnv) doAs(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

// seedPair stores a job and candidate owned by orgID.
func (e *testEnv) seedPair(t *testing.T, orgID uuid.UUID) (*db.Job, *db.Candidate) {
	t.Helper()
	job, err := e.store.CreateJob(context.Background(), &db.JobInput{OrgID: orgID, Title: "Backend Engineer", Description: "Go"})
	require.NoError(t, err)
	cand, err := e.store.CreateCandidate(context.Background(), &db.CandidateInput{OrgID: orgID, Name: "Ada", ResumeKey: "resumes/ada.pdf"})
	require.NoError(t, err)
	return job, cand
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// assertError checks the error envelope.
func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, category matching.Category) map[string]string {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	body := decodeBody[map[string]string](t, w)
	require.Equal(t, string(category), body["error"])
	require.NotEmpty(t, body["message"])
	return body
}
