package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/matching"
	"github.com/jonathan/talent-match/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validJobRequest() map[string]any {
	return map[string]any{
		"title":       "Backend Engineer",
		"description": "<h1>About</h1><p>Build <b>APIs</b> in Go.</p><script>alert(1)</script>",
		"skills": []map[string]any{
			{"name": " Golang ", "score": 4, "years_experience": 3, "mandatory": true},
			{"name": "PostgreSQL", "score": 3, "years_experience": 2},
		},
		"cultural_fit": map[string]any{"ownership_score": 5, "teamwork_score": 4},
	}
}

func TestCreateJob(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/jobs", validJobRequest())

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	job := decodeBody[db.Job](t, w)
	assert.Equal(t, env.orgID, job.OrgID)
	require.NotNil(t, job.CreatedBy)
	assert.Equal(t, env.memberID, *job.CreatedBy)
	assert.NotContains(t, job.Description, "<")
	assert.NotContains(t, job.Description, "alert")
	assert.Contains(t, job.Description, "Build APIs in Go.")
	require.Len(t, job.Skills, 2)
	assert.Equal(t, 5.0, job.CulturalFit.Ownership)

	vec, ok := env.store.vectors[db.NamespaceJobs+"/"+job.ID.String()]
	require.True(t, ok, "job vector should be stored")
	assert.Equal(t, env.orgID.String(), vec.metadata["org_id"])
	require.Len(t, env.embedder.texts, 1)
	assert.Contains(t, env.embedder.texts[0], "Backend Engineer")
}

func TestCreateJob_Invalid(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "malformed json", body: "{not json"},
		{name: "unknown field", body: `{"title":"x","description":"y","skills":[{"name":"go"}],"salary":1}`},
		{name: "no skills", body: map[string]any{"title": "x", "description": "y", "skills": []any{}}},
		{name: "score out of range", body: map[string]any{
			"title": "x", "description": "y",
			"skills": []map[string]any{{"name": "go", "score": 9}},
		}},
		{name: "description only markup", body: map[string]any{
			"title": "x", "description": "<div></div>",
			"skills": []map[string]any{{"name": "go", "score": 3}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/jobs", tt.body)
			assertError(t, w, http.StatusBadRequest, matching.CategoryInvalid)
		})
	}
	assert.Empty(t, env.store.jobs)
}

func TestCreateJob_EmbedderDown(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.err = errProvider

	w := env.do(t, http.MethodPost, "/jobs", validJobRequest())

	body := assertError(t, w, http.StatusBadGateway, matching.CategoryUpstreamUnavailable)
	assert.NotContains(t, body["message"], "sk-secret")
	assert.Empty(t, env.store.jobs, "nothing is stored when embedding fails")
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t)
	job, _ := env.seedPair(t, env.orgID)
	otherJob, _ := env.seedPair(t, uuid.New())

	w := env.do(t, http.MethodGet, "/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, job.ID, decodeBody[db.Job](t, w).ID)

	w = env.do(t, http.MethodGet, "/jobs/"+otherJob.ID.String(), nil)
	assertError(t, w, http.StatusNotFound, matching.CategoryNotFound)

	w = env.do(t, http.MethodGet, "/jobs/not-a-uuid", nil)
	assertError(t, w, http.StatusBadRequest, matching.CategoryInvalid)
}

func TestRankedCandidates(t *testing.T) {
	env := newTestEnv(t)
	jobID := uuid.New()
	ackID := uuid.New()
	env.ranker.page = &matching.Page{
		Candidates: []matching.RankedCandidate{
			{CandidateID: uuid.New(), Name: "Ada", AnalysisID: ackID, NewlyAnalysed: true},
		},
		TotalCandidates: 12,
		LoadMoreExists:  true,
		Acknowledge:     []uuid.UUID{ackID},
	}

	w := env.do(t, http.MethodGet, fmt.Sprintf("/jobs/%s/candidates?start=5&limit=20&bookmarked=true", jobID), nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 12, body["total_candidates"])
	assert.Equal(t, true, body["load_more_exists"])
	assert.NotContains(t, body, "Acknowledge")

	require.Len(t, env.ranker.requests, 1)
	req := env.ranker.requests[0]
	assert.Equal(t, matching.PageRequest{
		JobID:          jobID,
		OrgID:          env.orgID,
		MemberID:       env.memberID,
		Start:          5,
		Limit:          20,
		OnlyBookmarked: true,
	}, req)

	env.server.background.Wait()
	assert.Equal(t, []uuid.UUID{ackID}, env.ranker.acked)
}

func TestRankedCandidates_Defaults(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/jobs/"+uuid.NewString()+"/candidates", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.ranker.requests, 1)
	assert.Equal(t, 0, env.ranker.requests[0].Start)
	assert.Equal(t, defaultPageLimit, env.ranker.requests[0].Limit)
	assert.False(t, env.ranker.requests[0].OnlyBookmarked)

	env.server.background.Wait()
	assert.Empty(t, env.ranker.acked)
}

func TestRankedCandidates_Errors(t *testing.T) {
	env := newTestEnv(t)
	base := "/jobs/" + uuid.NewString() + "/candidates"

	assertError(t, env.do(t, http.MethodGet, base+"?start=abc", nil), http.StatusBadRequest, matching.CategoryInvalid)
	assertError(t, env.do(t, http.MethodGet, base+"?bookmarked=maybe", nil), http.StatusBadRequest, matching.CategoryInvalid)

	env.ranker.err = fmt.Errorf("%w: limit too large", matching.ErrInvalidPage)
	assertError(t, env.do(t, http.MethodGet, base+"?limit=500", nil), http.StatusBadRequest, matching.CategoryInvalid)

	env.ranker.err = &matching.ErrEmbeddingNotFound{Namespace: db.NamespaceJobs, ID: "x"}
	assertError(t, env.do(t, http.MethodGet, base, nil), http.StatusConflict, matching.CategoryIntegrityViolation)

	env.ranker.err = &matching.ErrJobNotFound{JobID: uuid.New()}
	assertError(t, env.do(t, http.MethodGet, base, nil), http.StatusNotFound, matching.CategoryNotFound)
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t)
	job, cand := env.seedPair(t, env.orgID)
	path := fmt.Sprintf("/jobs/%s/candidates/%s/analysis", job.ID, cand.ID)

	w := env.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decodeBody[db.Analysis](t, w)
	assert.Equal(t, job.ID, rec.JobID)
	assert.Equal(t, cand.ID, rec.CandidateID)

	env.analyzer.rec.Status = db.AnalysisStatusPending
	w = env.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	env.analyzer.err = &matching.UpstreamError{Service: "llm", Cause: errProvider}
	w = env.do(t, http.MethodPost, path, nil)
	body := assertError(t, w, http.StatusBadGateway, matching.CategoryUpstreamUnavailable)
	assert.NotContains(t, body["message"], "sk-secret")

	env.analyzer.err = &matching.MalformedAnalysisError{Reason: "empty output"}
	w = env.do(t, http.MethodPost, path, nil)
	assertError(t, w, http.StatusBadGateway, matching.CategoryMalformedResponse)
}

func TestAnalyze_OtherOrganization(t *testing.T) {
	env := newTestEnv(t)
	job, _ := env.seedPair(t, env.orgID)
	_, foreign := env.seedPair(t, uuid.New())

	w := env.do(t, http.MethodPost, fmt.Sprintf("/jobs/%s/candidates/%s/analysis", job.ID, foreign.ID), nil)

	assertError(t, w, http.StatusNotFound, matching.CategoryNotFound)
	assert.Zero(t, env.analyzer.calls, "no analysis for invisible candidates")
}

func TestGetAnalysis(t *testing.T) {
	env := newTestEnv(t)
	job, cand := env.seedPair(t, env.orgID)
	path := fmt.Sprintf("/jobs/%s/candidates/%s/analysis", job.ID, cand.ID)

	assertError(t, env.do(t, http.MethodGet, path, nil), http.StatusNotFound, matching.CategoryNotFound)

	env.store.analyses[[2]uuid.UUID{job.ID, cand.ID}] = &db.Analysis{
		ID:     uuid.New(),
		JobID:  job.ID,
		Status: db.AnalysisStatusComplete,
		Data:   &types.AnalysisData{PercentageMatchScore: 81},
	}
	w := env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decodeBody[db.Analysis](t, w)
	assert.Equal(t, 81.0, rec.MatchScore())
	assert.Zero(t, env.analyzer.calls)
}

func TestProfileScore(t *testing.T) {
	env := newTestEnv(t)
	job, err := env.store.CreateJob(t.Context(), &db.JobInput{
		OrgID:       env.orgID,
		Title:       "Go",
		Skills:      []types.ExpectedSkill{{Name: "go", Score: 5, YearsExperience: 1}},
		CulturalFit: types.CulturalFit{Ownership: 5},
	})
	require.NoError(t, err)
	cand, err := env.store.CreateCandidate(t.Context(), &db.CandidateInput{
		OrgID:       env.orgID,
		Name:        "Ada",
		Skills:      []types.SkillScore{{Name: "go", Score: 5, YearsExperience: 4}},
		CulturalFit: types.CulturalFit{Ownership: 5},
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/jobs/%s/candidates/%s/profile-score", job.ID, cand.ID), nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, "profile", body["strategy"])
	assert.InDelta(t, 100.0, body["percentageSkillMatch"], 0.01)
	assert.InDelta(t, 100.0, body["percentageMatchScore"], 0.01)
	assert.Zero(t, env.analyzer.calls)
}

func TestBookmarks(t *testing.T) {
	env := newTestEnv(t)
	job, cand := env.seedPair(t, env.orgID)
	path := fmt.Sprintf("/jobs/%s/candidates/%s/bookmark", job.ID, cand.ID)

	w := env.do(t, http.MethodPut, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"bookmarked": true, "created": true}, decodeBody[map[string]bool](t, w))

	w = env.do(t, http.MethodPut, path, nil)
	assert.Equal(t, map[string]bool{"bookmarked": true, "created": false}, decodeBody[map[string]bool](t, w))
	assert.True(t, env.store.bookmarks[[3]uuid.UUID{job.ID, cand.ID, env.memberID}])

	w = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, map[string]bool{"bookmarked": false, "removed": true}, decodeBody[map[string]bool](t, w))

	w = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, map[string]bool{"bookmarked": false, "removed": false}, decodeBody[map[string]bool](t, w))
}

func TestCandidateLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/candidates", map[string]any{
		"name":       "Grace Hopper",
		"email":      "grace@example.com",
		"phone":      "+14155550100",
		"resume_key": "resumes/grace.pdf",
		"skills": []map[string]any{
			{"name": "COBOL", "score": 5, "years_experience": 20},
		},
		"cultural_fit": map[string]any{"innovation_score": 5},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cand := decodeBody[db.Candidate](t, w)
	assert.Equal(t, env.orgID, cand.OrgID)

	key := db.NamespaceCandidates + "/" + cand.ID.String()
	require.Contains(t, env.store.vectors, key)
	assert.Equal(t, env.orgID.String(), env.store.vectors[key].metadata["org_id"])
	assert.Contains(t, env.embedder.texts[0], "innovation")

	w = env.do(t, http.MethodGet, "/candidates/"+cand.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Grace Hopper", decodeBody[db.Candidate](t, w).Name)

	w = env.do(t, http.MethodDelete, "/candidates/"+cand.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, env.store.vectors, key)

	w = env.do(t, http.MethodGet, "/candidates/"+cand.ID.String(), nil)
	assertError(t, w, http.StatusNotFound, matching.CategoryNotFound)
}

func TestCreateCandidate_Invalid(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/candidates", map[string]any{
		"name":       "No Resume",
		"email":      "not-an-email",
		"resume_key": "",
	})

	assertError(t, w, http.StatusBadRequest, matching.CategoryInvalid)
	assert.Empty(t, env.embedder.texts)
}

func TestDeleteCandidate_OtherOrganization(t *testing.T) {
	env := newTestEnv(t)
	_, foreign := env.seedPair(t, uuid.New())

	w := env.do(t, http.MethodDelete, "/candidates/"+foreign.ID.String(), nil)

	assertError(t, w, http.StatusNotFound, matching.CategoryNotFound)
	assert.Contains(t, env.store.candidates, foreign.ID)
}

func TestScheduleCall(t *testing.T) {
	env := newTestEnv(t)
	job, cand := env.seedPair(t, env.orgID)
	start := time.Date(2026, 11, 2, 15, 0, 0, 0, time.UTC)

	w := env.do(t, http.MethodPost, "/calls", map[string]any{
		"candidate_id": cand.ID,
		"job_id":       job.ID,
		"phone_number": "+14155550100",
		"assistant_id": "screening-v1",
		"start_time":   start,
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, db.CallStatePending, body["state"])

	var stored *db.ScheduledCall
	for _, c := range env.store.calls {
		stored = c
	}
	require.NotNil(t, stored)
	assert.Equal(t, start.Add(10*time.Minute), stored.EndTime)

	callID := "call-123"
	stored.IsCalled = true
	stored.CallID = &callID
	w = env.do(t, http.MethodGet, "/calls/"+stored.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, db.CallStateDispatched, decodeBody[map[string]any](t, w)["state"])
}

func TestScheduleCall_Invalid(t *testing.T) {
	env := newTestEnv(t)
	job, cand := env.seedPair(t, env.orgID)
	_, foreign := env.seedPair(t, uuid.New())

	w := env.do(t, http.MethodPost, "/calls", map[string]any{
		"candidate_id": cand.ID,
		"job_id":       job.ID,
		"phone_number": "555-0100",
		"assistant_id": "screening-v1",
		"start_time":   time.Now(),
	})
	assertError(t, w, http.StatusBadRequest, matching.CategoryInvalid)

	w = env.do(t, http.MethodPost, "/calls", map[string]any{
		"candidate_id": foreign.ID,
		"job_id":       job.ID,
		"phone_number": "+14155550100",
		"assistant_id": "screening-v1",
		"start_time":   time.Now(),
	})
	assertError(t, w, http.StatusNotFound, matching.CategoryNotFound)
	assert.Empty(t, env.store.calls)
}

func TestGetCall_NotVisible(t *testing.T) {
	env := newTestEnv(t)
	foreignJob, foreignCand := env.seedPair(t, uuid.New())
	call, err := env.store.CreateScheduledCall(t.Context(), &db.ScheduledCallInput{
		CandidateID: foreignCand.ID,
		JobID:       foreignJob.ID,
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/calls/"+call.ID.String(), nil)
	body := assertError(t, w, http.StatusNotFound, matching.CategoryNotFound)
	assert.True(t, strings.Contains(body["message"], call.ID.String()))

	w = env.do(t, http.MethodGet, "/calls/"+uuid.NewString(), nil)
	assertError(t, w, http.StatusNotFound, matching.CategoryNotFound)
}

func TestEmbeddingText(t *testing.T) {
	text := jobEmbeddingText("SRE", "Keep it running", []types.ExpectedSkill{{Name: "go"}, {Name: "kubernetes"}})
	assert.Equal(t, "SRE\n\nKeep it running\n\nRequired skills: go, kubernetes", text)

	cand := candidateEmbeddingText(
		[]types.SkillScore{{Name: "go", Score: 4, YearsExperience: 3}},
		types.CulturalFit{Teamwork: 4, Integrity: 5, Product: 2},
	)
	assert.Equal(t, "Skills: go (4.0/5, 3 years)\nStrengths: teamwork, integrity", cand)
}
