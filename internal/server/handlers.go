package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/matching"
	"github.com/jonathan/talent-match/internal/server/middleware"
	"github.com/jonathan/talent-match/internal/types"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// requester identifies the authenticated member and organization.
type requester struct {
	MemberID uuid.UUID
	OrgID    uuid.UUID
}

// currentRequester reads the identity placed in the context by the auth
// middleware and writes a 401 when it is missing.
func (s *Server) currentRequester(w http.ResponseWriter, r *http.Request) (requester, bool) {
	memberID, err := middleware.GetMemberID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return requester{}, false
	}
	orgID, err := middleware.GetOrgID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return requester{}, false
	}
	return requester{MemberID: memberID, OrgID: orgID}, true
}

// pathUUID parses a path parameter, writing a 400 on failure.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	raw := r.PathValue(name)
	if raw == "" {
		s.badRequest(w, fmt.Sprintf("Missing %s", label))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.badRequest(w, fmt.Sprintf("Invalid %s", label))
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.badRequest(w, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseQueryInt reads an integer query parameter, returning defaultValue
// when it is absent.
func parseQueryInt(r *http.Request, key string, defaultValue int) (int, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, &ErrValidation{Field: key, Message: "must be an integer"}
	}
	return val, nil
}

// parseQueryBool reads a boolean query parameter, false when absent.
func parseQueryBool(r *http.Request, key string) (bool, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, &ErrValidation{Field: key, Message: "must be a boolean"}
	}
	return val, nil
}

// visibleJob loads a job owned by the requester's organization. Jobs of
// other organizations are reported as not found.
func (s *Server) visibleJob(ctx context.Context, id uuid.UUID, who requester) (*db.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil || job.OrgID != who.OrgID {
		return nil, &matching.ErrJobNotFound{JobID: id}
	}
	return job, nil
}

// visibleCandidate is visibleJob for candidates.
func (s *Server) visibleCandidate(ctx context.Context, id uuid.UUID, who requester) (*db.Candidate, error) {
	cand, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	if cand == nil || cand.OrgID != who.OrgID {
		return nil, &matching.ErrCandidateNotFound{CandidateID: id}
	}
	return cand, nil
}

// embedAndStore embeds text and upserts the vector tagged with the organization.
func (s *Server) embedAndStore(ctx context.Context, namespace string, id, orgID uuid.UUID, vec []float32) error {
	if err := s.store.UpsertEmbedding(ctx, namespace, id.String(), vec, map[string]string{"org_id": orgID.String()}); err != nil {
		return fmt.Errorf("failed to store %s embedding: %w", namespace, err)
	}
	return nil
}

// embed wraps embedder failures as upstream errors.
func (s *Server) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &matching.UpstreamError{Service: "embeddings", Cause: err}
	}
	return vec, nil
}

// jobEmbeddingText is the text a job vector is computed from.
func jobEmbeddingText(title, description string, skills []types.ExpectedSkill) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(description)
	if len(skills) > 0 {
		b.WriteString("\n\nRequired skills: ")
		b.WriteString(skillList(len(skills), func(i int) string { return skills[i].Name }))
	}
	return b.String()
}

// candidateEmbeddingText is the text a candidate vector is computed from.
func candidateEmbeddingText(skills []types.SkillScore, fit types.CulturalFit) string {
	var b strings.Builder
	b.WriteString("Skills: ")
	b.WriteString(skillList(len(skills), func(i int) string {
		return fmt.Sprintf("%s (%.1f/5, %.0f years)", skills[i].Name, skills[i].Score, skills[i].YearsExperience)
	}))
	b.WriteString("\nStrengths: ")
	values := fit.Values()
	var strengths []string
	for i, name := range types.CulturalTraitNames {
		if values[i] >= 4 {
			strengths = append(strengths, strings.TrimSuffix(name, "_score"))
		}
	}
	b.WriteString(strings.Join(strengths, ", "))
	return b.String()
}

func skillList(n int, item func(int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = item(i)
	}
	return strings.Join(parts, ", ")
}
