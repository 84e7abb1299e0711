package server

import (
	"net/http"

	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/parsing"
	"github.com/jonathan/talent-match/internal/types"
	"go.uber.org/zap"
)

// handleCreateCandidate stores a candidate profile and indexes its vector.
func (s *Server) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}

	var req types.CreateCandidateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.Skills = parsing.NormalizeSkills(req.Skills)
	if err := req.Validate(); err != nil {
		s.badRequest(w, "Validation failed: "+err.Error())
		return
	}

	vec, err := s.embed(r.Context(), candidateEmbeddingText(req.Skills, req.CulturalFit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cand, err := s.store.CreateCandidate(r.Context(), &db.CandidateInput{
		OrgID:       who.OrgID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		ResumeKey:   req.ResumeKey,
		Skills:      req.Skills,
		CulturalFit: req.CulturalFit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.embedAndStore(r.Context(), db.NamespaceCandidates, cand.ID, who.OrgID, vec); err != nil {
		s.logger.Error("candidate created without embedding", zap.String("candidate_id", cand.ID.String()), zap.Error(err))
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, cand)
}

// handleGetCandidate returns a candidate profile.
func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	id, ok := s.pathUUID(w, r, "id", "candidate ID")
	if !ok {
		return
	}

	cand, err := s.visibleCandidate(r.Context(), id, who)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, cand)
}

// handleDeleteCandidate removes the candidate, its dependent rows and its vector.
func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	id, ok := s.pathUUID(w, r, "id", "candidate ID")
	if !ok {
		return
	}

	if _, err := s.visibleCandidate(r.Context(), id, who); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.store.DeleteCandidate(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
