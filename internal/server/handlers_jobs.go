package server

import (
	"net/http"

	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/parsing"
	"github.com/jonathan/talent-match/internal/types"
	"go.uber.org/zap"
)

// handleCreateJob creates a job and indexes its vector.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}

	var req types.CreateJobRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.Description = parsing.HTMLToText(req.Description)
	req.Skills = parsing.NormalizeExpectedSkills(req.Skills)
	if err := req.Validate(); err != nil {
		s.badRequest(w, "Validation failed: "+err.Error())
		return
	}

	// Embed first so a provider outage leaves nothing half-created.
	vec, err := s.embed(r.Context(), jobEmbeddingText(req.Title, req.Description, req.Skills))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.store.CreateJob(r.Context(), &db.JobInput{
		OrgID:       who.OrgID,
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   who.MemberID,
		Skills:      req.Skills,
		CulturalFit: req.CulturalFit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.embedAndStore(r.Context(), db.NamespaceJobs, job.ID, who.OrgID, vec); err != nil {
		s.logger.Error("job created without embedding", zap.String("job_id", job.ID.String()), zap.Error(err))
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, job)
}

// handleGetJob returns a job with its requirements.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	id, ok := s.pathUUID(w, r, "id", "job ID")
	if !ok {
		return
	}

	job, err := s.visibleJob(r.Context(), id, who)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}
