package server

import (
	"net/http"

	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/matching"
	"github.com/jonathan/talent-match/internal/types"
)

// scheduledCallResponse adds the derived state to a stored call.
type scheduledCallResponse struct {
	*db.ScheduledCall
	State string `json:"state"`
}

// handleScheduleCall books an outbound call. The scheduler dials it once
// the start time has passed and a slot is free.
func (s *Server) handleScheduleCall(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}

	var req types.ScheduleCallRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.badRequest(w, "Validation failed: "+err.Error())
		return
	}

	if _, err := s.visibleJob(r.Context(), req.JobID, who); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.visibleCandidate(r.Context(), req.CandidateID, who); err != nil {
		s.writeError(w, r, err)
		return
	}

	call, err := s.store.CreateScheduledCall(r.Context(), &db.ScheduledCallInput{
		CandidateID: req.CandidateID,
		JobID:       req.JobID,
		PhoneNumber: req.PhoneNumber,
		AssistantID: req.AssistantID,
		StartTime:   req.StartTime,
		EndTime:     req.StartTime.Add(s.callDuration),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, scheduledCallResponse{ScheduledCall: call, State: call.State()})
}

// handleGetCall reports a scheduled call and whether it has been dialed.
func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	id, ok := s.pathUUID(w, r, "id", "call ID")
	if !ok {
		return
	}

	call, err := s.store.GetScheduledCall(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if call == nil {
		s.writeError(w, r, &ErrCallNotFound{CallID: id})
		return
	}
	// Calls are visible through their job's organization.
	if _, err := s.visibleJob(r.Context(), call.JobID, who); err != nil {
		if Category(err) == matching.CategoryNotFound {
			err = &ErrCallNotFound{CallID: id}
		}
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, scheduledCallResponse{ScheduledCall: call, State: call.State()})
}
