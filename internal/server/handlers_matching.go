package server

import (
	"context"
	"net/http"

	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/matching"
	"go.uber.org/zap"
)

// defaultPageLimit is used when the limit query parameter is absent.
const defaultPageLimit = 10

// handleRankedCandidates serves one page of ranked candidates for a job,
// analyzing more candidates first when needed.
func (s *Server) handleRankedCandidates(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	jobID, ok := s.pathUUID(w, r, "id", "job ID")
	if !ok {
		return
	}

	start, err := parseQueryInt(r, "start", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := parseQueryInt(r, "limit", defaultPageLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bookmarked, err := parseQueryBool(r, "bookmarked")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.ranker.RankedPage(r.Context(), matching.PageRequest{
		JobID:          jobID,
		OrgID:          who.OrgID,
		MemberID:       who.MemberID,
		Start:          start,
		Limit:          limit,
		OnlyBookmarked: bookmarked,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, page)

	if len(page.Acknowledge) > 0 {
		s.acknowledge(r.Context(), page)
	}
}

// acknowledge clears the newly analysed flags once the page has been sent.
// It runs detached from the request so a closed connection does not undo it.
func (s *Server) acknowledge(reqCtx context.Context, page *matching.Page) {
	ids := page.Acknowledge
	ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), acknowledgeTimeout)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		if err := s.ranker.Acknowledge(ctx, ids); err != nil {
			s.logger.Warn("failed to acknowledge analyses", zap.Int("count", len(ids)), zap.Error(err))
		}
	}()
}

// handleAnalyze analyzes one candidate against one job. Repeated calls
// return the stored record without another model call.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	job, cand, ok := s.visiblePair(w, r, who)
	if !ok {
		return
	}

	rec, err := s.analyzer.AnalyzeForJob(r.Context(), job, cand.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if rec.Status == db.AnalysisStatusPending {
		// Another request owns the analysis.
		status = http.StatusAccepted
	}
	s.jsonResponse(w, status, rec)
}

// handleGetAnalysis returns the stored analysis without running one.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	job, cand, ok := s.visiblePair(w, r, who)
	if !ok {
		return
	}

	rec, err := s.store.GetAnalysis(r.Context(), job.ID, cand.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rec == nil {
		s.writeError(w, r, &ErrAnalysisNotFound{JobID: job.ID, CandidateID: cand.ID})
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// profileScoreResponse is the local-arithmetic preview of a match.
type profileScoreResponse struct {
	JobID       string `json:"job_id"`
	CandidateID string `json:"candidate_id"`
	Strategy    string `json:"strategy"`
	matching.Scores
}

// handleProfileScore scores the stored profiles without calling the model.
func (s *Server) handleProfileScore(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	job, cand, ok := s.visiblePair(w, r, who)
	if !ok {
		return
	}

	in := matching.ScoreInput{
		CandidateSkills: cand.Skills,
		ExpectedSkills:  job.Skills,
		ExpectedFit:     job.CulturalFit,
	}
	if cand.CulturalFit != nil {
		in.CandidateFit = *cand.CulturalFit
	}

	s.jsonResponse(w, http.StatusOK, profileScoreResponse{
		JobID:       job.ID.String(),
		CandidateID: cand.ID.String(),
		Strategy:    s.strategy.Name(),
		Scores:      s.strategy.Score(in),
	})
}

// handleAddBookmark bookmarks a candidate for the requesting member.
func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	job, cand, ok := s.visiblePair(w, r, who)
	if !ok {
		return
	}

	created, err := s.store.AddBookmark(r.Context(), job.ID, cand.ID, who.MemberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]bool{"bookmarked": true, "created": created})
}

// handleRemoveBookmark removes the requesting member's bookmark.
func (s *Server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	who, ok := s.currentRequester(w, r)
	if !ok {
		return
	}
	job, cand, ok := s.visiblePair(w, r, who)
	if !ok {
		return
	}

	removed, err := s.store.RemoveBookmark(r.Context(), job.ID, cand.ID, who.MemberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]bool{"bookmarked": false, "removed": removed})
}

// visiblePair resolves the {id} and {candidate_id} path parameters.
func (s *Server) visiblePair(w http.ResponseWriter, r *http.Request, who requester) (*db.Job, *db.Candidate, bool) {
	jobID, ok := s.pathUUID(w, r, "id", "job ID")
	if !ok {
		return nil, nil, false
	}
	candID, ok := s.pathUUID(w, r, "candidate_id", "candidate ID")
	if !ok {
		return nil, nil, false
	}

	job, err := s.visibleJob(r.Context(), jobID, who)
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}
	cand, err := s.visibleCandidate(r.Context(), candID, who)
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}
	return job, cand, true
}
