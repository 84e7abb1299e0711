// Package server provides the HTTP REST API for recruiters: jobs, candidates,
// ranked matches, bookmarks and scheduled calls.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/config"
	"github.com/jonathan/talent-match/internal/db"
	"github.com/jonathan/talent-match/internal/matching"
	"github.com/jonathan/talent-match/internal/server/middleware"
	"github.com/jonathan/talent-match/internal/server/ratelimit"
	"go.uber.org/zap"
)

// acknowledgeTimeout bounds the post-response write that clears the
// newly analysed flags.
const acknowledgeTimeout = 10 * time.Second

// Store is the persistence used by the handlers.
type Store interface {
	Ping(ctx context.Context) error
	CreateJob(ctx context.Context, input *db.JobInput) (*db.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*db.Job, error)
	CreateCandidate(ctx context.Context, input *db.CandidateInput) (*db.Candidate, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (*db.Candidate, error)
	DeleteCandidate(ctx context.Context, id uuid.UUID) (bool, error)
	GetAnalysis(ctx context.Context, jobID, candidateID uuid.UUID) (*db.Analysis, error)
	AddBookmark(ctx context.Context, jobID, candidateID, memberID uuid.UUID) (bool, error)
	RemoveBookmark(ctx context.Context, jobID, candidateID, memberID uuid.UUID) (bool, error)
	UpsertEmbedding(ctx context.Context, namespace, id string, vec []float32, metadata map[string]string) error
	CreateScheduledCall(ctx context.Context, input *db.ScheduledCallInput) (*db.ScheduledCall, error)
	GetScheduledCall(ctx context.Context, id uuid.UUID) (*db.ScheduledCall, error)
}

// PageRanker serves ranked candidate pages.
type PageRanker interface {
	RankedPage(ctx context.Context, req matching.PageRequest) (*matching.Page, error)
	Acknowledge(ctx context.Context, ids []uuid.UUID) error
}

// Embedder turns profile text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Store    Store
	Ranker   PageRanker
	Analyzer matching.PairAnalyzer
	Embedder Embedder
	// Strategy scores the profile preview endpoint.
	Strategy matching.Strategy
	Logger   *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	store        Store
	ranker       PageRanker
	analyzer     matching.PairAnalyzer
	embedder     Embedder
	strategy     matching.Strategy
	rateLimiter  *ratelimit.Limiter
	jwtService   *JWTService
	logger       *zap.Logger
	callDuration time.Duration

	// background tracks work that outlives a response.
	background sync.WaitGroup
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	strategy := deps.Strategy
	if strategy == nil {
		strategy = matching.NewProfileStrategy(cfg.Matching.SkillWeight, cfg.Matching.CulturalWeight)
	}

	s := &Server{
		store:        deps.Store,
		ranker:       deps.Ranker,
		analyzer:     deps.Analyzer,
		embedder:     deps.Embedder,
		strategy:     strategy,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.NewConfig(cfg.RateLimit)),
		jwtService:   NewJWTService(&cfg.JWT),
		logger:       logger,
		callDuration: cfg.Scheduler.CallDuration,
	}

	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Jobs
	mux.Handle("POST /jobs", protect(s.handleCreateJob))
	mux.Handle("GET /jobs/{id}", protect(s.handleGetJob))

	// Matching
	mux.Handle("GET /jobs/{id}/candidates", protect(s.handleRankedCandidates))
	mux.Handle("POST /jobs/{id}/candidates/{candidate_id}/analysis", protect(s.handleAnalyze))
	mux.Handle("GET /jobs/{id}/candidates/{candidate_id}/analysis", protect(s.handleGetAnalysis))
	mux.Handle("GET /jobs/{id}/candidates/{candidate_id}/profile-score", protect(s.handleProfileScore))
	mux.Handle("PUT /jobs/{id}/candidates/{candidate_id}/bookmark", protect(s.handleAddBookmark))
	mux.Handle("DELETE /jobs/{id}/candidates/{candidate_id}/bookmark", protect(s.handleRemoveBookmark))

	// Candidates
	mux.Handle("POST /candidates", protect(s.handleCreateCandidate))
	mux.Handle("GET /candidates/{id}", protect(s.handleGetCandidate))
	mux.Handle("DELETE /candidates/{id}", protect(s.handleDeleteCandidate))

	// Scheduled calls
	mux.Handle("POST /calls", protect(s.handleScheduleCall))
	mux.Handle("GET /calls/{id}", protect(s.handleGetCall))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then drains in-flight requests and
// post-response work.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.background.Wait()
	s.rateLimiter.Stop()

	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, category matching.Category, message string) {
	s.jsonResponse(w, status, map[string]string{"error": string(category), "message": message})
}

// badRequest reports a request the client must fix.
func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.errorResponse(w, http.StatusBadRequest, matching.CategoryInvalid, message)
}

// writeError classifies err, logs it with its cause and responds with the
// category and a client-safe message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	category := Category(err)
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("category", string(category)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}
	s.errorResponse(w, status, category, publicMessage(err))
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; forwarded headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", s.extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit),
	)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
