// Package httpx exposes the operational HTTP surface: liveness and job
// queue statistics. It carries no tenant-facing API.
package httpx

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dexpanel/ifood-sync/internal/core"
	"github.com/dexpanel/ifood-sync/internal/data"
)

// ServerOptions holds the dependencies for creating a Server.
type ServerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Jobs core.JobRepository
}

// Server serves the operational endpoints.
type Server struct {
	db     *sql.DB
	jobs   core.JobRepository
	logger *slog.Logger
}

// NewServer creates a Server with the given options.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.DB == nil {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	jobs := opts.Jobs
	if jobs == nil {
		jobs = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	return &Server{
		db:     opts.DB,
		jobs:   jobs,
		logger: opts.Logger.With("component", "http"),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/jobs/stats", s.handleJobStats)
	return mux
}

// handleHealthz reports liveness, including database reachability.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.ErrorContext(ctx, "health check database ping failed", "error", err)
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unavailable",
			"database": "down",
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "up",
	})
}

// handleJobStats returns per-job-type status counts.
func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()

	stats, err := s.jobs.Stats(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "job stats query failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "stats_failed",
			Err:     errors.New("failed to load job statistics"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"jobs": stats})
}
