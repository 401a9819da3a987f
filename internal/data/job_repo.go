package data

import (
	"database/sql"
	"log/slog"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	MaxAttempts  int
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for the sync job queue.
type JobRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const defaultMaxAttempts = 3

func (r *JobRepo) maxAttempts() int {
	if r.cfg.MaxAttempts > 0 {
		return r.cfg.MaxAttempts
	}
	return defaultMaxAttempts
}

const jobColumns = `
  id,
  job_type,
  account_id,
  merchant_id,
  competence,
  job_day,
  job_slot,
  status,
  scheduled_for,
  locked_at,
  locked_by,
  attempts,
  next_retry_at,
  last_error,
  created_at,
  updated_at
`
