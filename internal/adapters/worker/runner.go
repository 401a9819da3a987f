// Package worker provides adapters for running the sync job worker.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dexpanel/ifood-sync/config"
	"github.com/dexpanel/ifood-sync/internal/adapters/syncapi"
	"github.com/dexpanel/ifood-sync/internal/core"
	"github.com/dexpanel/ifood-sync/internal/data"
	"github.com/dexpanel/ifood-sync/internal/observability/statsd"
	"github.com/dexpanel/ifood-sync/internal/ratelimit"
	"github.com/dexpanel/ifood-sync/internal/service"
)

// Runner provides a simple adapter to run the worker poll loop.
// It constructs the worker service with its sync client and rate limiter.
type Runner struct {
	worker       *service.WorkerService
	pollInterval time.Duration
	logger       *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB        *sql.DB
	Config    config.WorkerConfig
	RateLimit config.RateLimitConfig
	SyncAPI   config.SyncAPIConfig
	Logger    *slog.Logger
	Metrics   statsd.Sink

	// Optional dependency injections for testing/decoupling
	Jobs      core.JobRepository
	Invoker   core.SyncInvoker
	Limiter   core.CallLimiter
	SyncState core.SyncStateReader
}

// NewRunner creates a new worker runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	jobs := opts.Jobs
	if jobs == nil {
		jobs = data.NewJobRepo(opts.DB, data.RepoConfig{
			MaxAttempts: opts.Config.MaxAttempts,
			Logger:      opts.Logger,
		})
	}

	syncState := opts.SyncState
	if syncState == nil {
		syncState = data.NewSyncStateRepo(opts.DB)
	}

	invoker := opts.Invoker
	if invoker == nil {
		client, err := syncapi.NewClient(syncapi.ClientOptions{
			BaseURL: opts.SyncAPI.BaseURL,
			Timeout: opts.SyncAPI.Timeout,
			Logger:  opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("wire sync client: %w", err)
		}
		invoker = client
	}

	limiter := opts.Limiter
	if limiter == nil {
		l, err := ratelimit.NewLimiter(ratelimit.Options{
			MaxConcurrency: opts.RateLimit.MaxConcurrency,
			MinDelay:       opts.RateLimit.MinDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("wire rate limiter: %w", err)
		}
		limiter = l
	}

	worker, err := service.NewWorkerService(service.WorkerServiceOptions{
		Jobs:      jobs,
		Invoker:   invoker,
		Limiter:   limiter,
		SyncState: syncState,
		Config:    opts.Config,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire worker service: %w", err)
	}

	return &Runner{
		worker:       worker,
		pollInterval: opts.Config.PollInterval,
		logger:       opts.Logger.With("component", "worker_runner"),
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && (opts.Jobs == nil || opts.SyncState == nil) {
		return errors.New("database connection is required")
	}
	if opts.Config.PollInterval <= 0 {
		opts.Config.PollInterval = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run starts the worker poll loop and runs until the context is cancelled.
// A tick that claims jobs is followed immediately by another tick; an idle
// or failed tick waits out the poll interval first.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting worker runner",
		"poll_interval", r.pollInterval,
		"worker_id", r.worker.WorkerID(),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "worker runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-timer.C:
			processed, err := r.worker.RunOnce(ctx)
			if err != nil {
				// Continue running despite errors
				r.logger.ErrorContext(ctx, "worker tick error", "error", err)
			}
			if err == nil && processed > 0 {
				timer.Reset(0)
				continue
			}
			timer.Reset(r.pollInterval)
		}
	}
}
