// Package scheduler provides adapters for running the job scheduler.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dexpanel/ifood-sync/config"
	"github.com/dexpanel/ifood-sync/internal/core"
	"github.com/dexpanel/ifood-sync/internal/data"
	obserrors "github.com/dexpanel/ifood-sync/internal/observability/errors"
	"github.com/dexpanel/ifood-sync/internal/observability/metrics"
	"github.com/dexpanel/ifood-sync/internal/observability/statsd"
	"github.com/dexpanel/ifood-sync/internal/service"
)

// Runner provides a simple adapter to run the scheduler loop.
// It constructs the scheduler service and runs a tick loop at the configured interval.
type Runner struct {
	scheduler *service.SchedulerService
	interval  time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB      *sql.DB
	Config  config.SchedulerConfig
	Logger  *slog.Logger
	Metrics statsd.Sink

	// Redis is optional; when set, the active account listing is cached
	// with the configured TTL instead of hitting Postgres every tick.
	Redis redis.UniversalClient

	// Optional dependency injections for testing/decoupling
	Jobs     core.JobRepository
	Accounts core.AccountDirectory
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	jobs := opts.Jobs
	if jobs == nil {
		jobs = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	accounts, err := wireAccountDirectory(opts)
	if err != nil {
		return nil, err
	}

	scheduler, err := service.NewSchedulerService(service.SchedulerServiceOptions{
		Jobs:     jobs,
		Accounts: accounts,
		Config:   opts.Config,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{
		scheduler: scheduler,
		interval:  opts.Config.TickInterval,
		logger:    opts.Logger.With("component", "scheduler_runner"),
		metrics:   opts.Metrics,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && (opts.Jobs == nil || opts.Accounts == nil) {
		return errors.New("database connection is required")
	}
	if opts.Config.TickInterval <= 0 {
		opts.Config.TickInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wireAccountDirectory builds the account directory, cached behind Redis
// when a client is available.
func wireAccountDirectory(opts RunnerOptions) (core.AccountDirectory, error) {
	if opts.Accounts != nil {
		return opts.Accounts, nil
	}

	repo := data.NewAccountRepo(opts.DB)
	if opts.Redis == nil {
		return repo, nil
	}

	return data.NewCachedAccountDirectory(data.CachedAccountDirectoryOptions{
		Inner:  repo,
		Client: opts.Redis,
		TTL:    opts.Config.AccountCacheTTL,
		Logger: opts.Logger,
	})
}

// Run starts the scheduler loop and runs until the context is cancelled.
// It calls Tick() at the configured interval and logs the results.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Fire once at startup so a fresh deploy does not wait a full interval.
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	created, err := r.scheduler.Tick(ctx)
	elapsed := time.Since(start)

	r.emitTickMetrics(created, elapsed, err)

	if err != nil {
		// Continue running despite errors
		r.logger.ErrorContext(ctx, "scheduler tick error", "error", err)
	} else if created > 0 {
		r.logger.InfoContext(ctx, "scheduler tick created jobs", "count", created)
	}
}

func (r *Runner) emitTickMetrics(created int, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if created == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}

	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("scheduler.tick", 1, tags)

	if elapsed > 0 {
		r.metrics.Timing("scheduler.tick_duration", elapsed, metrics.CloneTags(tags))
	}

	if err == nil {
		r.metrics.Gauge("scheduler.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}
