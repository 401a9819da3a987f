package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dexpanel/ifood-sync/config"
	"github.com/dexpanel/ifood-sync/internal/adapters/syncapi"
	"github.com/dexpanel/ifood-sync/internal/core"
	"github.com/dexpanel/ifood-sync/internal/data"
	domainjob "github.com/dexpanel/ifood-sync/internal/domain/job"
	"github.com/dexpanel/ifood-sync/internal/domain/model"
	obserrors "github.com/dexpanel/ifood-sync/internal/observability/errors"
	"github.com/dexpanel/ifood-sync/internal/observability/metrics"
	"github.com/dexpanel/ifood-sync/internal/observability/statsd"
	"github.com/dexpanel/ifood-sync/internal/util"
)

// WorkerServiceOptions groups dependencies for WorkerService.
type WorkerServiceOptions struct {
	Jobs        core.JobRepository  // Required: job queue
	Invoker     core.SyncInvoker    // Required: sync action client
	Limiter     core.CallLimiter    // Required: outbound admission control
	SyncState   core.SyncStateReader // Optional: sales range computation falls back to a fixed lookback
	Config      config.WorkerConfig
	RetryPolicy domainjob.RetryPolicy
	TimeProvider data.TimeProvider
	Logger      *slog.Logger
	Metrics     statsd.Sink
	WorkerID    string // Optional: defaults to hostname plus a random suffix
}

// WorkerService claims due jobs and executes their sync actions, recording
// terminal or retry state per attempt. One instance serves one poll loop;
// claimed jobs within a tick are processed concurrently.
type WorkerService struct {
	jobs         core.JobRepository
	invoker      core.SyncInvoker
	limiter      core.CallLimiter
	calls        *callBuilder
	cfg          config.WorkerConfig
	retry        domainjob.RetryPolicy
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
	workerID     string
}

// NewWorkerService constructs a new WorkerService.
func NewWorkerService(opts WorkerServiceOptions) (*WorkerService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Invoker == nil {
		return nil, errors.New("SyncInvoker is required")
	}
	if opts.Limiter == nil {
		return nil, errors.New("CallLimiter is required")
	}
	if len(opts.Config.JobTypes) == 0 {
		return nil, errors.New("at least one job type is required")
	}
	if opts.Config.MaxConcurrency <= 0 {
		return nil, errors.New("max concurrency must be positive")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RetryPolicy == (domainjob.RetryPolicy{}) {
		opts.RetryPolicy = domainjob.DefaultRetryPolicy()
	}

	workerID := opts.WorkerID
	if workerID == "" {
		workerID = defaultWorkerID()
	}

	return &WorkerService{
		jobs:         opts.Jobs,
		invoker:      opts.Invoker,
		limiter:      opts.Limiter,
		calls:        &callBuilder{syncState: opts.SyncState},
		cfg:          opts.Config,
		retry:        opts.RetryPolicy,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger.With("component", "worker_service", "worker_id", workerID),
		metrics:      opts.Metrics,
		workerID:     workerID,
	}, nil
}

// WorkerID returns the lease identity used by this instance.
func (s *WorkerService) WorkerID() string {
	return s.workerID
}

func defaultWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
}

// RunOnce performs one poll tick: selects candidates at twice the desired
// concurrency to absorb claim contention, claims up to MaxConcurrency of
// them, and processes the claimed batch concurrently. Returns the number of
// jobs processed.
func (s *WorkerService) RunOnce(ctx context.Context) (int, error) {
	candidates, err := s.jobs.Candidates(ctx, s.cfg.JobTypes, 2*s.cfg.MaxConcurrency)
	if err != nil {
		return 0, fmt.Errorf("select candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	claimed := make([]*model.Job, 0, s.cfg.MaxConcurrency)
	for _, candidate := range candidates {
		if len(claimed) >= s.cfg.MaxConcurrency {
			break
		}
		job, ok, claimErr := s.jobs.Claim(ctx, candidate.ID, s.workerID)
		if claimErr != nil {
			s.logger.ErrorContext(ctx, "claim failed",
				"job_id", candidate.ID,
				"error", claimErr,
			)
			continue
		}
		if !ok {
			// another worker won the conditional update; skip
			continue
		}
		claimed = append(claimed, job)
	}

	if len(claimed) == 0 {
		return 0, nil
	}

	var wg sync.WaitGroup
	for _, job := range claimed {
		wg.Add(1)
		go func(job *model.Job) {
			defer wg.Done()
			s.processJob(ctx, job)
		}(job)
	}
	wg.Wait()

	return len(claimed), nil
}

// processJob executes one claimed job. All failures are absorbed here; the
// diagnostic lands on the job row and the poll loop carries on.
func (s *WorkerService) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()

	call, buildErr := s.calls.BuildCall(ctx, job)
	if buildErr != nil {
		s.recordFailure(ctx, failureParams{
			Job:       job,
			Cause:     buildErr,
			Retryable: false,
			Duration:  time.Since(start),
		})
		return
	}

	invokeErr := s.limiter.Execute(ctx, func(ctx context.Context) error {
		return s.invoker.Invoke(ctx, call)
	})
	if invokeErr != nil {
		if isContextCancellation(invokeErr) {
			// shutdown mid-flight: the lease stays put and the reaper
			// requeues the job once it goes stale
			s.logger.WarnContext(ctx, "job interrupted by shutdown", "job_id", job.ID)
			return
		}
		s.recordFailure(ctx, failureParams{
			Job:       job,
			Cause:     invokeErr,
			Retryable: syncapi.IsRetryable(invokeErr),
			Duration:  time.Since(start),
		})
		return
	}

	ok, markErr := s.jobs.MarkSucceeded(ctx, job.ID)
	if markErr != nil {
		s.logger.ErrorContext(ctx, "mark succeeded failed",
			"job_id", job.ID,
			"error", markErr,
		)
		return
	}
	if !ok {
		s.logger.WarnContext(ctx, "job no longer running on success",
			"job_id", job.ID,
		)
		return
	}

	s.logger.InfoContext(ctx, "job succeeded",
		"job_id", job.ID,
		"job_type", job.Type,
		"account_id", job.AccountID,
		"attempt", job.Attempts+1,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: "complete",
		Result:     metrics.ResultSuccess,
		Duration:   time.Since(start),
	})
}

type failureParams struct {
	Job       *model.Job
	Cause     error
	Retryable bool
	Duration  time.Duration
}

// recordFailure counts the attempt and either schedules the retry backoff or
// lets the attempt ceiling flip the job to failed. Non-retryable failures
// clear next_retry_at but still pass through the same ceiling check.
func (s *WorkerService) recordFailure(ctx context.Context, p failureParams) {
	var retryAt *time.Time
	if p.Retryable {
		t := s.retry.NextRetryAt(s.timeProvider.Now(), p.Job.Attempts)
		retryAt = &t
	}

	status, ok, err := s.jobs.MarkFailed(ctx, data.FailParams{
		ID:      p.Job.ID,
		ErrMsg:  util.TruncateDiagnostic(p.Cause.Error()),
		RetryAt: retryAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "mark failed failed",
			"job_id", p.Job.ID,
			"error", err,
		)
		return
	}
	if !ok {
		s.logger.WarnContext(ctx, "job no longer running on failure",
			"job_id", p.Job.ID,
		)
		return
	}

	s.logger.WarnContext(ctx, "job attempt failed",
		"job_id", p.Job.ID,
		"job_type", p.Job.Type,
		"account_id", p.Job.AccountID,
		"attempt", p.Job.Attempts+1,
		"status", status,
		"retryable", p.Retryable,
		"error", p.Cause,
	)

	transition := "retry"
	if status == model.JobStatusFailed {
		transition = "fail"
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    string(p.Job.Type),
		Transition: transition,
		Result:     metrics.ResultError,
		Duration:   p.Duration,
		Err:        p.Cause,
	})
	if s.metrics != nil {
		if class := obserrors.Classify(p.Cause); class != "" && status == model.JobStatusFailed {
			s.metrics.Count("worker.jobs_exhausted", 1, map[string]string{
				"job_type":    string(p.Job.Type),
				"error_class": class,
			})
		}
	}
}
