// Package service provides the business logic of the ifood-sync job subsystem.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dexpanel/ifood-sync/config"
	"github.com/dexpanel/ifood-sync/internal/core"
	"github.com/dexpanel/ifood-sync/internal/data"
	"github.com/dexpanel/ifood-sync/internal/domain/model"
	"github.com/dexpanel/ifood-sync/internal/domain/schedule"
	"github.com/dexpanel/ifood-sync/internal/observability/statsd"
)

// SchedulerServiceOptions holds the dependencies for creating a SchedulerService.
// Uses an options struct to keep parameter count <= 3 as per project conventions.
type SchedulerServiceOptions struct {
	Jobs         core.JobRepository
	Accounts     core.AccountDirectory
	Config       config.SchedulerConfig
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
	Metrics      statsd.Sink
}

// SchedulerService creates at most one job per (job type, account, recurrence
// period), spreading execution timestamps linearly across the configured
// window. Safe under concurrent replicas: creation is idempotent per dedup
// key, so two schedulers racing on the same period insert exactly one row.
type SchedulerService struct {
	jobs         core.JobRepository
	accounts     core.AccountDirectory
	cfg          config.SchedulerConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewSchedulerService creates a new SchedulerService with the given dependencies.
func NewSchedulerService(opts SchedulerServiceOptions) (*SchedulerService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Accounts == nil {
		return nil, errors.New("AccountDirectory is required")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &SchedulerService{
		jobs:         opts.Jobs,
		accounts:     opts.Accounts,
		cfg:          opts.Config,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger.With("component", "scheduler_service"),
		metrics:      opts.Metrics,
	}, nil
}

// recurrence describes the current period of a job type: its dedup key and
// the window to spread execution over.
type recurrence struct {
	key    schedule.Key
	window schedule.Window
}

// Tick evaluates every enabled job type once and returns the number of jobs
// created. Failures on one job type are logged and do not block the others;
// the next tick retries whatever is still missing, which is safe because
// creation is idempotent per dedup key.
func (s *SchedulerService) Tick(ctx context.Context) (int, error) {
	now := s.timeProvider.Now()

	var accounts []model.Account
	accountsLoaded := false

	created := 0
	var errs []error
	for _, jobType := range s.cfg.JobTypes {
		rec, due := s.recurrenceFor(jobType, now)
		if !due {
			continue
		}

		if !accountsLoaded {
			list, err := s.accounts.ListActive(ctx)
			if err != nil {
				return created, fmt.Errorf("list active accounts: %w", err)
			}
			accounts = list
			accountsLoaded = true
		}
		if len(accounts) == 0 {
			return created, nil
		}

		n, err := s.scheduleType(ctx, scheduleTypeParams{
			JobType:    jobType,
			Recurrence: rec,
			Accounts:   accounts,
			Now:        now,
		})
		created += n
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", jobType, err))
			s.logger.ErrorContext(ctx, "scheduling job type failed",
				"job_type", jobType,
				"error", err,
			)
		}
	}

	return created, errors.Join(errs...)
}

// recurrenceFor reports whether the job type is due for scheduling at now,
// and with which period key and execution window.
func (s *SchedulerService) recurrenceFor(jobType model.JobType, now time.Time) (recurrence, bool) {
	dayWindow, err := schedule.DayWindow(now, s.cfg.WindowStart, s.cfg.WindowEnd)
	if err != nil {
		return recurrence{}, false
	}
	inDayWindow := !now.Before(dayWindow.Start) && now.Before(dayWindow.End)

	switch jobType {
	case model.JobTypeSalesSync:
		// every slot, all day
		return recurrence{
			key:    schedule.SlotKey(now, s.cfg.SalesSlot),
			window: schedule.SlotWindow(now, s.cfg.SalesSlot),
		}, true

	case model.JobTypeSettlementsDaily, model.JobTypeAnticipationsDaily,
		model.JobTypeReviewsSync, model.JobTypeFinancialEventsSync,
		model.JobTypeReconciliationStatus:
		return recurrence{key: schedule.DayKey(now), window: dayWindow}, inDayWindow

	case model.JobTypeSettlementsWeekly, model.JobTypeAnticipationsWeekly:
		due := inDayWindow && now.Weekday() == s.cfg.WeeklyDay.Weekday()
		return recurrence{key: schedule.DayKey(now), window: dayWindow}, due

	case model.JobTypeConciliation:
		due := inDayWindow && now.Day() == s.cfg.MonthlyDay
		return recurrence{key: schedule.PreviousCompetenceKey(now), window: dayWindow}, due
	}

	return recurrence{}, false
}

type scheduleTypeParams struct {
	JobType    model.JobType
	Recurrence recurrence
	Accounts   []model.Account
	Now        time.Time
}

// scheduleType inserts jobs for up to BatchSize accounts still missing one
// this period. The account's position in the full directory listing, not in
// the batch, determines its slot in the window, so spreading stays linear
// across ticks.
func (s *SchedulerService) scheduleType(ctx context.Context, p scheduleTypeParams) (int, error) {
	existing, err := s.jobs.ScheduledAccountIDs(ctx, p.JobType, p.Recurrence.key)
	if err != nil {
		return 0, fmt.Errorf("scheduled accounts: %w", err)
	}
	if len(existing) >= len(p.Accounts) {
		return 0, nil
	}

	total := len(p.Accounts)
	selected := 0
	created := 0
	var firstErr error

	for idx, acct := range p.Accounts {
		if _, ok := existing[acct.ID]; ok {
			continue
		}
		if selected >= s.cfg.BatchSize {
			break
		}
		selected++

		req := &model.CreateJobRequest{
			Type:         p.JobType,
			AccountID:    acct.ID,
			MerchantID:   acct.MerchantID,
			Competence:   p.Recurrence.key.Competence,
			JobDay:       p.Recurrence.key.JobDay,
			JobSlot:      p.Recurrence.key.JobSlot,
			ScheduledFor: p.Recurrence.window.At(idx, total, p.Now),
		}

		job, inserted, createErr := s.jobs.CreateIfAbsent(ctx, req)
		if createErr != nil {
			// partial batches are safe; the next tick retries the gaps
			if firstErr == nil {
				firstErr = createErr
			}
			s.logger.WarnContext(ctx, "job creation failed",
				"job_type", p.JobType,
				"account_id", acct.ID,
				"error", createErr,
			)
			continue
		}
		if !inserted {
			// another replica created it first; nothing to do
			continue
		}

		created++
		s.logger.DebugContext(ctx, "job created",
			"job_id", job.ID,
			"job_type", p.JobType,
			"account_id", acct.ID,
			"scheduled_for", job.ScheduledFor,
		)
	}

	if s.metrics != nil && created > 0 {
		s.metrics.Count("scheduler.jobs_created", int64(created), map[string]string{
			"job_type": string(p.JobType),
		})
	}

	return created, firstErr
}
