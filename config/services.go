package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dexpanel/ifood-sync/internal/domain/model"
	"github.com/dexpanel/ifood-sync/internal/domain/schedule"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the operational HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeScheduler runs the job scheduler.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeWorker runs the sync job worker.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs the stale lease reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeScheduler,
		ServiceModeWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP,
			ServiceModeScheduler,
			ServiceModeWorker,
			ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, scheduler, worker, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// Weekday is a time.Weekday that loads from env as an English day name.
type Weekday time.Weekday

// UnmarshalText parses a day name such as "Monday" (case-insensitive).
func (w *Weekday) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			*w = Weekday(d)
			return nil
		}
	}
	return fmt.Errorf("invalid weekday %q", string(text))
}

// Weekday returns the underlying time.Weekday.
func (w Weekday) Weekday() time.Weekday {
	return time.Weekday(w)
}

func (w Weekday) String() string {
	return w.Weekday().String()
}

// SchedulerConfig contains scheduler service configuration.
type SchedulerConfig struct {
	// TickInterval is the scheduler tick interval.
	TickInterval time.Duration `env:"SCHEDULER_TICK_INTERVAL" envDefault:"60s"`

	// BatchSize caps the number of jobs created per job type per tick.
	BatchSize int `env:"SCHEDULER_BATCH_SIZE" envDefault:"20"`

	// WindowStart and WindowEnd bound the daily execution window that
	// scheduled timestamps are spread across, as local "HH:MM" clock times.
	WindowStart schedule.ClockTime `env:"SCHEDULER_WINDOW_START" envDefault:"03:00"`
	WindowEnd   schedule.ClockTime `env:"SCHEDULER_WINDOW_END"   envDefault:"07:00"`

	// WeeklyDay is the day weekly job types fire on.
	WeeklyDay Weekday `env:"SCHEDULER_WEEKLY_DAY" envDefault:"Monday"`

	// MonthlyDay is the day of month monthly job types fire on.
	MonthlyDay int `env:"SCHEDULER_MONTHLY_DAY" envDefault:"5"`

	// SalesSlot is the width of a sales sync scheduling slot.
	SalesSlot time.Duration `env:"SCHEDULER_SALES_SLOT" envDefault:"30m"`

	// JobTypes lists the job types this scheduler instance manages.
	JobTypes []model.JobType `env:"SCHEDULER_JOB_TYPES"`

	// AccountCacheTTL bounds staleness of the cached active account listing.
	AccountCacheTTL time.Duration `env:"SCHEDULER_ACCOUNT_CACHE_TTL" envDefault:"60s"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.TickInterval < 1*time.Second {
		s.TickInterval = 1 * time.Second
	}
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.MonthlyDay < 1 {
		s.MonthlyDay = 1
	}
	if s.MonthlyDay > 28 {
		// Keep monthly jobs firing in February too
		s.MonthlyDay = 28
	}
	if s.SalesSlot < 1*time.Minute {
		s.SalesSlot = 1 * time.Minute
	}
	if !s.WindowStart.Before(s.WindowEnd) {
		s.WindowStart = schedule.ClockTime{Hour: 3}
		s.WindowEnd = schedule.ClockTime{Hour: 7}
	}
	if len(s.JobTypes) == 0 {
		s.JobTypes = model.AllJobTypes()
	}
	if s.AccountCacheTTL < 0 {
		s.AccountCacheTTL = 0
	}
}

// WorkerConfig contains sync worker service configuration.
type WorkerConfig struct {
	// MaxConcurrency is the maximum number of jobs processed at once.
	MaxConcurrency int `env:"WORKER_MAX_CONCURRENCY" envDefault:"8"`

	// PollInterval is the sleep between poll ticks when the queue is idle.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"10s"`

	// MaxAttempts is the attempt ceiling before a job is marked failed.
	MaxAttempts int `env:"WORKER_MAX_ATTEMPTS" envDefault:"3"`

	// JobTypes lists the job types this worker instance claims.
	JobTypes []model.JobType `env:"WORKER_JOB_TYPES"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.MaxConcurrency < 1 {
		w.MaxConcurrency = 1
	}
	if w.PollInterval < 1*time.Second {
		w.PollInterval = 1 * time.Second
	}
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}
	if len(w.JobTypes) == 0 {
		w.JobTypes = model.AllJobTypes()
	}
}

// ReaperConfig contains stale lease reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// LeaseTTL is how long a running job may hold its lease before it is
	// considered abandoned and requeued.
	LeaseTTL time.Duration `env:"REAPER_LEASE_TTL" envDefault:"15m"`

	// BatchSize is the maximum number of rows to requeue per operation.
	// Batching prevents long locks on a large jobs table.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	// A lease shorter than the longest plausible sync call requeues jobs
	// that are still in flight.
	if r.LeaseTTL < 5*time.Minute {
		r.LeaseTTL = 5 * time.Minute
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}

// RateLimitConfig contains outbound sync call rate limiting configuration.
type RateLimitConfig struct {
	// MaxConcurrency is the maximum number of in-flight sync calls.
	MaxConcurrency int `env:"RATE_MAX_CONCURRENCY" envDefault:"4"`

	// MinDelay is the minimum spacing between consecutive call dispatches.
	MinDelay time.Duration `env:"RATE_MIN_DELAY" envDefault:"250ms"`
}

// Sanitize applies guardrails to rate limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.MaxConcurrency < 1 {
		r.MaxConcurrency = 1
	}
	if r.MinDelay < 0 {
		r.MinDelay = 0
	}
}

// SyncAPIConfig contains configuration for the sync action service client.
type SyncAPIConfig struct {
	// BaseURL is the base URL of the sync action service.
	BaseURL string `env:"SYNC_API_BASE_URL" envDefault:"http://localhost:9090"`

	// Timeout bounds a single sync call.
	Timeout time.Duration `env:"SYNC_API_TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to sync API configuration values.
func (s *SyncAPIConfig) Sanitize() {
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
}
