// Package core defines the ports between the service layer and its
// collaborators (job store, account directory, sync action, sync state).
package core

import (
	"context"
	"time"

	"github.com/dexpanel/ifood-sync/internal/adapters/syncapi"
	"github.com/dexpanel/ifood-sync/internal/data"
	"github.com/dexpanel/ifood-sync/internal/domain/model"
	"github.com/dexpanel/ifood-sync/internal/domain/schedule"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for job queue operations.
type JobRepository interface {
	CreateIfAbsent(ctx context.Context, req *model.CreateJobRequest) (*model.Job, bool, error)
	Candidates(ctx context.Context, jobTypes []model.JobType, limit int) ([]*model.Job, error)
	Claim(ctx context.Context, id, workerID string) (*model.Job, bool, error)
	MarkSucceeded(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, p data.FailParams) (model.JobStatus, bool, error)
	ScheduledAccountIDs(ctx context.Context, jobType model.JobType, key schedule.Key) (map[string]struct{}, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	Stats(ctx context.Context) (map[model.JobType]model.JobStats, error)
}

// ReaperRepository defines the interface for stale-lease cleanup operations.
type ReaperRepository interface {
	// RequeueStuckRunning returns jobs whose lease outlived leaseTTL to the
	// pending state. Processes up to batchSize jobs per call.
	// Returns the number of jobs requeued.
	RequeueStuckRunning(ctx context.Context, leaseTTL time.Duration, batchSize int) (int64, error)
}

// AccountDirectory lists active tenant accounts with their upstream
// marketplace merchant identifier.
type AccountDirectory interface {
	ListActive(ctx context.Context) ([]model.Account, error)
}

// SyncStateReader exposes per-tenant sync progress, used to compute the next
// unsynced range for incremental job types.
type SyncStateReader interface {
	LastSyncedDay(ctx context.Context, accountID, resource string) (string, bool, error)
}

// SyncInvoker performs one sync action call.
type SyncInvoker interface {
	Invoke(ctx context.Context, call syncapi.Call) error
}

// CallLimiter admits outbound calls under the process-wide rate limit.
type CallLimiter interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}
