package service

import (
	"context"
	"sync"
	"time"

	"github.com/dexpanel/ifood-sync/internal/adapters/syncapi"
	"github.com/dexpanel/ifood-sync/internal/data"
	"github.com/dexpanel/ifood-sync/internal/domain/model"
	"github.com/dexpanel/ifood-sync/internal/domain/schedule"
)

// fakeJobRepo is an in-memory JobRepository with programmable failures.
type fakeJobRepo struct {
	mu sync.Mutex

	jobs     map[string]*model.Job
	nextID   int
	existing map[string]struct{}

	createErr     error
	candidatesErr error
	listErr       error

	// duplicateAccounts makes CreateIfAbsent report inserted=false for these
	// account ids, simulating a racing replica.
	duplicateAccounts map[string]bool

	// claimDenied makes Claim return ok=false for these job ids.
	claimDenied map[string]bool

	created   []*model.Job
	succeeded []string
	failed    []data.FailParams
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:              make(map[string]*model.Job),
		existing:          make(map[string]struct{}),
		duplicateAccounts: make(map[string]bool),
		claimDenied:       make(map[string]bool),
	}
}

func (f *fakeJobRepo) CreateIfAbsent(_ context.Context, req *model.CreateJobRequest) (*model.Job, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, false, f.createErr
	}
	if err := req.Validate(); err != nil {
		return nil, false, err
	}
	if f.duplicateAccounts[req.AccountID] {
		return nil, false, nil
	}

	f.nextID++
	job := &model.Job{
		ID:           string(rune('a' + f.nextID - 1)),
		Type:         req.Type,
		AccountID:    req.AccountID,
		MerchantID:   req.MerchantID,
		Competence:   req.Competence,
		JobDay:       req.JobDay,
		JobSlot:      req.JobSlot,
		Status:       model.JobStatusPending,
		ScheduledFor: req.ScheduledFor,
	}
	f.jobs[job.ID] = job
	f.created = append(f.created, job)
	return job, true, nil
}

func (f *fakeJobRepo) Candidates(_ context.Context, _ []model.JobType, limit int) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	out := make([]*model.Job, 0, limit)
	for _, job := range f.created {
		if job.Status != model.JobStatusPending {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeJobRepo) Claim(_ context.Context, id, workerID string) (*model.Job, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claimDenied[id] {
		return nil, false, nil
	}
	job, ok := f.jobs[id]
	if !ok || job.Status != model.JobStatusPending {
		return nil, false, nil
	}
	job.Status = model.JobStatusRunning
	job.LockedBy = &workerID
	return job, true, nil
}

func (f *fakeJobRepo) MarkSucceeded(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[id]
	if !ok || job.Status != model.JobStatusRunning {
		return false, nil
	}
	job.Status = model.JobStatusSuccess
	f.succeeded = append(f.succeeded, id)
	return true, nil
}

func (f *fakeJobRepo) MarkFailed(_ context.Context, p data.FailParams) (model.JobStatus, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[p.ID]
	if !ok || job.Status != model.JobStatusRunning {
		return "", false, nil
	}
	job.Attempts++
	job.Status = model.JobStatusPending
	job.NextRetryAt = p.RetryAt
	f.failed = append(f.failed, p)
	return job.Status, true, nil
}

func (f *fakeJobRepo) ScheduledAccountIDs(_ context.Context, _ model.JobType, _ schedule.Key) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]struct{}, len(f.existing))
	for id := range f.existing {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, id string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobRepo) Stats(_ context.Context) (map[model.JobType]model.JobStats, error) {
	return map[model.JobType]model.JobStats{}, nil
}

// fakeAccounts serves a fixed account listing.
type fakeAccounts struct {
	accounts []model.Account
	err      error
	calls    int
}

func (f *fakeAccounts) ListActive(context.Context) ([]model.Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts, nil
}

// fakeInvoker records calls and returns a programmable error.
type fakeInvoker struct {
	mu    sync.Mutex
	calls []syncapi.Call
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, call syncapi.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// passLimiter admits every call immediately.
type passLimiter struct{}

func (passLimiter) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeSyncState returns a fixed last synced day.
type fakeSyncState struct {
	day   string
	found bool
	err   error
}

func (f *fakeSyncState) LastSyncedDay(context.Context, string, string) (string, bool, error) {
	return f.day, f.found, f.err
}

// fakeReaperRepo yields a scripted sequence of requeue counts.
type fakeReaperRepo struct {
	counts []int64
	errs   []error
	calls  int
}

func (f *fakeReaperRepo) RequeueStuckRunning(context.Context, time.Duration, int) (int64, error) {
	i := f.calls
	f.calls++
	var count int64
	if i < len(f.counts) {
		count = f.counts[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return count, err
}
