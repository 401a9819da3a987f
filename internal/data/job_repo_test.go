package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexpanel/ifood-sync/internal/domain/model"
	"github.com/dexpanel/ifood-sync/internal/domain/schedule"
	"github.com/dexpanel/ifood-sync/internal/testutil"
)

var repoNow = time.Date(2024, 3, 15, 4, 0, 0, 0, time.UTC)

func newTestRepo(db *sql.DB, tp TimeProvider) *JobRepo {
	return NewJobRepo(db, RepoConfig{MaxAttempts: 3, TimeProvider: tp})
}

func dayRequest(accountID, day string) *model.CreateJobRequest {
	return &model.CreateJobRequest{
		Type:         model.JobTypeSettlementsDaily,
		AccountID:    accountID,
		MerchantID:   "m-" + accountID,
		JobDay:       &day,
		ScheduledFor: repoNow,
	}
}

func TestCreateIfAbsentDeduplicates(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))
		ctx := context.Background()

		job, inserted, err := repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-15"))
		require.NoError(t, err)
		require.True(t, inserted)
		assert.Equal(t, model.JobStatusPending, job.Status)
		require.NotNil(t, job.JobDay)
		assert.Equal(t, "2024-03-15", *job.JobDay)

		// Same type, account, and period: conflict is a silent no-op.
		dup, inserted, err := repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-15"))
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Nil(t, dup)

		// A different period inserts fine.
		_, inserted, err = repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-16"))
		require.NoError(t, err)
		assert.True(t, inserted)

		// So does a different account in the same period.
		_, inserted, err = repo.CreateIfAbsent(ctx, dayRequest("acct-2", "2024-03-15"))
		require.NoError(t, err)
		assert.True(t, inserted)
	})
}

func TestCreateIfAbsentValidatesRequest(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))

		req := dayRequest("acct-1", "2024-03-15")
		req.JobDay = nil
		_, _, err := repo.CreateIfAbsent(context.Background(), req)
		assert.Error(t, err)

		_, _, err = repo.CreateIfAbsent(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestCandidatesReturnsDueJobsInOrder(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		tp := NewFixedTimeProvider(repoNow)
		repo := newTestRepo(db, tp)
		ctx := context.Background()

		early := dayRequest("acct-1", "2024-03-15")
		early.ScheduledFor = repoNow.Add(-2 * time.Hour)
		late := dayRequest("acct-2", "2024-03-15")
		late.ScheduledFor = repoNow.Add(-1 * time.Hour)
		future := dayRequest("acct-3", "2024-03-15")
		future.ScheduledFor = repoNow.Add(3 * time.Hour)

		for _, req := range []*model.CreateJobRequest{late, early, future} {
			_, inserted, err := repo.CreateIfAbsent(ctx, req)
			require.NoError(t, err)
			require.True(t, inserted)
		}

		jobs, err := repo.Candidates(ctx, []model.JobType{model.JobTypeSettlementsDaily}, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 2, "jobs scheduled in the future are not due")
		assert.Equal(t, "acct-1", jobs[0].AccountID)
		assert.Equal(t, "acct-2", jobs[1].AccountID)
	})
}

func TestCandidatesHonorsRetryDeadline(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		tp := NewFixedTimeProvider(repoNow)
		repo := newTestRepo(db, tp)
		ctx := context.Background()

		job, _, err := repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-15"))
		require.NoError(t, err)

		_, ok, err := repo.Claim(ctx, job.ID, "w-1")
		require.NoError(t, err)
		require.True(t, ok)

		retryAt := repoNow.Add(5 * time.Minute)
		_, ok, err = repo.MarkFailed(ctx, FailParams{ID: job.ID, ErrMsg: "boom", RetryAt: &retryAt})
		require.NoError(t, err)
		require.True(t, ok)

		jobs, err := repo.Candidates(ctx, []model.JobType{model.JobTypeSettlementsDaily}, 10)
		require.NoError(t, err)
		assert.Empty(t, jobs, "job is backed off until next_retry_at")

		tp.AddTime(6 * time.Minute)
		jobs, err = repo.Candidates(ctx, []model.JobType{model.JobTypeSettlementsDaily}, 10)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}

func TestClaimIsExclusive(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))
		ctx := context.Background()

		job, _, err := repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-15"))
		require.NoError(t, err)

		claimed, ok, err := repo.Claim(ctx, job.ID, "w-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.JobStatusRunning, claimed.Status)
		require.NotNil(t, claimed.LockedBy)
		assert.Equal(t, "w-1", *claimed.LockedBy)
		assert.NotNil(t, claimed.LockedAt)

		// The losing worker sees ok=false, not an error.
		_, ok, err = repo.Claim(ctx, job.ID, "w-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMarkSucceededReleasesLease(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))
		ctx := context.Background()

		job, _, err := repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-15"))
		require.NoError(t, err)

		// Success requires a held lease.
		ok, err := repo.MarkSucceeded(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = repo.Claim(ctx, job.ID, "w-1")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.MarkSucceeded(ctx, job.ID)
		require.NoError(t, err)
		require.True(t, ok)

		stored, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusSuccess, stored.Status)
		assert.Equal(t, 1, stored.Attempts)
		assert.Nil(t, stored.LockedBy)
		assert.Nil(t, stored.LockedAt)
		assert.Nil(t, stored.LastError)
	})
}

func TestMarkFailedFlipsToFailedAtAttemptCeiling(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))
		ctx := context.Background()

		job, _, err := repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-15"))
		require.NoError(t, err)

		retryAt := repoNow.Add(5 * time.Minute)

		for attempt := 1; attempt <= 3; attempt++ {
			_, ok, claimErr := repo.Claim(ctx, job.ID, "w-1")
			require.NoError(t, claimErr)
			require.True(t, ok, "attempt %d claim", attempt)

			status, ok, failErr := repo.MarkFailed(ctx, FailParams{
				ID:      job.ID,
				ErrMsg:  "sync action returned status 502",
				RetryAt: &retryAt,
			})
			require.NoError(t, failErr)
			require.True(t, ok)

			if attempt < 3 {
				assert.Equal(t, model.JobStatusPending, status, "attempt %d", attempt)
			} else {
				assert.Equal(t, model.JobStatusFailed, status, "ceiling reached")
			}
		}

		stored, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, stored.Status)
		assert.Equal(t, 3, stored.Attempts)
		assert.Nil(t, stored.NextRetryAt, "terminal rows carry no retry deadline")
		require.NotNil(t, stored.LastError)
		assert.Contains(t, *stored.LastError, "502")

		// A failed job cannot be claimed again.
		_, ok, err := repo.Claim(ctx, job.ID, "w-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMarkFailedWithoutRetryStillCountsAttempt(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))
		ctx := context.Background()

		job, _, err := repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-15"))
		require.NoError(t, err)

		_, ok, err := repo.Claim(ctx, job.ID, "w-1")
		require.NoError(t, err)
		require.True(t, ok)

		status, ok, err := repo.MarkFailed(ctx, FailParams{ID: job.ID, ErrMsg: "status 422"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.JobStatusPending, status)

		stored, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Attempts)
		assert.Nil(t, stored.NextRetryAt, "client errors get no backoff deadline")
	})
}

func TestScheduledAccountIDs(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))
		ctx := context.Background()

		for _, acct := range []string{"acct-1", "acct-2"} {
			_, inserted, err := repo.CreateIfAbsent(ctx, dayRequest(acct, "2024-03-15"))
			require.NoError(t, err)
			require.True(t, inserted)
		}

		day := "2024-03-15"
		ids, err := repo.ScheduledAccountIDs(ctx, model.JobTypeSettlementsDaily, schedule.Key{JobDay: &day})
		require.NoError(t, err)
		assert.Len(t, ids, 2)
		assert.Contains(t, ids, "acct-1")
		assert.Contains(t, ids, "acct-2")

		other := "2024-03-16"
		ids, err = repo.ScheduledAccountIDs(ctx, model.JobTypeSettlementsDaily, schedule.Key{JobDay: &other})
		require.NoError(t, err)
		assert.Empty(t, ids)

		_, err = repo.ScheduledAccountIDs(ctx, model.JobTypeSettlementsDaily, schedule.Key{})
		assert.ErrorIs(t, err, ErrMissingDedupKey)
	})
}

func TestGetByIDNotFound(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))
		_, err := repo.GetByID(context.Background(), "11111111-1111-1111-1111-111111111111")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestStatsGroupsByTypeAndStatus(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))
		ctx := context.Background()

		_, _, err := repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-15"))
		require.NoError(t, err)

		running, _, err := repo.CreateIfAbsent(ctx, dayRequest("acct-2", "2024-03-15"))
		require.NoError(t, err)
		_, ok, err := repo.Claim(ctx, running.ID, "w-1")
		require.NoError(t, err)
		require.True(t, ok)

		slot := "2024-03-15T10:30"
		sales, _, err := repo.CreateIfAbsent(ctx, &model.CreateJobRequest{
			Type:         model.JobTypeSalesSync,
			AccountID:    "acct-1",
			MerchantID:   "m-acct-1",
			JobSlot:      &slot,
			ScheduledFor: repoNow,
		})
		require.NoError(t, err)
		_, ok, err = repo.Claim(ctx, sales.ID, "w-1")
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = repo.MarkSucceeded(ctx, sales.ID)
		require.NoError(t, err)
		require.True(t, ok)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)

		daily := stats[model.JobTypeSettlementsDaily]
		assert.Equal(t, 1, daily.Pending)
		assert.Equal(t, 1, daily.Running)

		salesStats := stats[model.JobTypeSalesSync]
		assert.Equal(t, 1, salesStats.Success)
	})
}

func TestRequeueStuckRunning(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		tp := NewFixedTimeProvider(repoNow)
		repo := newTestRepo(db, tp)
		ctx := context.Background()

		stale, _, err := repo.CreateIfAbsent(ctx, dayRequest("acct-1", "2024-03-15"))
		require.NoError(t, err)
		fresh, _, err := repo.CreateIfAbsent(ctx, dayRequest("acct-2", "2024-03-15"))
		require.NoError(t, err)

		// Claim the first job, then advance the clock past the lease TTL
		// before claiming the second.
		_, ok, err := repo.Claim(ctx, stale.ID, "w-dead")
		require.NoError(t, err)
		require.True(t, ok)

		tp.AddTime(20 * time.Minute)
		_, ok, err = repo.Claim(ctx, fresh.ID, "w-alive")
		require.NoError(t, err)
		require.True(t, ok)

		count, err := repo.RequeueStuckRunning(ctx, 15*time.Minute, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		requeued, err := repo.GetByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, requeued.Status)
		assert.Nil(t, requeued.LockedBy)
		assert.Nil(t, requeued.LockedAt)

		untouched, err := repo.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, untouched.Status)

		// Second pass finds nothing left to requeue.
		count, err = repo.RequeueStuckRunning(ctx, 15*time.Minute, 100)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestRequeueStuckRunningValidation(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := newTestRepo(db, NewFixedTimeProvider(repoNow))

		_, err := repo.RequeueStuckRunning(context.Background(), 0, 100)
		assert.Error(t, err)

		_, err = repo.RequeueStuckRunning(context.Background(), 15*time.Minute, 0)
		assert.Error(t, err)
	})
}
