package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dexpanel/ifood-sync/internal/domain/model"
	"github.com/dexpanel/ifood-sync/internal/domain/schedule"
)

// CreateIfAbsent inserts a new pending job unless one already exists for the
// same (job_type, account_id, dedup key). The second return value reports
// whether a row was actually created; a unique-violation conflict is a no-op.
func (r *JobRepo) CreateIfAbsent(
	ctx context.Context,
	req *model.CreateJobRequest,
) (*model.Job, bool, error) {
	if req == nil {
		return nil, false, errors.New("create job request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, false, validateErr
	}

	now := r.timeProvider.Now().UTC()
	query := `
      INSERT INTO jobs(id, job_type, account_id, merchant_id, competence, job_day, job_slot, status, scheduled_for, created_at, updated_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',$8,$9,$9)
      RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query,
		uuid.NewString(),
		req.Type,
		req.AccountID,
		req.MerchantID,
		req.Competence,
		req.JobDay,
		req.JobSlot,
		req.ScheduledFor.UTC(),
		now,
	)

	job, scanErr := scanJobFromRow(row)
	if scanErr != nil {
		if isUniqueViolation(scanErr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("insert job: %w", scanErr)
	}

	return job, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Candidates returns due, claimable jobs of the given types in scheduled
// order. Rows returned here are not claimed; callers must Claim each one.
func (r *JobRepo) Candidates(
	ctx context.Context,
	jobTypes []model.JobType,
	limit int,
) ([]*model.Job, error) {
	if len(jobTypes) == 0 {
		return nil, errors.New("at least one job type is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	now := r.timeProvider.Now().UTC()
	placeholders := make([]string, len(jobTypes))
	args := make([]any, 0, len(jobTypes)+2)
	for i, jt := range jobTypes {
		if !jt.Valid() {
			return nil, fmt.Errorf("invalid job type: %s", jt)
		}
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, jt)
	}
	args = append(args, now, limit)

	query := fmt.Sprintf(`
      SELECT %s FROM jobs
      WHERE job_type IN (%s)
        AND status = 'pending'
        AND scheduled_for <= $%d
        AND (next_retry_at IS NULL OR next_retry_at <= $%d)
      ORDER BY scheduled_for ASC, created_at ASC
      LIMIT $%d`,
		jobColumns, strings.Join(placeholders, ", "), len(jobTypes)+1, len(jobTypes)+1, len(jobTypes)+2)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJobFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan candidate: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate candidates: %w", rowsErr)
	}
	return jobs, nil
}

// Claim attempts to take the lease on a pending job via a conditional update.
// The precondition is re-checked at update time, so when two workers race on
// the same candidate exactly one sees the returned row; the loser gets
// ok=false and should skip the job.
func (r *JobRepo) Claim(ctx context.Context, id, workerID string) (*model.Job, bool, error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, errors.New("job id is required")
	}
	if strings.TrimSpace(workerID) == "" {
		return nil, false, errors.New("worker id is required")
	}

	now := r.timeProvider.Now().UTC()
	query := `
      UPDATE jobs
      SET status = 'running',
          locked_at = $2,
          locked_by = $3,
          updated_at = $2
      WHERE id = $1 AND status = 'pending'
      RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query, id, now, workerID)
	job, scanErr := scanJobFromRow(row)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("claim job: %w", scanErr)
	}
	return job, true, nil
}

// MarkSucceeded records a successful attempt and releases the lease.
func (r *JobRepo) MarkSucceeded(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()

	query := `
      UPDATE jobs
      SET status = 'success',
          attempts = attempts + 1,
          next_retry_at = NULL,
          last_error = NULL,
          locked_at = NULL,
          locked_by = NULL,
          updated_at = $2
      WHERE id = $1 AND status = 'running'
    `

	res, err := r.DB.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("mark job succeeded: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark succeeded rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// FailParams groups parameters for recording a failed attempt.
type FailParams struct {
	ID      string
	ErrMsg  string
	RetryAt *time.Time
}

// MarkFailed records a failed attempt and releases the lease. RetryAt is the
// backoff deadline for retryable failures and nil for client-class failures.
// Once the attempt count reaches the configured maximum the status flips to
// failed and next_retry_at is cleared regardless of RetryAt. The returned
// status reflects the row after the update; ok=false means the job was no
// longer running.
func (r *JobRepo) MarkFailed(ctx context.Context, p FailParams) (model.JobStatus, bool, error) {
	now := r.timeProvider.Now().UTC()

	var retryAt *time.Time
	if p.RetryAt != nil {
		utc := p.RetryAt.UTC()
		retryAt = &utc
	}

	query := `
      UPDATE jobs
      SET
        attempts = attempts + 1,
        last_error = $2,
        status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
        next_retry_at = CASE WHEN attempts + 1 >= $3 THEN NULL ELSE $4::timestamptz END,
        locked_at = NULL,
        locked_by = NULL,
        updated_at = $5
      WHERE id = $1 AND status = 'running'
      RETURNING status
    `

	var status model.JobStatus
	if err := r.DB.QueryRowContext(ctx, query, p.ID, p.ErrMsg, r.maxAttempts(), retryAt, now).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("mark job failed: %w", err)
	}

	return status, true, nil
}

// ScheduledAccountIDs returns the set of account ids that already have a job
// of the given type for the recurrence period identified by key.
func (r *JobRepo) ScheduledAccountIDs(
	ctx context.Context,
	jobType model.JobType,
	key schedule.Key,
) (map[string]struct{}, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("invalid job type: %s", jobType)
	}

	var column string
	value, ok := key.Value()
	if !ok {
		return nil, ErrMissingDedupKey
	}
	switch {
	case key.Competence != nil:
		column = "competence"
	case key.JobDay != nil:
		column = "job_day"
	default:
		column = "job_slot"
	}

	query := fmt.Sprintf(`SELECT account_id FROM jobs WHERE job_type = $1 AND %s = $2`, column)
	rows, err := r.DB.QueryContext(ctx, query, jobType, value)
	if err != nil {
		return nil, fmt.Errorf("select scheduled accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var accountID string
		if scanErr := rows.Scan(&accountID); scanErr != nil {
			return nil, fmt.Errorf("scan scheduled account: %w", scanErr)
		}
		out[accountID] = struct{}{}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate scheduled accounts: %w", rowsErr)
	}
	return out, nil
}

// GetByID fetches a single job.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	row := r.DB.QueryRowContext(ctx, query, id)
	job, err := scanJobFromRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Stats returns per-type job counts grouped by status.
func (r *JobRepo) Stats(ctx context.Context) (map[model.JobType]model.JobStats, error) {
	query := `
      SELECT job_type,
        COUNT(*) FILTER (WHERE status = 'pending')  AS pending,
        COUNT(*) FILTER (WHERE status = 'running')  AS running,
        COUNT(*) FILTER (WHERE status = 'success')  AS success,
        COUNT(*) FILTER (WHERE status = 'failed')   AS failed
      FROM jobs
      GROUP BY job_type
    `

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	out := make(map[model.JobType]model.JobStats)
	for rows.Next() {
		var jt model.JobType
		var stats model.JobStats
		if scanErr := rows.Scan(&jt, &stats.Pending, &stats.Running, &stats.Success, &stats.Failed); scanErr != nil {
			return nil, fmt.Errorf("scan job stats: %w", scanErr)
		}
		out[jt] = stats
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate job stats: %w", rowsErr)
	}
	return out, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	competence, jobDay, jobSlot sql.NullString
	lockedBy, lastError         sql.NullString
	lockedAt, nextRetryAt       sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.Type,
		&job.AccountID,
		&job.MerchantID,
		&d.competence,
		&d.jobDay,
		&d.jobSlot,
		&job.Status,
		&job.ScheduledFor,
		&d.lockedAt,
		&d.lockedBy,
		&job.Attempts,
		&d.nextRetryAt,
		&d.lastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Competence = cloneNullableString(d.competence)
	job.JobDay = cloneNullableString(d.jobDay)
	job.JobSlot = cloneNullableString(d.jobSlot)
	job.LockedBy = cloneNullableString(d.lockedBy)
	job.LastError = cloneNullableString(d.lastError)
	job.LockedAt = cloneNullableTime(d.lockedAt)
	job.NextRetryAt = cloneNullableTime(d.nextRetryAt)
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
