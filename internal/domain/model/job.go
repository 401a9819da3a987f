// Package model defines the core data types shared across the ifood-sync job subsystem.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType identifies which marketplace sync action a job performs.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeSalesSync pulls new sales since the last completed sync.
	JobTypeSalesSync JobType = "sales_sync"
	// JobTypeSettlementsDaily pulls settlements for the previous calendar day.
	JobTypeSettlementsDaily JobType = "settlements_daily"
	// JobTypeSettlementsWeekly pulls settlements for the previous Monday-Sunday week.
	JobTypeSettlementsWeekly JobType = "settlements_weekly"
	// JobTypeAnticipationsDaily pulls anticipations for the previous calendar day.
	JobTypeAnticipationsDaily JobType = "anticipations_daily"
	// JobTypeAnticipationsWeekly pulls anticipations for the previous Monday-Sunday week.
	JobTypeAnticipationsWeekly JobType = "anticipations_weekly"
	// JobTypeReviewsSync pulls recent merchant reviews.
	JobTypeReviewsSync JobType = "reviews_sync"
	// JobTypeFinancialEventsSync pulls financial events for the previous calendar day.
	JobTypeFinancialEventsSync JobType = "financial_events_sync"
	// JobTypeReconciliationStatus refreshes the reconciliation status for the current competence.
	JobTypeReconciliationStatus JobType = "reconciliation_status"
	// JobTypeConciliation runs the monthly conciliation for the previous competence.
	JobTypeConciliation JobType = "conciliation"

	// JobStatusPending indicates a job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a worker holds the job's lease.
	JobStatusRunning JobStatus = "running"
	// JobStatusSuccess indicates the sync action completed successfully.
	JobStatusSuccess JobStatus = "success"
	// JobStatusFailed indicates the job exhausted its attempts.
	JobStatusFailed JobStatus = "failed"
)

// AllJobTypes lists every job type in a stable order.
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeSalesSync,
		JobTypeSettlementsDaily,
		JobTypeSettlementsWeekly,
		JobTypeAnticipationsDaily,
		JobTypeAnticipationsWeekly,
		JobTypeReviewsSync,
		JobTypeFinancialEventsSync,
		JobTypeReconciliationStatus,
		JobTypeConciliation,
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// ErrNoJobsAvailable is returned when no claimable jobs are due.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobType is one of the known sync actions.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeSalesSync, JobTypeSettlementsDaily, JobTypeSettlementsWeekly,
		JobTypeAnticipationsDaily, JobTypeAnticipationsWeekly, JobTypeReviewsSync,
		JobTypeFinancialEventsSync, JobTypeReconciliationStatus, JobTypeConciliation:
		return true
	}
	return false
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusSuccess ||
		s == JobStatusFailed
}

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// Job is one unit of scheduled sync work tied to a tenant account.
// Exactly one of Competence, JobDay, or JobSlot is set, depending on the
// job type's deduplication key.
type Job struct {
	ID           string     `json:"id"                      db:"id"`
	Type         JobType    `json:"job_type"                db:"job_type"`
	AccountID    string     `json:"account_id"              db:"account_id"`
	MerchantID   string     `json:"merchant_id"             db:"merchant_id"`
	Competence   *string    `json:"competence,omitempty"    db:"competence"`
	JobDay       *string    `json:"job_day,omitempty"       db:"job_day"`
	JobSlot      *string    `json:"job_slot,omitempty"      db:"job_slot"`
	Status       JobStatus  `json:"status"                  db:"status"`
	ScheduledFor time.Time  `json:"scheduled_for"           db:"scheduled_for"`
	LockedAt     *time.Time `json:"locked_at,omitempty"     db:"locked_at"`
	LockedBy     *string    `json:"locked_by,omitempty"     db:"locked_by"`
	Attempts     int        `json:"attempts"                db:"attempts"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`
	LastError    *string    `json:"last_error,omitempty"    db:"last_error"`
	CreatedAt    time.Time  `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"              db:"updated_at"`
}

// DedupKey returns the populated dedup key value for the job.
func (j *Job) DedupKey() (string, bool) {
	switch {
	case j.Competence != nil:
		return *j.Competence, true
	case j.JobDay != nil:
		return *j.JobDay, true
	case j.JobSlot != nil:
		return *j.JobSlot, true
	}
	return "", false
}

// CreateJobRequest represents a request to enqueue a new job.
type CreateJobRequest struct {
	Type         JobType   `json:"job_type"`
	AccountID    string    `json:"account_id"`
	MerchantID   string    `json:"merchant_id"`
	Competence   *string   `json:"competence,omitempty"`
	JobDay       *string   `json:"job_day,omitempty"`
	JobSlot      *string   `json:"job_slot,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if r.AccountID == "" {
		return errors.New("account id is required")
	}
	if r.MerchantID == "" {
		return errors.New("merchant id is required")
	}
	keys := 0
	for _, set := range []bool{r.Competence != nil, r.JobDay != nil, r.JobSlot != nil} {
		if set {
			keys++
		}
	}
	if keys != 1 {
		return errors.New("exactly one dedup key is required")
	}
	if r.ScheduledFor.IsZero() {
		return errors.New("scheduled_for is required")
	}
	return nil
}

// JobStats represents per-status job counts.
type JobStats struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}
