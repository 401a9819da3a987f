package testutil

import (
	"time"

	"github.com/dexpanel/ifood-sync/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
// The default is a daily settlements job for the day before TestTime.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Type:         model.JobTypeSettlementsDaily,
			AccountID:    "acct-test",
			MerchantID:   "merchant-test",
			JobDay:       StringPtr("2023-12-31"),
			ScheduledFor: TestTime(),
		},
	}
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithAccount sets the tenant account and merchant ids.
func (b *JobRequestBuilder) WithAccount(accountID, merchantID string) *JobRequestBuilder {
	b.req.AccountID = accountID
	b.req.MerchantID = merchantID
	return b
}

// WithCompetence keys the job by competence month, clearing the other dedup keys.
func (b *JobRequestBuilder) WithCompetence(competence string) *JobRequestBuilder {
	b.req.Competence = StringPtr(competence)
	b.req.JobDay = nil
	b.req.JobSlot = nil
	return b
}

// WithJobDay keys the job by day, clearing the other dedup keys.
func (b *JobRequestBuilder) WithJobDay(day string) *JobRequestBuilder {
	b.req.Competence = nil
	b.req.JobDay = StringPtr(day)
	b.req.JobSlot = nil
	return b
}

// WithJobSlot keys the job by slot, clearing the other dedup keys.
func (b *JobRequestBuilder) WithJobSlot(slot string) *JobRequestBuilder {
	b.req.Competence = nil
	b.req.JobDay = nil
	b.req.JobSlot = StringPtr(slot)
	return b
}

// WithScheduledFor sets the time the job becomes due.
func (b *JobRequestBuilder) WithScheduledFor(at time.Time) *JobRequestBuilder {
	b.req.ScheduledFor = at
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// Common test job request presets

// SalesSyncJobRequest creates a slot-keyed sales sync request.
func SalesSyncJobRequest(slot string) *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeSalesSync).
		WithJobSlot(slot).
		Build()
}

// ConciliationJobRequest creates a competence-keyed conciliation request.
func ConciliationJobRequest(competence string) *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeConciliation).
		WithCompetence(competence).
		Build()
}

// WeeklyJobRequest creates a day-keyed weekly settlements request
// where the day marks the Monday of the synced week.
func WeeklyJobRequest(weekStart string) *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeSettlementsWeekly).
		WithJobDay(weekStart).
		Build()
}

// AccountBuilder provides a fluent interface for building Account objects for testing.
type AccountBuilder struct {
	account model.Account
}

// NewAccount creates a new AccountBuilder for an active test account.
func NewAccount(id string) *AccountBuilder {
	return &AccountBuilder{
		account: model.Account{
			ID:         id,
			MerchantID: "merchant-" + id,
			IsActive:   true,
		},
	}
}

// WithMerchantID sets the upstream merchant id.
func (b *AccountBuilder) WithMerchantID(merchantID string) *AccountBuilder {
	b.account.MerchantID = merchantID
	return b
}

// Inactive marks the account as inactive.
func (b *AccountBuilder) Inactive() *AccountBuilder {
	b.account.IsActive = false
	return b
}

// Build returns the constructed Account.
func (b *AccountBuilder) Build() model.Account {
	return b.account
}
