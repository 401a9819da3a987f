package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dexpanel/ifood-sync/internal/adapters/syncapi"
	"github.com/dexpanel/ifood-sync/internal/core"
	"github.com/dexpanel/ifood-sync/internal/domain/model"
	"github.com/dexpanel/ifood-sync/internal/domain/schedule"
)

// Resource names recorded in sync_status by the sync action service.
const salesResource = "sales"

// Fallback lookback for the first sales sync of an account.
const defaultSalesLookbackDays = 7

// Sync action endpoints on the sibling service, one per job type.
const (
	pathSalesSync            = "/internal/sync/sales"
	pathSettlements          = "/internal/sync/settlements"
	pathAnticipations        = "/internal/sync/anticipations"
	pathReviews              = "/internal/sync/reviews"
	pathFinancialEvents      = "/internal/sync/financial-events"
	pathReconciliationStatus = "/internal/sync/reconciliation-status"
	pathConciliation         = "/internal/sync/conciliation"
)

// ErrInvalidJobFields indicates a claimed job is missing required fields.
// Treated as a failed attempt like any other failure.
var ErrInvalidJobFields = errors.New("job is missing required fields")

// callBuilder maps a claimed job to its sync action invocation.
type callBuilder struct {
	syncState core.SyncStateReader
}

// BuildCall computes the job-type-specific parameters and target endpoint.
// The switch is exhaustive over the job type enum; an unknown type can only
// reach here through a corrupted row and is reported as invalid.
func (b *callBuilder) BuildCall(ctx context.Context, job *model.Job) (syncapi.Call, error) {
	if job.AccountID == "" || job.MerchantID == "" {
		return syncapi.Call{}, fmt.Errorf("%w: account_id and merchant_id are required", ErrInvalidJobFields)
	}

	payload := syncapi.Payload{
		AccountID:  job.AccountID,
		MerchantID: job.MerchantID,
	}

	switch job.Type {
	case model.JobTypeSalesSync:
		return b.buildSalesCall(ctx, job, payload)

	case model.JobTypeSettlementsDaily:
		day, err := jobDayOf(job)
		if err != nil {
			return syncapi.Call{}, err
		}
		r := schedule.PreviousDay(day)
		payload.From, payload.To = r.From, r.To
		return syncapi.Call{Path: pathSettlements, Payload: payload}, nil

	case model.JobTypeSettlementsWeekly:
		day, err := jobDayOf(job)
		if err != nil {
			return syncapi.Call{}, err
		}
		r := schedule.PreviousWeek(day)
		payload.From, payload.To = r.From, r.To
		return syncapi.Call{Path: pathSettlements, Payload: payload}, nil

	case model.JobTypeAnticipationsDaily:
		day, err := jobDayOf(job)
		if err != nil {
			return syncapi.Call{}, err
		}
		r := schedule.PreviousDay(day)
		payload.From, payload.To = r.From, r.To
		return syncapi.Call{Path: pathAnticipations, Payload: payload}, nil

	case model.JobTypeAnticipationsWeekly:
		day, err := jobDayOf(job)
		if err != nil {
			return syncapi.Call{}, err
		}
		r := schedule.PreviousWeek(day)
		payload.From, payload.To = r.From, r.To
		return syncapi.Call{Path: pathAnticipations, Payload: payload}, nil

	case model.JobTypeReviewsSync:
		if _, err := jobDayOf(job); err != nil {
			return syncapi.Call{}, err
		}
		payload.Mode = "recent"
		return syncapi.Call{Path: pathReviews, Payload: payload}, nil

	case model.JobTypeFinancialEventsSync:
		day, err := jobDayOf(job)
		if err != nil {
			return syncapi.Call{}, err
		}
		r := schedule.PreviousDay(day)
		payload.From, payload.To = r.From, r.To
		return syncapi.Call{Path: pathFinancialEvents, Payload: payload}, nil

	case model.JobTypeReconciliationStatus:
		day, err := jobDayOf(job)
		if err != nil {
			return syncapi.Call{}, err
		}
		payload.Competence = day.Format(schedule.CompetenceFormat)
		return syncapi.Call{Path: pathReconciliationStatus, Payload: payload}, nil

	case model.JobTypeConciliation:
		if job.Competence == nil || *job.Competence == "" {
			return syncapi.Call{}, fmt.Errorf("%w: competence is required for %s", ErrInvalidJobFields, job.Type)
		}
		payload.Competence = *job.Competence
		return syncapi.Call{Path: pathConciliation, Payload: payload}, nil
	}

	return syncapi.Call{}, fmt.Errorf("%w: unknown job type %q", ErrInvalidJobFields, job.Type)
}

// buildSalesCall computes the next unsynced date range: the day after the
// last completed sync through the slot's own day.
func (b *callBuilder) buildSalesCall(ctx context.Context, job *model.Job, payload syncapi.Payload) (syncapi.Call, error) {
	if job.JobSlot == nil || *job.JobSlot == "" {
		return syncapi.Call{}, fmt.Errorf("%w: job_slot is required for %s", ErrInvalidJobFields, job.Type)
	}
	slotTime, err := time.Parse(schedule.SlotFormat, *job.JobSlot)
	if err != nil {
		return syncapi.Call{}, fmt.Errorf("%w: malformed job_slot %q", ErrInvalidJobFields, *job.JobSlot)
	}
	slotDay := time.Date(slotTime.Year(), slotTime.Month(), slotTime.Day(), 0, 0, 0, 0, time.UTC)

	from := slotDay.AddDate(0, 0, -defaultSalesLookbackDays)
	if b.syncState != nil {
		lastDay, found, stateErr := b.syncState.LastSyncedDay(ctx, job.AccountID, salesResource)
		if stateErr != nil {
			return syncapi.Call{}, fmt.Errorf("read sync state: %w", stateErr)
		}
		if found {
			parsed, parseErr := time.Parse(schedule.DayFormat, lastDay)
			if parseErr != nil {
				return syncapi.Call{}, fmt.Errorf("%w: malformed last synced day %q", ErrInvalidJobFields, lastDay)
			}
			from = parsed.AddDate(0, 0, 1)
		}
	}
	if from.After(slotDay) {
		from = slotDay
	}

	payload.From = from.Format(schedule.DayFormat)
	payload.To = slotDay.Format(schedule.DayFormat)
	return syncapi.Call{Path: pathSalesSync, Payload: payload}, nil
}

func jobDayOf(job *model.Job) (time.Time, error) {
	if job.JobDay == nil || *job.JobDay == "" {
		return time.Time{}, fmt.Errorf("%w: job_day is required for %s", ErrInvalidJobFields, job.Type)
	}
	day, err := time.Parse(schedule.DayFormat, *job.JobDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed job_day %q", ErrInvalidJobFields, *job.JobDay)
	}
	return day, nil
}
