package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SyncStateRepo reads per-tenant sync progress. The sync action service owns
// writes to this table; the scheduler and workers only consult it.
type SyncStateRepo struct {
	DB *sql.DB
}

// NewSyncStateRepo creates a new SyncStateRepo.
func NewSyncStateRepo(db *sql.DB) *SyncStateRepo {
	return &SyncStateRepo{DB: db}
}

// LastSyncedDay returns the last fully synced day for the account's
// resource, as a YYYY-MM-DD string. ok=false means no sync has completed yet.
func (r *SyncStateRepo) LastSyncedDay(ctx context.Context, accountID, resource string) (string, bool, error) {
	if accountID == "" {
		return "", false, errors.New("account id is required")
	}
	if resource == "" {
		return "", false, errors.New("resource is required")
	}

	var day string
	err := r.DB.QueryRowContext(ctx, `
		SELECT last_synced_day
		FROM sync_status
		WHERE account_id = $1 AND resource = $2
	`, accountID, resource).Scan(&day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get last synced day: %w", err)
	}
	return day, true, nil
}
