package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dexpanel/ifood-sync/internal/domain/model"
)

// AccountRepo reads the tenant account directory from Postgres.
type AccountRepo struct {
	DB *sql.DB
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{DB: db}
}

// ListActive returns active accounts that have an upstream merchant id,
// ordered by account id so scheduling indices stay stable across ticks.
func (r *AccountRepo) ListActive(ctx context.Context) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, merchant_id, is_active
		FROM accounts
		WHERE is_active = TRUE
		  AND merchant_id IS NOT NULL
		  AND merchant_id <> ''
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var acct model.Account
		if scanErr := rows.Scan(&acct.ID, &acct.MerchantID, &acct.IsActive); scanErr != nil {
			return nil, fmt.Errorf("scan account: %w", scanErr)
		}
		accounts = append(accounts, acct)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate accounts: %w", rowsErr)
	}
	return accounts, nil
}
