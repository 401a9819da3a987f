package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexpanel/ifood-sync/internal/testutil"
)

func TestListActiveFiltersAndOrders(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		_, err := db.ExecContext(ctx, `
			INSERT INTO accounts (id, merchant_id, is_active) VALUES
				('acct-3', 'm-3', TRUE),
				('acct-1', 'm-1', TRUE),
				('acct-2', 'm-2', FALSE),
				('acct-4', NULL,  TRUE),
				('acct-5', '',    TRUE)
		`)
		require.NoError(t, err)

		repo := NewAccountRepo(db)
		accounts, err := repo.ListActive(ctx)
		require.NoError(t, err)

		// Inactive accounts and accounts without a merchant id are excluded;
		// the rest come back in stable id order.
		require.Len(t, accounts, 2)
		assert.Equal(t, "acct-1", accounts[0].ID)
		assert.Equal(t, "m-1", accounts[0].MerchantID)
		assert.Equal(t, "acct-3", accounts[1].ID)
	})
}
