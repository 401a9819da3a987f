package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dexpanel/ifood-sync/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for ifood-sync reaper operations.
const (
	advisoryLockReaperMajor   = 1000
	advisoryLockReaperRequeue = 1 // minor key for RequeueStuckRunning
)

// RequeueStuckRunning returns jobs whose lease outlived the TTL to the
// pending state so another worker can claim them. A job only ends up here
// when its worker crashed or was killed mid-execution; the lease is never
// released by a live worker without a status transition.
// Processes up to batchSize jobs per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
// Returns the number of jobs requeued.
func (r *JobRepo) RequeueStuckRunning(ctx context.Context, leaseTTL time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if leaseTTL <= 0 {
		return 0, errors.New("lease ttl must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperRequeue).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			cutoffTime := currentTime.Add(-leaseTTL)

			res, err := tx.ExecContext(ctx, `
				UPDATE jobs
				SET status = 'pending',
					locked_at = NULL,
					locked_by = NULL,
					updated_at = $1
				WHERE id IN (
					SELECT id FROM jobs
					WHERE status = 'running'
					  AND locked_at IS NOT NULL
					  AND locked_at < $2
					ORDER BY locked_at
					LIMIT $3
				)
			`, currentTime.UTC(), cutoffTime.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("requeue stuck running jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
