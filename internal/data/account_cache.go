package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dexpanel/ifood-sync/internal/domain/model"
)

const accountCacheKey = "ifood-sync:accounts:active"

// AccountLister is the narrow account directory surface used by the cache.
type AccountLister interface {
	ListActive(ctx context.Context) ([]model.Account, error)
}

// CachedAccountDirectory wraps an account lister with a short-TTL Redis
// cache so the scheduler's per-tick listing does not hit the accounts table
// on every tick. Cache failures fall through to the underlying lister.
type CachedAccountDirectory struct {
	inner  AccountLister
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// CachedAccountDirectoryOptions configures NewCachedAccountDirectory.
type CachedAccountDirectoryOptions struct {
	Inner  AccountLister
	Client redis.UniversalClient
	TTL    time.Duration
	Logger *slog.Logger
}

// NewCachedAccountDirectory creates a CachedAccountDirectory.
func NewCachedAccountDirectory(opts CachedAccountDirectoryOptions) (*CachedAccountDirectory, error) {
	if opts.Inner == nil {
		return nil, errors.New("inner account lister is required")
	}
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedAccountDirectory{
		inner:  opts.Inner,
		client: opts.Client,
		ttl:    ttl,
		logger: opts.Logger,
	}, nil
}

// ListActive returns the cached account list when fresh, refreshing the
// cache from the underlying lister otherwise.
func (d *CachedAccountDirectory) ListActive(ctx context.Context) ([]model.Account, error) {
	raw, err := d.client.Get(ctx, accountCacheKey).Result()
	if err == nil {
		var accounts []model.Account
		if unmarshalErr := json.Unmarshal([]byte(raw), &accounts); unmarshalErr == nil {
			return accounts, nil
		}
		// corrupted entry, fall through to refresh
	} else if !errors.Is(err, redis.Nil) && d.logger != nil {
		d.logger.WarnContext(ctx, "account cache read failed", "error", err)
	}

	accounts, err := d.inner.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	payload, marshalErr := json.Marshal(accounts)
	if marshalErr != nil {
		return accounts, nil
	}
	if setErr := d.client.Set(ctx, accountCacheKey, payload, d.ttl).Err(); setErr != nil && d.logger != nil {
		d.logger.WarnContext(ctx, "account cache write failed", "error", setErr)
	}

	return accounts, nil
}

// Invalidate drops the cached account list.
func (d *CachedAccountDirectory) Invalidate(ctx context.Context) error {
	if err := d.client.Del(ctx, accountCacheKey).Err(); err != nil {
		return fmt.Errorf("invalidate account cache: %w", err)
	}
	return nil
}
