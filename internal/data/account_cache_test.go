package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexpanel/ifood-sync/internal/domain/model"
	"github.com/dexpanel/ifood-sync/internal/testutil"
)

// countingLister serves a fixed listing and counts calls.
type countingLister struct {
	accounts []model.Account
	err      error
	calls    int
}

func (l *countingLister) ListActive(context.Context) ([]model.Account, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.accounts, nil
}

func TestNewCachedAccountDirectoryValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCachedAccountDirectory(CachedAccountDirectoryOptions{})
	assert.Error(t, err)

	_, err = NewCachedAccountDirectory(CachedAccountDirectoryOptions{Inner: &countingLister{}})
	assert.Error(t, err)
}

func TestCachedAccountDirectoryServesFromCache(t *testing.T) {
	client := testutil.SetupTestRedis(t)

	inner := &countingLister{accounts: []model.Account{
		{ID: "acct-1", MerchantID: "m-1", IsActive: true},
		{ID: "acct-2", MerchantID: "m-2", IsActive: true},
	}}
	dir, err := NewCachedAccountDirectory(CachedAccountDirectoryOptions{
		Inner:  inner,
		Client: client,
		TTL:    time.Minute,
	})
	require.NoError(t, err)

	ctx := context.Background()

	first, err := dir.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, inner.calls)

	// The second listing is served from the cache.
	second, err := dir.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	// Invalidation forces a refresh.
	require.NoError(t, dir.Invalidate(ctx))
	_, err = dir.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedAccountDirectoryPropagatesListerError(t *testing.T) {
	client := testutil.SetupTestRedis(t)

	inner := &countingLister{err: assert.AnError}
	dir, err := NewCachedAccountDirectory(CachedAccountDirectoryOptions{
		Inner:  inner,
		Client: client,
		TTL:    time.Minute,
	})
	require.NoError(t, err)

	_, err = dir.ListActive(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
