// Package ratelimit provides in-process admission control for outbound
// marketplace calls: a bounded number of in-flight calls plus a minimum
// delay between dispatches. Waiters are served in FIFO order. This bounds
// load per process only; it is not a distributed limiter.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrInvalidConcurrency indicates a non-positive max concurrency.
var ErrInvalidConcurrency = errors.New("max concurrency must be positive")

// Limiter gates outbound calls. Construct one per process and hand it to
// every caller that talks to the upstream API.
type Limiter struct {
	slots    *semaphore.Weighted
	minDelay time.Duration
	now      func() time.Time

	mu     sync.Mutex
	nextAt time.Time
}

// Options configures NewLimiter.
type Options struct {
	// MaxConcurrency bounds the number of in-flight calls.
	MaxConcurrency int
	// MinDelay is the minimum interval between consecutive dispatches.
	// Zero disables pacing.
	MinDelay time.Duration
	// Now overrides the clock for tests.
	Now func() time.Time
}

// NewLimiter constructs a Limiter.
func NewLimiter(opts Options) (*Limiter, error) {
	if opts.MaxConcurrency <= 0 {
		return nil, ErrInvalidConcurrency
	}
	minDelay := opts.MinDelay
	if minDelay < 0 {
		minDelay = 0
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		slots:    semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		minDelay: minDelay,
		now:      now,
	}, nil
}

// MustNewLimiter constructs a Limiter and panics on invalid options.
func MustNewLimiter(opts Options) *Limiter {
	l, err := NewLimiter(opts)
	if err != nil {
		//nolint:forbidigo // construction happens once at startup; invalid options are a programming error
		panic(err)
	}
	return l
}

// Execute runs fn once a slot is free and the pacing delay has elapsed.
// The caller's context cancels the wait but not a call already dispatched;
// fn receives the same context and handles its own cancellation.
func (l *Limiter) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.slots.Release(1)

	if err := l.waitTurn(ctx); err != nil {
		return err
	}

	return fn(ctx)
}

// waitTurn reserves the next dispatch timestamp and sleeps until it.
func (l *Limiter) waitTurn(ctx context.Context) error {
	if l.minDelay <= 0 {
		return nil
	}

	l.mu.Lock()
	current := l.now()
	wait := l.nextAt.Sub(current)
	if wait < 0 {
		wait = 0
	}
	l.nextAt = current.Add(wait + l.minDelay)
	l.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
