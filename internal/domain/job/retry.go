// Package job holds retry policy for failed sync jobs.
package job

import (
	"errors"
	"time"
)

// ErrInvalidRetryBase indicates the configured base delay is not positive.
var ErrInvalidRetryBase = errors.New("retry base delay must be positive")

// ErrInvalidRetryCap indicates the configured cap is below the base delay.
var ErrInvalidRetryCap = errors.New("retry cap must be >= base delay")

// RetryPolicy computes the delay before a failed job becomes claimable again.
// The delay doubles with every prior attempt and is capped, yielding
// 5, 10, 20, 40, 60, 60... minutes with the defaults.
type RetryPolicy struct {
	base time.Duration
	cap  time.Duration
}

// NewRetryPolicy constructs a RetryPolicy with the provided base and cap.
func NewRetryPolicy(base, capDelay time.Duration) (RetryPolicy, error) {
	if base <= 0 {
		return RetryPolicy{}, ErrInvalidRetryBase
	}
	if capDelay < base {
		return RetryPolicy{}, ErrInvalidRetryCap
	}
	return RetryPolicy{base: base, cap: capDelay}, nil
}

// DefaultRetryPolicy returns the standard 5-minute base, 1-hour cap policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{base: 5 * time.Minute, cap: time.Hour}
}

// Delay returns the backoff before the next attempt given the number of
// attempts already made.
func (p RetryPolicy) Delay(prevAttempts int) time.Duration {
	if prevAttempts < 0 {
		prevAttempts = 0
	}
	d := p.base
	for range prevAttempts {
		d *= 2
		if d >= p.cap {
			return p.cap
		}
	}
	if d > p.cap {
		return p.cap
	}
	return d
}

// NextRetryAt returns the timestamp at which the job becomes claimable again.
func (p RetryPolicy) NextRetryAt(now time.Time, prevAttempts int) time.Time {
	return now.Add(p.Delay(prevAttempts))
}
