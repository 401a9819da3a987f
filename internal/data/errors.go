package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Job repository sentinels.
	ErrJobNotFound     = errors.New("job not found")
	ErrMissingDedupKey = errors.New("job dedup key is required")
)
