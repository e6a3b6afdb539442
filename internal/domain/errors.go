package domain

import "errors"

var (
	// ErrDataUnavailable means an external source (pivots, candles, OI) is missing or stale.
	// It is always recovered locally by a degraded computation path.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInvalidRequest means open-position parameters were rejected.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnknownPosition means the scrip code is not tracked.
	ErrUnknownPosition = errors.New("unknown position")
)
