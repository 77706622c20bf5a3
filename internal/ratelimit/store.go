// Package ratelimit admits review submissions: at most a fixed number per
// client identity within a time window.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one counted attempt.
type Decision struct {
	Allowed bool
	// Count is the number of attempts in the current window, this one included.
	Count int
	// RetryAfter is the time until the window resets. Set when denied.
	RetryAfter time.Duration
}

// CounterStore counts attempts per key in fixed windows. IncrementAndCheck
// must be atomic per key and window: concurrent callers never observe a
// skipped or lost increment.
type CounterStore interface {
	IncrementAndCheck(ctx context.Context, key string, window time.Duration, limit int) (Decision, error)
}

// windowSlot returns the index of the fixed window containing now and the
// time that window ends.
func windowSlot(now time.Time, window time.Duration) (int64, time.Time) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	slot := now.UnixMilli() / ms
	return slot, time.UnixMilli((slot + 1) * ms)
}
