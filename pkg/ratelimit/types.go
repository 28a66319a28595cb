package ratelimit

import (
	"context"
	"time"
)

// Result contains the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long until the oldest counted request leaves the
	// window. Zero when the request was allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least 1 when blocked.
func (r *Result) RetryAfterSeconds() int {
	if r.Allowed {
		return 0
	}
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	return max(1, secs)
}

// Limiter defines the interface for rate limiting implementations.
type Limiter interface {
	// Allow checks and, if allowed, counts one request for key.
	Allow(ctx context.Context, key string) (*Result, error)

	// Status reports the current state for key without counting a request.
	Status(ctx context.Context, key string) (*Result, error)

	// Reset forgets all requests counted for key.
	Reset(ctx context.Context, key string) error
}

// Store keeps request timestamps per key.
type Store interface {
	// Record drops timestamps older than now-window, then adds now if fewer
	// than limit remain. It returns whether now was added, the count after
	// the operation and the oldest timestamp still in the window.
	Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (allowed bool, count int64, oldest time.Time, err error)

	// Count returns the number of timestamps within the window ending at now
	// and the oldest of them.
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (count int64, oldest time.Time, err error)

	// Delete removes all timestamps for key.
	Delete(ctx context.Context, key string) error
}
