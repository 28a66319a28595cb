package ratelimit

import (
	"context"
	"time"
)

// SlidingWindow implements a sliding window rate limiter that tracks
// individual request timestamps within a moving time window.
type SlidingWindow struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// SlidingWindowOption configures a SlidingWindow.
type SlidingWindowOption func(*SlidingWindow)

// WithClock replaces time.Now. Useful in tests.
func WithClock(now func() time.Time) SlidingWindowOption {
	return func(sw *SlidingWindow) {
		if now != nil {
			sw.now = now
		}
	}
}

// NewSlidingWindow creates a new sliding window rate limiter.
func NewSlidingWindow(store Store, limit int, window time.Duration, opts ...SlidingWindowOption) (*SlidingWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidInterval
	}

	sw := &SlidingWindow{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw, nil
}

// Allow checks if a request is allowed for the given key and counts it if so.
func (sw *SlidingWindow) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	now := sw.now()
	allowed, count, oldest, err := sw.store.Record(ctx, key, now, sw.window, sw.limit)
	if err != nil {
		return nil, err
	}
	return sw.result(allowed, count, oldest, now), nil
}

// Status returns the current rate limit status without counting a request.
func (sw *SlidingWindow) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	now := sw.now()
	count, oldest, err := sw.store.Count(ctx, key, now, sw.window)
	if err != nil {
		return nil, err
	}
	return sw.result(count < int64(sw.limit), count, oldest, now), nil
}

// Reset resets the rate limit for the given key.
func (sw *SlidingWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return sw.store.Delete(ctx, key)
}

func (sw *SlidingWindow) result(allowed bool, count int64, oldest, now time.Time) *Result {
	res := &Result{
		Allowed:   allowed,
		Limit:     sw.limit,
		Remaining: max(0, sw.limit-int(count)),
	}
	if !allowed && !oldest.IsZero() {
		res.RetryAfter = max(0, oldest.Add(sw.window).Sub(now))
	}
	return res
}
