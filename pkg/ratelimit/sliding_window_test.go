package ratelimit_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantplans/pkg/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func stores(t *testing.T) map[string]ratelimit.Store {
	t.Helper()

	mem := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]ratelimit.Store{
		"memory": mem,
		"redis":  ratelimit.NewRedisStore(client, "test:"),
	}
}

func TestNewSlidingWindow(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	defer store.Close()

	_, err := ratelimit.NewSlidingWindow(nil, 10, time.Minute)
	assert.ErrorIs(t, err, ratelimit.ErrStoreRequired)

	_, err = ratelimit.NewSlidingWindow(store, 0, time.Minute)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidLimit)

	_, err = ratelimit.NewSlidingWindow(store, 10, 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidInterval)
}

func TestSlidingWindow_Allow(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{now: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}

			limiter, err := ratelimit.NewSlidingWindow(store, 30, time.Minute, ratelimit.WithClock(clock.Now))
			require.NoError(t, err)

			key := ratelimit.Key("devapi", name, "10.0.0.1")
			for i := range 30 {
				res, err := limiter.Allow(ctx, key)
				require.NoError(t, err)
				require.True(t, res.Allowed, "request %d", i+1)
				assert.Equal(t, 30-(i+1), res.Remaining)
				clock.Advance(time.Second)
			}

			res, err := limiter.Allow(ctx, key)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, 0, res.Remaining)
			// The first request was 30s ago; it leaves the window in 30s.
			assert.Equal(t, 30*time.Second, res.RetryAfter)
			assert.Equal(t, 30, res.RetryAfterSeconds())

			status, err := limiter.Status(ctx, key)
			require.NoError(t, err)
			assert.False(t, status.Allowed)

			clock.Advance(30 * time.Second)
			res, err = limiter.Allow(ctx, key)
			require.NoError(t, err)
			assert.True(t, res.Allowed, "oldest request left the window")

			require.NoError(t, limiter.Reset(ctx, key))
			status, err = limiter.Status(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 30, status.Remaining)
		})
	}
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	defer store.Close()

	limiter, err := ratelimit.NewSlidingWindow(store, 1, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "b")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	_, err = limiter.Allow(ctx, "")
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
}

func TestSlidingWindow_Concurrent(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	defer store.Close()

	limiter, err := ratelimit.NewSlidingWindow(store, 50, time.Minute)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := limiter.Allow(context.Background(), "shared")
			assert.NoError(t, err)
			if res != nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestResult_RetryAfterSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, (&ratelimit.Result{Allowed: true}).RetryAfterSeconds())
	assert.Equal(t, 1, (&ratelimit.Result{RetryAfter: 10 * time.Millisecond}).RetryAfterSeconds())
	assert.Equal(t, 1, (&ratelimit.Result{}).RetryAfterSeconds())
	assert.Equal(t, 3, (&ratelimit.Result{RetryAfter: 2100 * time.Millisecond}).RetryAfterSeconds())
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "devapi:t1:10.0.0.1", ratelimit.Key("devapi", "", "t1", "10.0.0.1"))
	assert.Empty(t, ratelimit.Key("", ""))

	long := ratelimit.Key("devapi", strings.Repeat("x", 80))
	assert.Len(t, long, 32)
	assert.Equal(t, long, ratelimit.Key("devapi", strings.Repeat("x", 80)))
}
