// Package ratelimit provides a sliding window rate limiter with in-memory and
// Redis-backed timestamp stores.
//
// The in-memory store enforces limits per process. The Redis store keeps one
// sorted set per key and applies trim, count and insert in a single Lua script,
// so every instance sharing the Redis sees the same window.
//
//	store := ratelimit.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimit.NewSlidingWindow(store, 30, time.Minute)
//	if err != nil {
//	    return err
//	}
//	res, err := limiter.Allow(ctx, ratelimit.Key("devapi", tenantID, ip))
//	if err == nil && !res.Allowed {
//	    // respond 429 with res.RetryAfterSeconds()
//	}
package ratelimit
