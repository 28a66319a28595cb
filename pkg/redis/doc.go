// Package redis connects to Redis with go-redis.
//
// Redis is optional in this service. When REDIS_URL is set the guard keeps
// subscription statuses and developer API counters there so every instance
// shares them:
//
//	if cfg.Redis.Enabled() {
//		client, err := redis.Connect(ctx, cfg.Redis)
//		...
//	}
package redis
