package guard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tenantplans/pkg/logger"
	"github.com/dmitrymomot/tenantplans/pkg/subscription"
)

// DefaultStatusTTL bounds how stale a cached status may be.
const DefaultStatusTTL = 15 * time.Second

// StatusNone is cached for tenants without a subscription.
const StatusNone subscription.Status = "NONE"

// StatusCache caches subscription status per tenant. Implementations treat
// backend failures as misses.
type StatusCache interface {
	Get(ctx context.Context, tenantID uuid.UUID) (subscription.Status, bool)
	Set(ctx context.Context, tenantID uuid.UUID, status subscription.Status)
	Invalidate(ctx context.Context, tenantID uuid.UUID)
}

// CacheListener returns a subscription.StatusListener that writes status
// changes through to c. Register it on the engine that feeds the guard.
func CacheListener(c StatusCache) subscription.StatusListener {
	return func(ctx context.Context, tenantID uuid.UUID, status subscription.Status) {
		c.Set(ctx, tenantID, status)
	}
}

// MemoryStatusCache is an in-process LRU with a fixed TTL.
type MemoryStatusCache struct {
	lru *expirable.LRU[uuid.UUID, subscription.Status]
}

// NewMemoryStatusCache creates a cache holding up to size tenants.
func NewMemoryStatusCache(size int, ttl time.Duration) *MemoryStatusCache {
	if size <= 0 {
		size = 10_000
	}
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &MemoryStatusCache{lru: expirable.NewLRU[uuid.UUID, subscription.Status](size, nil, ttl)}
}

func (c *MemoryStatusCache) Get(_ context.Context, tenantID uuid.UUID) (subscription.Status, bool) {
	return c.lru.Get(tenantID)
}

func (c *MemoryStatusCache) Set(_ context.Context, tenantID uuid.UUID, status subscription.Status) {
	c.lru.Add(tenantID, status)
}

func (c *MemoryStatusCache) Invalidate(_ context.Context, tenantID uuid.UUID) {
	c.lru.Remove(tenantID)
}

// RedisStatusCache shares statuses between instances.
type RedisStatusCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisStatusCache creates a Redis-backed cache. An empty prefix defaults to "guard:status:".
func NewRedisStatusCache(client redis.UniversalClient, prefix string, ttl time.Duration, log *slog.Logger) *RedisStatusCache {
	if client == nil {
		panic("guard: redis client is required")
	}
	if prefix == "" {
		prefix = "guard:status:"
	}
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisStatusCache{client: client, prefix: prefix, ttl: ttl, log: log}
}

func (c *RedisStatusCache) Get(ctx context.Context, tenantID uuid.UUID) (subscription.Status, bool) {
	v, err := c.client.Get(ctx, c.key(tenantID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn(ctx, "status cache read failed", tenantID, err)
		}
		return "", false
	}
	return subscription.Status(v), true
}

func (c *RedisStatusCache) Set(ctx context.Context, tenantID uuid.UUID, status subscription.Status) {
	if err := c.client.Set(ctx, c.key(tenantID), string(status), c.ttl).Err(); err != nil {
		c.warn(ctx, "status cache write failed", tenantID, err)
	}
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	if err := c.client.Del(ctx, c.key(tenantID)).Err(); err != nil {
		c.warn(ctx, "status cache invalidate failed", tenantID, err)
	}
}

func (c *RedisStatusCache) key(tenantID uuid.UUID) string {
	return c.prefix + tenantID.String()
}

func (c *RedisStatusCache) warn(ctx context.Context, msg string, tenantID uuid.UUID, err error) {
	c.log.WarnContext(ctx, msg,
		logger.Component("guard"),
		logger.TenantID(tenantID),
		logger.Error(err),
	)
}
