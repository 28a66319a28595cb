package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// recordScript trims the sorted set to the window, adds the member when under
// limit and returns {allowed, count, oldestScore}. Scores are unix microseconds
// passed as strings so Lua never reformats them.
var recordScript = redis.NewScript(`
local key = KEYS[1]
local now = ARGV[1]
local cutoff = ARGV[2]
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local ttl = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, member)
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, ttl)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local score = '0'
if oldest[2] then
	score = oldest[2]
end
return {allowed, count, score}
`)

// RedisStore keeps timestamps in Redis sorted sets, so every instance
// sharing the Redis enforces the same limit.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store. Keys are stored under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Record(ctx context.Context, key string, now time.Time, span time.Duration, limit int) (bool, int64, time.Time, error) {
	// The member only has to be unique; the score carries the timestamp.
	member := strconv.FormatInt(now.UnixMicro(), 10) + "-" + uuid.NewString()

	vals, err := recordScript.Run(ctx, s.client, []string{s.prefix + key},
		strconv.FormatInt(now.UnixMicro(), 10),
		strconv.FormatInt(now.Add(-span).UnixMicro(), 10),
		limit,
		member,
		max(1, span.Milliseconds()),
	).Slice()
	if err != nil {
		return false, 0, time.Time{}, errors.Join(ErrStoreFailure, err)
	}
	if len(vals) != 3 {
		return false, 0, time.Time{}, ErrStoreFailure
	}

	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	raw, _ := vals[2].(string)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false, 0, time.Time{}, errors.Join(ErrStoreFailure, err)
	}
	return allowed == 1, count, fromMicros(int64(score)), nil
}

func (s *RedisStore) Count(ctx context.Context, key string, now time.Time, span time.Duration) (int64, time.Time, error) {
	from := strconv.FormatInt(now.Add(-span).UnixMicro()+1, 10)
	zs, err := s.client.ZRangeByScoreWithScores(ctx, s.prefix+key, &redis.ZRangeBy{
		Min: from,
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreFailure, err)
	}
	if len(zs) == 0 {
		return 0, time.Time{}, nil
	}
	return int64(len(zs)), fromMicros(int64(zs[0].Score)), nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func fromMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us)
}
