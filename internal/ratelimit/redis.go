package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces rate limit counters in a shared Redis.
const DefaultKeyPrefix = "bookreview:ratelimit"

// fixedWindowScript increments the window counter, sets its expiry on first
// use and returns the count with the remaining lifetime in one round trip.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisCounterStore is a CounterStore shared by every replica through Redis.
// Counters survive process restarts for as long as Redis keeps them.
type RedisCounterStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisCounterStore creates a Redis-backed counter store.
func NewRedisCounterStore(client redis.UniversalClient, prefix string) *RedisCounterStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCounterStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisCounterStore) IncrementAndCheck(ctx context.Context, key string, window time.Duration, limit int) (Decision, error) {
	now := s.now().UTC()
	slot, end := windowSlot(now, window)
	redisKey := fmt.Sprintf("%s:%s:%d", s.prefix, key, slot)

	// The counter lives until its window ends, so PTTL is the retry hint.
	ttl := end.Sub(now).Milliseconds()
	if ttl < 1 {
		ttl = 1
	}

	res, err := fixedWindowScript.Run(ctx, s.client, []string{redisKey}, ttl).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("redis rate limit %s: unexpected reply %v", key, res)
	}

	d := Decision{Count: int(res[0]), Allowed: res[0] <= int64(limit)}
	if !d.Allowed {
		d.RetryAfter = time.Duration(res[1]) * time.Millisecond
		if d.RetryAfter <= 0 {
			d.RetryAfter = end.Sub(now)
		}
	}
	return d, nil
}
