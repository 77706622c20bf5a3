package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCounterStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCounterStore(client, "test:ratelimit"), mr
}

func TestRedisCounterStore_FixedWindow(t *testing.T) {
	s, mr := setupTestRedis(t)
	clock := newClock()
	s.now = clock.now
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := s.IncrementAndCheck(ctx, "ip:1", time.Hour, 3)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i)
		assert.Equal(t, i, d.Count)
	}

	d, err := s.IncrementAndCheck(ctx, "ip:1", time.Hour, 3)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 40*time.Minute, d.RetryAfter)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "test:ratelimit:ip:1:")
	assert.Equal(t, 40*time.Minute, mr.TTL(keys[0]))
}

func TestRedisCounterStore_NextWindowResets(t *testing.T) {
	s, _ := setupTestRedis(t)
	clock := newClock()
	s.now = clock.now
	ctx := context.Background()

	_, _ = s.IncrementAndCheck(ctx, "ip:1", time.Hour, 1)
	d, _ := s.IncrementAndCheck(ctx, "ip:1", time.Hour, 1)
	require.False(t, d.Allowed)

	clock.advance(time.Hour)
	d, err := s.IncrementAndCheck(ctx, "ip:1", time.Hour, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisCounterStore_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := NewRedisCounterStore(client, " ")

	_, err := s.IncrementAndCheck(context.Background(), "user:7", time.Hour, 3)
	require.NoError(t, err)
	require.Len(t, mr.Keys(), 1)
	assert.Contains(t, mr.Keys()[0], DefaultKeyPrefix+":user:7:")
}

func TestRedisCounterStore_StoreDown(t *testing.T) {
	s, mr := setupTestRedis(t)
	mr.Close()

	_, err := s.IncrementAndCheck(context.Background(), "ip:1", time.Hour, 3)
	assert.Error(t, err)
}
