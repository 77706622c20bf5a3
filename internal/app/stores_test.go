package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThureinS/bookreview/internal/cache"
	"github.com/ThureinS/bookreview/internal/config"
	"github.com/ThureinS/bookreview/internal/event"
	"github.com/ThureinS/bookreview/internal/ratelimit"
)

func testConfig() *config.Config {
	return &config.Config{
		CacheTTL:         time.Hour,
		CacheMemorySize:  100,
		ReviewRateLimit:  3,
		ReviewRateWindow: time.Hour,
		KafkaBrokers:     []string{"localhost:9092"},
		InstanceID:       "web-1",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewStores_InProcess(t *testing.T) {
	store, counters := newStores(testConfig(), nil, discardLogger())

	assert.IsType(t, &cache.BreakerStore{}, store)
	assert.IsType(t, &ratelimit.MemoryCounterStore{}, counters)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestNewStores_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, counters := newStores(testConfig(), rdb, discardLogger())
	assert.IsType(t, &ratelimit.RedisCounterStore{}, counters)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, cache.BookKey("b1"), []byte("{}"), time.Minute))
	assert.True(t, mr.Exists(cache.BookKey("b1")), "cache writes reach redis")

	d, err := counters.IncrementAndCheck(ctx, "user:u1", time.Hour, 3)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestConsumerGroup(t *testing.T) {
	assert.Equal(t, "bookreview-cache-web-1", consumerGroup("web-1"))

	host, err := os.Hostname()
	if err == nil && host != "" {
		assert.Equal(t, "bookreview-cache-"+host, consumerGroup(""))
	}
}

func TestNewInvalidationConsumers(t *testing.T) {
	c := cache.New(cache.NewMemoryStore(10, time.Hour), time.Hour, discardLogger())

	consumers := newInvalidationConsumers(testConfig(), c, discardLogger())
	require.Len(t, consumers, 2)
	for _, consumer := range consumers {
		assert.NoError(t, consumer.Close())
	}
	assert.NotEqual(t, event.TopicBooks, event.TopicReviews)
}
