package app

import (
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/ThureinS/bookreview/internal/cache"
	"github.com/ThureinS/bookreview/internal/config"
	"github.com/ThureinS/bookreview/internal/event"
	"github.com/ThureinS/bookreview/internal/ratelimit"
	pkgkafka "github.com/ThureinS/bookreview/pkg/kafka"
)

const (
	idempotencyCacheSize = 10000
	idempotencyTTL       = 24 * time.Hour
)

// newStores picks the cache and rate limit backends. With a Redis client both
// are shared across replicas; without one they live in process. The cache is
// always behind a circuit breaker so a failing backend degrades to misses.
func newStores(cfg *config.Config, rdb redis.UniversalClient, logger *slog.Logger) (cache.Store, ratelimit.CounterStore) {
	var (
		inner    cache.Store
		counters ratelimit.CounterStore
	)
	if rdb != nil {
		inner = cache.NewRedisStore(rdb)
		counters = ratelimit.NewRedisCounterStore(rdb, ratelimit.DefaultKeyPrefix)
	} else {
		inner = cache.NewMemoryStore(cfg.CacheMemorySize, cfg.CacheTTL)
		counters = ratelimit.NewMemoryCounterStore()
	}
	return cache.NewBreakerStore(inner, cache.DefaultBreakerConfig("cache"), logger), counters
}

// consumerGroup names this instance's invalidation group. Every replica needs
// its own group so each one sees every event.
func consumerGroup(instanceID string) string {
	if instanceID == "" {
		instanceID, _ = os.Hostname()
	}
	if instanceID == "" {
		instanceID = "local"
	}
	return "bookreview-cache-" + instanceID
}

// newInvalidationConsumers subscribes to book and review events so that
// writes made through other replicas evict this replica's cache entries.
func newInvalidationConsumers(cfg *config.Config, c *cache.Cache, logger *slog.Logger) []*pkgkafka.Consumer {
	group := consumerGroup(cfg.InstanceID)
	handle := event.NewInvalidationConsumer(c, logger).Handle
	seen := pkgkafka.NewMemoryIdempotencyStore(idempotencyCacheSize, idempotencyTTL)

	topics := []string{event.TopicBooks, event.TopicReviews}
	consumers := make([]*pkgkafka.Consumer, 0, len(topics))
	for _, topic := range topics {
		consumers = append(consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     group,
			Topic:       topic,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
		}, pkgkafka.IdempotentHandler(seen, handle, topic, group, logger), logger))
	}
	return consumers
}
