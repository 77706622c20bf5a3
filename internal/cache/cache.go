// Package cache is the read-through cache in front of book listings and book
// pages, with explicit invalidation from the write path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies to every entry unless the caller overrides it.
const DefaultTTL = time.Hour

// Cache memoizes computed values in a Store as JSON.
//
// Every invalidation bumps gen. A computation that overlaps an invalidation
// does not store its result, and callers arriving after an invalidation never
// join a computation started before it.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group

	mu  sync.RWMutex
	gen uint64
}

// New creates a cache over store. A non-positive ttl selects DefaultTTL.
func New(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, logger: logger}
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// GetOrCompute returns the value cached under key, or runs compute, stores
// its result for ttl and returns it. A non-positive ttl uses the cache's
// default. Concurrent misses on the same key share one computation. Store
// failures never fail the call: they are logged and treated as a miss.
// Errors from compute are returned and nothing is stored.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	if v, ok := lookup[T](ctx, c, key); ok {
		cacheHitsTotal.Inc()
		return v, nil
	}
	cacheMissesTotal.Inc()

	gen := c.generation()
	flight := key + "#" + strconv.FormatUint(gen, 10)
	res, err, _ := c.group.Do(flight, func() (any, error) {
		// The leader's cancellation must not fail the callers sharing its result.
		v, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		c.put(ctx, key, v, ttl, gen)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			cacheErrorsTotal.WithLabelValues("get").Inc()
			c.logger.WarnContext(ctx, "cache read failed, computing",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return v, false
	}

	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupt cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		if err := c.store.Delete(ctx, key); err != nil {
			cacheErrorsTotal.WithLabelValues("delete").Inc()
			c.logger.WarnContext(ctx, "failed to drop corrupt cache entry",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		var zero T
		return zero, false
	}
	return v, true
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// bump starts a new generation. Writes holding the read lock finish first,
// so the Delete that follows removes anything they stored.
func (c *Cache) bump() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
}

// put stores v unless an invalidation ran since gen was read.
func (c *Cache) put(ctx context.Context, key string, v any, ttl time.Duration, gen uint64) {
	data, err := json.Marshal(v)
	if err != nil {
		cacheErrorsTotal.WithLabelValues("set").Inc()
		c.logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gen != gen {
		cacheStaleWritesTotal.Inc()
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		cacheErrorsTotal.WithLabelValues("set").Inc()
		c.logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Invalidate removes the entry under key. Missing keys are not an error.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	cacheInvalidationsTotal.WithLabelValues("key").Inc()
	c.bump()
	if err := c.store.Delete(ctx, key); err != nil {
		cacheErrorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

// InvalidateBook removes the cached page of a book.
func (c *Cache) InvalidateBook(ctx context.Context, bookID string) error {
	cacheInvalidationsTotal.WithLabelValues("book").Inc()
	c.bump()
	if err := c.store.Delete(ctx, BookKey(bookID)); err != nil {
		cacheErrorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("invalidate book %s: %w", bookID, err)
	}
	return nil
}

// InvalidateListings removes every cached listing, whatever its filter or
// search text.
func (c *Cache) InvalidateListings(ctx context.Context) error {
	cacheInvalidationsTotal.WithLabelValues("listings").Inc()
	c.bump()
	if err := c.store.DeletePrefix(ctx, ListingPrefix); err != nil {
		cacheErrorsTotal.WithLabelValues("delete_prefix").Inc()
		return fmt.Errorf("invalidate listings: %w", err)
	}
	return nil
}

// InvalidateBookAndListings applies the write-path policy: a change to a
// book or its reviews drops the book page and every listing.
func (c *Cache) InvalidateBookAndListings(ctx context.Context, bookID string) error {
	return errors.Join(c.InvalidateBook(ctx, bookID), c.InvalidateListings(ctx))
}
