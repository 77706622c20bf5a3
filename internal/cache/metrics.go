package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookreview_cache_hits_total",
		Help: "Total number of read-through cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookreview_cache_misses_total",
		Help: "Total number of read-through cache misses.",
	})
	cacheInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookreview_cache_invalidations_total",
		Help: "Total number of cache invalidations by kind.",
	}, []string{"kind"})
	cacheStaleWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookreview_cache_stale_writes_total",
		Help: "Total number of computed values dropped because an invalidation overlapped them.",
	})
	cacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookreview_cache_store_errors_total",
		Help: "Total number of cache store failures by operation.",
	}, []string{"op"})
)
