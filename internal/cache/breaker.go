package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "bookreview_cache_breaker_state",
		Help: "Current state of the cache circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// BreakerConfig holds configuration for the cache circuit breaker.
type BreakerConfig struct {
	Name string

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval clears the failure counts while closed. 0 never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns defaults tuned for a cache: trip fast, probe
// again soon.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     30 * time.Second,
		Timeout:      10 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerStore guards another Store with a circuit breaker. While the
// breaker is open reads degrade to misses and writes are skipped, so a
// failing cache costs nothing but its hit rate.
type BreakerStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewBreakerStore wraps inner with a circuit breaker.
func NewBreakerStore(inner Store, cfg BreakerConfig, logger *slog.Logger) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}

	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &BreakerStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

func rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.breaker.Execute(func() ([]byte, error) {
		return s.inner.Get(ctx, key)
	})
	if rejected(err) {
		return nil, ErrMiss
	}
	return data, err
}

func (s *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.write(func() error { return s.inner.Set(ctx, key, value, ttl) })
}

// Delete and DeletePrefix bypass an open breaker's rejection rather than
// skipping: a dropped invalidation would leave a stale entry behind.
func (s *BreakerStore) Delete(ctx context.Context, keys ...string) error {
	return s.invalidate(func() error { return s.inner.Delete(ctx, keys...) })
}

func (s *BreakerStore) DeletePrefix(ctx context.Context, prefix string) error {
	return s.invalidate(func() error { return s.inner.DeletePrefix(ctx, prefix) })
}

// State returns the current breaker state.
func (s *BreakerStore) State() gobreaker.State {
	return s.breaker.State()
}

func (s *BreakerStore) write(fn func() error) error {
	_, err := s.breaker.Execute(func() ([]byte, error) { return nil, fn() })
	if rejected(err) {
		return nil
	}
	return err
}

func (s *BreakerStore) invalidate(fn func() error) error {
	_, err := s.breaker.Execute(func() ([]byte, error) { return nil, fn() })
	if rejected(err) {
		return fn()
	}
	return err
}
