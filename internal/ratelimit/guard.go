package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/ThureinS/bookreview/pkg/errors"
)

// Defaults for review submissions.
const (
	DefaultLimit  = 3
	DefaultWindow = time.Hour
)

var submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bookreview_ratelimit_decisions_total",
	Help: "Total number of submission guard decisions by outcome.",
}, []string{"outcome"})

// Guard admits at most limit submissions per identity per window.
type Guard struct {
	store  CounterStore
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewGuard creates a guard over store. Non-positive limit or window select
// the defaults.
func NewGuard(store CounterStore, limit int, window time.Duration, logger *slog.Logger) *Guard {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{store: store, limit: limit, window: window, logger: logger}
}

// Admit counts a submission for identity. It returns nil when admitted and a
// RATE_LIMITED app error carrying the retry-after hint when denied. A failing
// counter store denies the submission with an unavailable error.
func (g *Guard) Admit(ctx context.Context, identity Identity) error {
	d, err := g.store.IncrementAndCheck(ctx, identity.String(), g.window, g.limit)
	if err != nil {
		submissionsTotal.WithLabelValues("error").Inc()
		g.logger.ErrorContext(ctx, "rate limit store failed, denying submission",
			slog.String("identity", identity.String()),
			slog.String("error", err.Error()),
		)
		return apperrors.Unavailable(fmt.Errorf("rate limit: %w", err))
	}

	if !d.Allowed {
		submissionsTotal.WithLabelValues("denied").Inc()
		g.logger.InfoContext(ctx, "review submission rate limited",
			slog.String("identity", identity.String()),
			slog.Int("count", d.Count),
			slog.Duration("retry_after", d.RetryAfter),
		)
		return apperrors.RateLimited(d.RetryAfter)
	}

	submissionsTotal.WithLabelValues("admitted").Inc()
	return nil
}
