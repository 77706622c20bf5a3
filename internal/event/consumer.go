package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/ThureinS/bookreview/pkg/kafka"
)

// Invalidator drops cached entries affected by a change to a book.
type Invalidator interface {
	InvalidateBookAndListings(ctx context.Context, bookID string) error
}

type bookRef struct {
	BookID string `json:"book_id"`
}

// InvalidationConsumer applies book and review events from other replicas to
// the local cache.
type InvalidationConsumer struct {
	cache  Invalidator
	logger *slog.Logger
}

// NewInvalidationConsumer creates the cache invalidation handler.
func NewInvalidationConsumer(cache Invalidator, logger *slog.Logger) *InvalidationConsumer {
	return &InvalidationConsumer{cache: cache, logger: logger}
}

// Handle invalidates the book page and all listings for every write event.
// Unknown event types are ignored.
func (c *InvalidationConsumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TypeBookCreated, TypeBookUpdated, TypeBookDeleted, TypeReviewCreated:
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	var ref bookRef
	if err := event.UnmarshalData(&ref); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}
	if ref.BookID == "" {
		ref.BookID = event.Metadata["book_id"]
	}
	if ref.BookID == "" {
		c.logger.WarnContext(ctx, "event without book id, skipping",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	if err := c.cache.InvalidateBookAndListings(ctx, ref.BookID); err != nil {
		return fmt.Errorf("invalidate cache for %s: %w", event.EventType, err)
	}

	c.logger.DebugContext(ctx, "cache invalidated from event",
		slog.String("event_type", event.EventType),
		slog.String("book_id", ref.BookID),
	)
	return nil
}
