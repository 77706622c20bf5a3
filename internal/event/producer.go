package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThureinS/bookreview/internal/domain"
	pkgkafka "github.com/ThureinS/bookreview/pkg/kafka"
)

// Kafka topics. Book events and review events are keyed by book id so the
// history of one book stays ordered.
var (
	TopicBooks   = pkgkafka.Topic("books")
	TopicReviews = pkgkafka.Topic("reviews")
)

// Event types.
const (
	TypeBookCreated   = "bookreview.book.created"
	TypeBookUpdated   = "bookreview.book.updated"
	TypeBookDeleted   = "bookreview.book.deleted"
	TypeReviewCreated = "bookreview.review.created"
)

// Aggregate types.
const (
	AggregateTypeBook   = "book"
	AggregateTypeReview = "review"
)

// SourceBookReview identifies events originating from this service.
const SourceBookReview = "bookreview"

// BookData is the payload of book.created and book.updated events.
type BookData struct {
	ID          string    `json:"id"`
	BookID      string    `json:"book_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	CoverURL    string    `json:"cover_url"`
}

// BookDeletedData is the payload of a book.deleted event.
type BookDeletedData struct {
	BookID string `json:"book_id"`
}

// ReviewCreatedData is the payload of a review.created event.
type ReviewCreatedData struct {
	ReviewID  string    `json:"review_id"`
	BookID    string    `json:"book_id"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Producer publishes book and review events. A Producer without a publisher
// drops every event, which is how the service runs with Kafka disabled.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates an event producer. publisher may be nil.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// Enabled reports whether events are actually published.
func (p *Producer) Enabled() bool {
	return p != nil && p.publisher != nil
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType, bookID string, data any) error {
	if !p.Enabled() {
		return nil
	}

	event, err := pkgkafka.NewEvent(ctx, eventType, aggregateID, aggregateType, SourceBookReview, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	event.WithMetadata("book_id", bookID)

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("book_id", bookID),
	)
	return nil
}

func bookData(b *domain.Book) BookData {
	return BookData{
		ID:          b.ID,
		BookID:      b.ID,
		Title:       b.Title,
		Author:      b.Author,
		PublishedAt: b.PublishedAt,
		CoverURL:    b.CoverURL,
	}
}

// PublishBookCreated publishes a book.created event.
func (p *Producer) PublishBookCreated(ctx context.Context, b *domain.Book) error {
	return p.publish(ctx, TopicBooks, TypeBookCreated, b.ID, AggregateTypeBook, b.ID, bookData(b))
}

// PublishBookUpdated publishes a book.updated event.
func (p *Producer) PublishBookUpdated(ctx context.Context, b *domain.Book) error {
	return p.publish(ctx, TopicBooks, TypeBookUpdated, b.ID, AggregateTypeBook, b.ID, bookData(b))
}

// PublishBookDeleted publishes a book.deleted event.
func (p *Producer) PublishBookDeleted(ctx context.Context, bookID string) error {
	return p.publish(ctx, TopicBooks, TypeBookDeleted, bookID, AggregateTypeBook, bookID, BookDeletedData{BookID: bookID})
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, r *domain.Review) error {
	data := ReviewCreatedData{
		ReviewID:  r.ID,
		BookID:    r.BookID,
		Rating:    r.Rating,
		CreatedAt: r.CreatedAt,
	}
	return p.publish(ctx, TopicReviews, TypeReviewCreated, r.BookID, AggregateTypeReview, r.BookID, data)
}
