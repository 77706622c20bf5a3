package repository

import (
	"context"
	"time"

	"github.com/ThureinS/bookreview/internal/domain"
)

// BookFilter defines the candidate criteria for listing books.
type BookFilter struct {
	// Search restricts books to titles containing the text, case-insensitively.
	Search *string
}

// BookRepository defines the interface for book persistence operations.
type BookRepository interface {
	// Create inserts a new book into the store.
	Create(ctx context.Context, book *domain.Book) error

	// GetByID retrieves a book by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Book, error)

	// List returns every book matching the filter.
	List(ctx context.Context, filter BookFilter) ([]domain.Book, error)

	// Update modifies an existing book in the store.
	Update(ctx context.Context, book *domain.Book) error

	// Delete removes a book and, by cascade, its reviews.
	Delete(ctx context.Context, id string) error
}

// ReviewRepository defines the interface for review persistence and
// aggregation.
type ReviewRepository interface {
	// Create appends a review for an existing book.
	Create(ctx context.Context, review *domain.Review) error

	// ListByBookID returns a page of reviews for a book, newest first, along
	// with the total count.
	ListByBookID(ctx context.Context, bookID string, page, perPage int) ([]domain.Review, int, error)

	// StatsFor aggregates the reviews of one book created at or after since.
	// A nil since covers all reviews.
	StatsFor(ctx context.Context, bookID string, since *time.Time) (domain.ReviewStats, error)

	// StatsForBooks aggregates reviews for several books at once. Books
	// without reviews in the window are absent from the result.
	StatsForBooks(ctx context.Context, bookIDs []string, since *time.Time) (map[string]domain.ReviewStats, error)
}
