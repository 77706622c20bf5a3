package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ThureinS/bookreview/internal/cache"
	"github.com/ThureinS/bookreview/internal/domain"
	"github.com/ThureinS/bookreview/internal/event"
	"github.com/ThureinS/bookreview/internal/repository"
	apperrors "github.com/ThureinS/bookreview/pkg/errors"
)

// BookPageReviews is the number of newest reviews embedded in a book page.
const BookPageReviews = 20

// BookService implements listing, book pages and book administration.
type BookService struct {
	books    repository.BookRepository
	reviews  repository.ReviewRepository
	cache    *cache.Cache
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewBookService creates a new book service.
func NewBookService(
	books repository.BookRepository,
	reviews repository.ReviewRepository,
	c *cache.Cache,
	producer *event.Producer,
	logger *slog.Logger,
) *BookService {
	return &BookService{
		books:    books,
		reviews:  reviews,
		cache:    c,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateBookInput holds the parameters for creating a book.
type CreateBookInput struct {
	Title       string
	Author      string
	PublishedAt time.Time
	CoverURL    string
}

// UpdateBookInput holds the parameters for updating a book. Nil fields are
// left unchanged.
type UpdateBookInput struct {
	Title       *string
	Author      *string
	PublishedAt *time.Time
	CoverURL    *string
}

// ListBooks returns the ranked listing for filter, restricted to titles
// containing search. Results are served from the cache when present.
func (s *BookService) ListBooks(ctx context.Context, filter domain.Filter, search string) ([]domain.BookWithStats, error) {
	key := cache.ListKey(filter, search)
	ranked, err := cache.GetOrCompute(ctx, s.cache, key, 0, func(ctx context.Context) ([]domain.BookWithStats, error) {
		return s.rank(ctx, filter, search)
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return ranked, nil
}

func (s *BookService) rank(ctx context.Context, filter domain.Filter, search string) ([]domain.BookWithStats, error) {
	var bf repository.BookFilter
	if q := strings.TrimSpace(search); q != "" {
		bf.Search = &q
	}

	books, err := s.books.List(ctx, bf)
	if err != nil {
		return nil, fmt.Errorf("list candidate books: %w", err)
	}

	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}

	stats, err := s.reviews.StatsForBooks(ctx, ids, filter.Since(s.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("aggregate review stats: %w", err)
	}

	return domain.Rank(filter, books, stats), nil
}

// GetBook returns the book page: the book, its all-time stats and its newest
// reviews.
func (s *BookService) GetBook(ctx context.Context, id string) (*domain.BookDetail, error) {
	detail, err := cache.GetOrCompute(ctx, s.cache, cache.BookKey(id), 0, func(ctx context.Context) (*domain.BookDetail, error) {
		book, err := s.books.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		stats, err := s.reviews.StatsFor(ctx, id, nil)
		if err != nil {
			return nil, fmt.Errorf("aggregate review stats: %w", err)
		}
		reviews, _, err := s.reviews.ListByBookID(ctx, id, 1, BookPageReviews)
		if err != nil {
			return nil, fmt.Errorf("list book reviews: %w", err)
		}
		return &domain.BookDetail{Book: *book, Stats: stats, Reviews: reviews}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return detail, nil
}

func validateBook(title, author string) error {
	fields := map[string]string{}
	if strings.TrimSpace(title) == "" {
		fields["title"] = "is required"
	}
	if strings.TrimSpace(author) == "" {
		fields["author"] = "is required"
	}
	if len(fields) > 0 {
		return apperrors.Validation(fields)
	}
	return nil
}

// CreateBook adds a book to the catalog.
func (s *BookService) CreateBook(ctx context.Context, input *CreateBookInput) (*domain.Book, error) {
	if err := validateBook(input.Title, input.Author); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	book := &domain.Book{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(input.Title),
		Author:      strings.TrimSpace(input.Author),
		PublishedAt: input.PublishedAt.UTC(),
		CoverURL:    strings.TrimSpace(input.CoverURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	// A new book can only change listings; it has no cached page yet.
	if err := s.cache.InvalidateListings(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to invalidate listings",
			slog.String("book_id", book.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishBookCreated(ctx, book); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish book.created event",
			slog.String("book_id", book.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "book created",
		slog.String("book_id", book.ID),
		slog.String("title", book.Title),
	)

	return book, nil
}

// UpdateBook applies partial updates to an existing book.
func (s *BookService) UpdateBook(ctx context.Context, id string, input *UpdateBookInput) (*domain.Book, error) {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get book for update: %w", err)
	}

	if input.Title != nil {
		book.Title = strings.TrimSpace(*input.Title)
	}
	if input.Author != nil {
		book.Author = strings.TrimSpace(*input.Author)
	}
	if input.PublishedAt != nil {
		book.PublishedAt = input.PublishedAt.UTC()
	}
	if input.CoverURL != nil {
		book.CoverURL = strings.TrimSpace(*input.CoverURL)
	}
	if err := validateBook(book.Title, book.Author); err != nil {
		return nil, err
	}
	book.UpdatedAt = s.now().UTC()

	if err := s.books.Update(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	invalidateBook(ctx, s.cache, s.logger, book.ID)

	if err := s.producer.PublishBookUpdated(ctx, book); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish book.updated event",
			slog.String("book_id", book.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "book updated", slog.String("book_id", book.ID))

	return book, nil
}

// DeleteBook removes a book and its reviews.
func (s *BookService) DeleteBook(ctx context.Context, id string) error {
	if err := s.books.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	invalidateBook(ctx, s.cache, s.logger, id)

	if err := s.producer.PublishBookDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish book.deleted event",
			slog.String("book_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "book deleted", slog.String("book_id", id))

	return nil
}

// invalidateBook drops the book page and every listing. The write already
// succeeded, so a cache failure is logged and left to the TTL.
func invalidateBook(ctx context.Context, c *cache.Cache, logger *slog.Logger, bookID string) {
	if err := c.InvalidateBookAndListings(ctx, bookID); err != nil {
		logger.ErrorContext(ctx, "failed to invalidate cache",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
	}
}
