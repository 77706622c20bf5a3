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
	"github.com/ThureinS/bookreview/internal/ratelimit"
	"github.com/ThureinS/bookreview/internal/repository"
	apperrors "github.com/ThureinS/bookreview/pkg/errors"
)

// SubmitReviewInput holds the parameters for submitting a review.
type SubmitReviewInput struct {
	BookID   string
	Identity ratelimit.Identity
	Rating   int
	Body     string
}

// ReviewService implements review submission and listing.
type ReviewService struct {
	books    repository.BookRepository
	reviews  repository.ReviewRepository
	guard    *ratelimit.Guard
	cache    *cache.Cache
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(
	books repository.BookRepository,
	reviews repository.ReviewRepository,
	guard *ratelimit.Guard,
	c *cache.Cache,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		books:    books,
		reviews:  reviews,
		guard:    guard,
		cache:    c,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitReview validates and stores a review. Validation runs first, then the
// book lookup, then the rate limit, so only well-formed submissions for real
// books consume quota. No error path writes a review.
func (s *ReviewService) SubmitReview(ctx context.Context, input *SubmitReviewInput) (*domain.Review, error) {
	if fields := domain.ValidateReview(input.Rating, input.Body); fields != nil {
		return nil, apperrors.Validation(fields)
	}

	if _, err := s.books.GetByID(ctx, input.BookID); err != nil {
		return nil, fmt.Errorf("get book for review: %w", err)
	}

	if err := s.guard.Admit(ctx, input.Identity); err != nil {
		return nil, err
	}

	review := &domain.Review{
		ID:        uuid.New().String(),
		BookID:    input.BookID,
		Rating:    input.Rating,
		Body:      strings.TrimSpace(input.Body),
		CreatedAt: s.now().UTC(),
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	invalidateBook(ctx, s.cache, s.logger, review.BookID)

	if err := s.producer.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("book_id", review.BookID),
		slog.Int("rating", review.Rating),
	)

	return review, nil
}

// ListReviews returns a page of a book's reviews, newest first, and the total
// count.
func (s *ReviewService) ListReviews(ctx context.Context, bookID string, page, perPage int) ([]domain.Review, int, error) {
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		return nil, 0, fmt.Errorf("get book for reviews: %w", err)
	}

	reviews, total, err := s.reviews.ListByBookID(ctx, bookID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, total, nil
}
