package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ThureinS/bookreview/internal/cache"
	"github.com/ThureinS/bookreview/internal/domain"
	"github.com/ThureinS/bookreview/internal/event"
	"github.com/ThureinS/bookreview/internal/ratelimit"
	apperrors "github.com/ThureinS/bookreview/pkg/errors"
)

// stubCounterStore is a CounterStore whose window never rolls over.
type stubCounterStore struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (s *stubCounterStore) IncrementAndCheck(_ context.Context, key string, window time.Duration, limit int) (ratelimit.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return ratelimit.Decision{}, s.err
	}
	if s.counts == nil {
		s.counts = map[string]int{}
	}
	s.counts[key]++
	n := s.counts[key]
	if n > limit {
		return ratelimit.Decision{Count: n, RetryAfter: 25 * time.Minute}, nil
	}
	return ratelimit.Decision{Allowed: true, Count: n}, nil
}

type reviewFixture struct {
	books    *mockBookRepository
	reviews  *mockReviewRepository
	counters *stubCounterStore
	store    *cache.MemoryStore
	pub      *fakePublisher
	svc      *ReviewService
}

func newReviewFixture() *reviewFixture {
	books := &mockBookRepository{}
	reviews := &mockReviewRepository{}
	counters := &stubCounterStore{}
	c, store := newTestCache()
	producer, pub := newTestProducer()
	guard := ratelimit.NewGuard(counters, 3, time.Hour, newTestLogger())
	svc := NewReviewService(books, reviews, guard, c, producer, newTestLogger())
	svc.now = func() time.Time { return fixedNow }
	return &reviewFixture{books: books, reviews: reviews, counters: counters, store: store, pub: pub, svc: svc}
}

func validInput(bookID string) *SubmitReviewInput {
	return &SubmitReviewInput{
		BookID:   bookID,
		Identity: ratelimit.UserIdentity("reader-1"),
		Rating:   5,
		Body:     "Great book, loved it!",
	}
}

func TestSubmitReview_Success(t *testing.T) {
	f := newReviewFixture()
	f.books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)
	f.reviews.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Review) bool {
		return r.BookID == "a" && r.Rating == 5 && r.Body == "Great book, loved it!" && r.CreatedAt.Equal(fixedNow)
	})).Return(nil).Once()

	in := validInput("a")
	in.Body = "  Great book, loved it!  "
	review, err := f.svc.SubmitReview(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, review.ID)
	assert.Equal(t, []string{event.TypeReviewCreated}, f.pub.types())
	f.reviews.AssertExpectations(t)
}

func TestSubmitReview_BodyLengthBoundary(t *testing.T) {
	f := newReviewFixture()
	f.books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil)

	in := validInput("a")
	in.Body = strings.Repeat("x", domain.MinBodyLength-1)
	_, err := f.svc.SubmitReview(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "must be at least 15 characters", appErr.Fields["body"])
	f.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	in.Body = strings.Repeat("x", domain.MinBodyLength)
	_, err = f.svc.SubmitReview(context.Background(), in)
	assert.NoError(t, err)
}

func TestSubmitReview_InvalidRatingConsumesNoQuota(t *testing.T) {
	f := newReviewFixture()

	for _, rating := range []int{0, 6, -1} {
		in := validInput("a")
		in.Rating = rating
		_, err := f.svc.SubmitReview(context.Background(), in)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	}

	assert.Empty(t, f.counters.counts)
	f.books.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestSubmitReview_UnknownBook(t *testing.T) {
	f := newReviewFixture()
	f.books.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("book", "missing"))

	_, err := f.svc.SubmitReview(context.Background(), validInput("missing"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.counters.counts)
	f.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitReview_BookLookupStoreErrorConsumesNoQuota(t *testing.T) {
	f := newReviewFixture()
	f.books.On("GetByID", mock.Anything, "a").
		Return(nil, apperrors.Unavailable(errors.New("dial tcp: connection refused"))).Once()

	_, err := f.svc.SubmitReview(context.Background(), validInput("a"))
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Empty(t, f.counters.counts)
	f.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	// Once the store recovers the identity still has its full quota.
	f.books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil)
	for i := 0; i < 3; i++ {
		_, err := f.svc.SubmitReview(context.Background(), validInput("a"))
		require.NoError(t, err, "submission %d", i+1)
	}
}

func TestSubmitReview_RateLimitedOnFourthSubmission(t *testing.T) {
	f := newReviewFixture()
	f.books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil)

	for i := 0; i < 3; i++ {
		_, err := f.svc.SubmitReview(context.Background(), validInput("a"))
		require.NoError(t, err, "submission %d", i+1)
	}

	_, err := f.svc.SubmitReview(context.Background(), validInput("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 25*time.Minute, appErr.RetryAfter)
	f.reviews.AssertNumberOfCalls(t, "Create", 3)

	other := validInput("a")
	other.Identity = ratelimit.AddressIdentity("203.0.113.9")
	_, err = f.svc.SubmitReview(context.Background(), other)
	assert.NoError(t, err, "other identities keep their own quota")
}

func TestSubmitReview_GuardStoreDown(t *testing.T) {
	f := newReviewFixture()
	f.counters.err = errors.New("redis: connection refused")
	f.books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)

	_, err := f.svc.SubmitReview(context.Background(), validInput("a"))
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	f.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitReview_CreateFailurePublishesNothing(t *testing.T) {
	f := newReviewFixture()
	f.books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(apperrors.Unavailable(errors.New("db down")))

	_, err := f.svc.SubmitReview(context.Background(), validInput("a"))
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Empty(t, f.pub.types())
}

func TestSubmitReview_PublishFailureIsNotFatal(t *testing.T) {
	f := newReviewFixture()
	f.pub.err = errors.New("broker unreachable")
	f.books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil)

	review, err := f.svc.SubmitReview(context.Background(), validInput("a"))
	require.NoError(t, err)
	assert.NotNil(t, review)
}

func TestSubmitReview_InvalidatesCachedViews(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()
	for _, k := range []string{
		cache.BookKey("a"),
		cache.ListKey(domain.FilterPopularLastMonth, ""),
		cache.ListKey(domain.FilterLatest, "dune"),
	} {
		require.NoError(t, f.store.Set(ctx, k, []byte("[]"), 0))
	}
	f.books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.SubmitReview(ctx, validInput("a"))
	require.NoError(t, err)
	assert.Zero(t, f.store.Len())
}

func TestSubmitReview_NewReviewVisibleOnNextRead(t *testing.T) {
	ctx := context.Background()
	books := &mockBookRepository{}
	reviews := &mockReviewRepository{}
	c, _ := newTestCache()
	producer, _ := newTestProducer()
	bookSvc := NewBookService(books, reviews, c, producer, newTestLogger())
	reviewSvc := NewReviewService(books, reviews,
		ratelimit.NewGuard(&stubCounterStore{}, 3, time.Hour, newTestLogger()), c, producer, newTestLogger())

	books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)
	reviews.On("StatsFor", mock.Anything, "a", (*time.Time)(nil)).Return(domain.ReviewStats{}, nil).Once()
	reviews.On("ListByBookID", mock.Anything, "a", 1, BookPageReviews).Return([]domain.Review{}, 0, nil).Once()

	before, err := bookSvc.GetBook(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, before.Stats.ReviewCount)

	reviews.On("Create", mock.Anything, mock.Anything).Return(nil)
	_, err = reviewSvc.SubmitReview(ctx, validInput("a"))
	require.NoError(t, err)

	reviews.On("StatsFor", mock.Anything, "a", (*time.Time)(nil)).Return(domain.NewReviewStats(1, 5), nil).Once()
	reviews.On("ListByBookID", mock.Anything, "a", 1, BookPageReviews).
		Return([]domain.Review{{ID: "r1", BookID: "a", Rating: 5}}, 1, nil).Once()

	after, err := bookSvc.GetBook(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, after.Stats.ReviewCount)
	require.NotNil(t, after.Stats.AverageRating)
	assert.InDelta(t, 5.0, *after.Stats.AverageRating, 1e-9)
}

func TestListReviews(t *testing.T) {
	f := newReviewFixture()
	page := []domain.Review{{ID: "r1", BookID: "a", Rating: 4}}
	f.books.On("GetByID", mock.Anything, "a").Return(sampleBook("a"), nil)
	f.books.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("book", "missing"))
	f.reviews.On("ListByBookID", mock.Anything, "a", 2, 10).Return(page, 11, nil)

	got, total, err := f.svc.ListReviews(context.Background(), "a", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, page, got)
	assert.Equal(t, 11, total)

	_, _, err = f.svc.ListReviews(context.Background(), "missing", 1, 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
