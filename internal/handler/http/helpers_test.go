package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ThureinS/bookreview/internal/cache"
	"github.com/ThureinS/bookreview/internal/domain"
	"github.com/ThureinS/bookreview/internal/event"
	"github.com/ThureinS/bookreview/internal/ratelimit"
	"github.com/ThureinS/bookreview/internal/repository"
	"github.com/ThureinS/bookreview/internal/service"
	"github.com/ThureinS/bookreview/pkg/health"
	"github.com/ThureinS/bookreview/pkg/httputil"
	"github.com/ThureinS/bookreview/pkg/middleware"
)

// =============================================================================
// Mock repositories
// =============================================================================

type mockBookRepo struct {
	mock.Mock
}

func (m *mockBookRepo) Create(ctx context.Context, book *domain.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *mockBookRepo) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Book), args.Error(1)
}

func (m *mockBookRepo) List(ctx context.Context, filter repository.BookFilter) ([]domain.Book, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Book), args.Error(1)
}

func (m *mockBookRepo) Update(ctx context.Context, book *domain.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *mockBookRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepo) ListByBookID(ctx context.Context, bookID string, page, perPage int) ([]domain.Review, int, error) {
	args := m.Called(ctx, bookID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepo) StatsFor(ctx context.Context, bookID string, since *time.Time) (domain.ReviewStats, error) {
	args := m.Called(ctx, bookID, since)
	return args.Get(0).(domain.ReviewStats), args.Error(1)
}

func (m *mockReviewRepo) StatsForBooks(ctx context.Context, bookIDs []string, since *time.Time) (map[string]domain.ReviewStats, error) {
	args := m.Called(ctx, bookIDs, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.ReviewStats), args.Error(1)
}

// =============================================================================
// Test helpers
// =============================================================================

const (
	bookAID = "550e8400-e29b-41d4-a716-446655440001"
	bookBID = "550e8400-e29b-41d4-a716-446655440002"
)

type testServer struct {
	books   *mockBookRepo
	reviews *mockReviewRepo
	router  http.Handler
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()
	books := new(mockBookRepo)
	reviews := new(mockReviewRepo)

	c := cache.New(cache.NewMemoryStore(100, time.Hour), time.Hour, logger)
	producer := event.NewProducer(nil, logger)
	guard := ratelimit.NewGuard(ratelimit.NewMemoryCounterStore(), ratelimit.DefaultLimit, ratelimit.DefaultWindow, logger)

	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	router := NewRouter(
		service.NewBookService(books, reviews, c, producer, logger),
		service.NewReviewService(books, reviews, guard, c, producer, logger),
		health.NewHandler(),
		RouterConfig{TrustedProxies: trusted, CORS: middleware.DefaultCORSConfig()},
		logger,
	)
	return &testServer{books: books, reviews: reviews, router: router}
}

func (s *testServer) do(method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func sampleBook(id, title string) *domain.Book {
	now := time.Now().UTC()
	return &domain.Book{
		ID:          id,
		Title:       title,
		Author:      "Ursula K. Le Guin",
		PublishedAt: time.Date(1969, 3, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
