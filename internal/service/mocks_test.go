package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ThureinS/bookreview/internal/cache"
	"github.com/ThureinS/bookreview/internal/domain"
	"github.com/ThureinS/bookreview/internal/event"
	"github.com/ThureinS/bookreview/internal/repository"
	pkgkafka "github.com/ThureinS/bookreview/pkg/kafka"
)

// --- Mock Repositories ---

type mockBookRepository struct {
	mock.Mock
}

func (m *mockBookRepository) Create(ctx context.Context, book *domain.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *mockBookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Book), args.Error(1)
}

func (m *mockBookRepository) List(ctx context.Context, filter repository.BookFilter) ([]domain.Book, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Book), args.Error(1)
}

func (m *mockBookRepository) Update(ctx context.Context, book *domain.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *mockBookRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) ListByBookID(ctx context.Context, bookID string, page, perPage int) ([]domain.Review, int, error) {
	args := m.Called(ctx, bookID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) StatsFor(ctx context.Context, bookID string, since *time.Time) (domain.ReviewStats, error) {
	args := m.Called(ctx, bookID, since)
	return args.Get(0).(domain.ReviewStats), args.Error(1)
}

func (m *mockReviewRepository) StatsForBooks(ctx context.Context, bookIDs []string, since *time.Time) (map[string]domain.ReviewStats, error) {
	args := m.Called(ctx, bookIDs, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.ReviewStats), args.Error(1)
}

// --- Fake event publisher ---

type fakePublisher struct {
	mu     sync.Mutex
	events []*pkgkafka.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, e *pkgkafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

// --- Test Helpers ---

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCache() (*cache.Cache, *cache.MemoryStore) {
	store := cache.NewMemoryStore(100, time.Hour)
	return cache.New(store, time.Hour, newTestLogger()), store
}

func newTestProducer() (*event.Producer, *fakePublisher) {
	pub := &fakePublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

func sampleBook(id string) *domain.Book {
	return &domain.Book{
		ID:          id,
		Title:       "Book " + id,
		Author:      "Author " + id,
		PublishedAt: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   fixedNow,
		UpdatedAt:   fixedNow,
	}
}

func strPtr(s string) *string { return &s }
