package postgres

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/ThureinS/bookreview/internal/domain"
	"github.com/ThureinS/bookreview/pkg/database"
	apperrors "github.com/ThureinS/bookreview/pkg/errors"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review. A missing book is reported as not found.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	query := `
		INSERT INTO reviews (id, book_id, rating, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		review.ID,
		review.BookID,
		review.Rating,
		review.Body,
		review.CreatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("book", review.BookID)
		}
		return storeError("insert review", err)
	}

	return nil
}

// ListByBookID returns paginated reviews for a book, newest first, along
// with the total count.
func (r *ReviewRepository) ListByBookID(ctx context.Context, bookID string, page, perPage int) (_ []domain.Review, _ int, err error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT id, book_id, rating, body, created_at,
		       count(*) OVER() AS total_count
		FROM reviews
		WHERE book_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, bookID, limit, offset)
	if err != nil {
		return nil, 0, storeError("list reviews", err)
	}
	defer rows.Close()

	var (
		reviews    = []domain.Review{}
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review
		if err = rows.Scan(
			&rv.ID,
			&rv.BookID,
			&rv.Rating,
			&rv.Body,
			&rv.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, storeError("iterate review rows", err)
	}

	return reviews, totalCount, nil
}

// idArray binds a list of ids as one Postgres text array parameter, so the
// statement carries a single placeholder however many books are listed.
type idArray []string

var arrayElemEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func (a idArray) Value() (driver.Value, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(arrayElemEscaper.Replace(id))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String(), nil
}

// buildStatsQuery aggregates review count and rating sum per book. The
// average is derived from the sum so it is exact regardless of how the
// driver decodes numerics.
func buildStatsQuery(bookIDs []string, since *time.Time) (string, []any, error) {
	ds := goqu.Dialect(dialectPostgres).
		From("reviews").
		Prepared(true).
		Select(
			goqu.C("book_id"),
			goqu.COUNT(goqu.Star()).As("review_count"),
			goqu.SUM("rating").As("rating_sum"),
		).
		Where(goqu.L("? = ANY(?::text::uuid[])", goqu.C("book_id"), idArray(bookIDs))).
		GroupBy(goqu.C("book_id"))

	if since != nil {
		ds = ds.Where(goqu.C("created_at").Gte(*since))
	}

	return ds.ToSQL()
}

// StatsFor aggregates the reviews of a single book.
func (r *ReviewRepository) StatsFor(ctx context.Context, bookID string, since *time.Time) (domain.ReviewStats, error) {
	stats, err := r.StatsForBooks(ctx, []string{bookID}, since)
	if err != nil {
		return domain.ReviewStats{}, err
	}
	return stats[bookID], nil
}

// StatsForBooks aggregates reviews for several books in one query. Books
// without reviews in the window are absent from the result.
func (r *ReviewRepository) StatsForBooks(ctx context.Context, bookIDs []string, since *time.Time) (_ map[string]domain.ReviewStats, err error) {
	stats := make(map[string]domain.ReviewStats, len(bookIDs))
	if len(bookIDs) == 0 {
		return stats, nil
	}

	query, args, err := buildStatsQuery(bookIDs, since)
	if err != nil {
		return nil, fmt.Errorf("build review stats query: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "ReviewStats", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("review stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID string
			count  int64
			sum    int64
		)
		if err = rows.Scan(&bookID, &count, &sum); err != nil {
			return nil, fmt.Errorf("scan review stats row: %w", err)
		}
		stats[bookID] = domain.NewReviewStats(int(count), int(sum))
	}

	if err = rows.Err(); err != nil {
		return nil, storeError("iterate review stats rows", err)
	}

	return stats, nil
}
