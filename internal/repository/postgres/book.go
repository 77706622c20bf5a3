package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"

	"github.com/ThureinS/bookreview/internal/domain"
	"github.com/ThureinS/bookreview/internal/repository"
	"github.com/ThureinS/bookreview/pkg/database"
	apperrors "github.com/ThureinS/bookreview/pkg/errors"
)

const dialectPostgres = "postgres"

var bookColumns = []any{"id", "title", "author", "published_at", "cover_url", "created_at", "updated_at"}

// likeEscaper escapes LIKE metacharacters so user text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BookRepository implements repository.BookRepository using PostgreSQL.
type BookRepository struct {
	pool database.DBTX
}

// NewBookRepository creates a new PostgreSQL-backed book repository.
func NewBookRepository(pool database.DBTX) *BookRepository {
	return &BookRepository{pool: pool}
}

// Create inserts a new book into the database.
func (r *BookRepository) Create(ctx context.Context, b *domain.Book) (err error) {
	query := `
		INSERT INTO books (id, title, author, published_at, cover_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateBook", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		b.ID,
		b.Title,
		b.Author,
		b.PublishedAt,
		b.CoverURL,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("book", "id", b.ID)
		}
		return storeError("insert book", err)
	}

	return nil
}

// GetByID retrieves a book by its ID.
func (r *BookRepository) GetByID(ctx context.Context, id string) (_ *domain.Book, err error) {
	query := `
		SELECT id, title, author, published_at, cover_url, created_at, updated_at
		FROM books
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetBook", query)
	defer func() { end(err) }()

	var b domain.Book
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.PublishedAt,
		&b.CoverURL,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book", id)
		}
		return nil, storeError("get book", err)
	}

	return &b, nil
}

// buildListQuery returns the listing statement. Search text is always bound
// as a parameter with its LIKE metacharacters escaped.
func buildListQuery(filter repository.BookFilter) (string, []any, error) {
	ds := goqu.Dialect(dialectPostgres).
		From("books").
		Prepared(true).
		Select(bookColumns...).
		Order(goqu.I("published_at").Desc(), goqu.I("id").Asc())

	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		pattern := "%" + likeEscaper.Replace(strings.TrimSpace(*filter.Search)) + "%"
		ds = ds.Where(goqu.C("title").ILike(pattern))
	}

	return ds.ToSQL()
}

// List returns every book matching the filter, newest publication first.
func (r *BookRepository) List(ctx context.Context, filter repository.BookFilter) (_ []domain.Book, err error) {
	query, args, err := buildListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build list books query: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "ListBooks", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("list books", err)
	}
	defer rows.Close()

	books := []domain.Book{}
	for rows.Next() {
		var b domain.Book
		if err = rows.Scan(
			&b.ID,
			&b.Title,
			&b.Author,
			&b.PublishedAt,
			&b.CoverURL,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, b)
	}

	if err = rows.Err(); err != nil {
		return nil, storeError("iterate book rows", err)
	}

	return books, nil
}

// Update modifies an existing book in the database.
func (r *BookRepository) Update(ctx context.Context, b *domain.Book) (err error) {
	query := `
		UPDATE books
		SET title = $2, author = $3, published_at = $4, cover_url = $5, updated_at = $6
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateBook", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query,
		b.ID,
		b.Title,
		b.Author,
		b.PublishedAt,
		b.CoverURL,
		b.UpdatedAt,
	)
	if err != nil {
		return storeError("update book", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("book", b.ID)
	}

	return nil
}

// Delete removes a book by its ID. Its reviews are removed by the foreign
// key cascade.
func (r *BookRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM books WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteBook", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return storeError("delete book", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("book", id)
	}

	return nil
}
