package domain

import (
	"time"
)

// Book represents a book in the catalog.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	CoverURL    string    `json:"cover_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BookWithStats is a book together with its review statistics over the
// window of the filter that produced it.
type BookWithStats struct {
	Book
	Stats ReviewStats `json:"stats"`
}

// BookDetail is the book page: the book, its all-time statistics and its
// reviews, newest first.
type BookDetail struct {
	Book
	Stats   ReviewStats `json:"stats"`
	Reviews []Review    `json:"reviews"`
}
