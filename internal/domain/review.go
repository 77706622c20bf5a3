package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Review bounds.
const (
	MinRating     = 1
	MaxRating     = 5
	MinBodyLength = 15
)

// Review is a rating with a written body submitted for a book.
type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewStats holds aggregate review statistics for a book over a window.
// AverageRating is nil when ReviewCount is zero.
type ReviewStats struct {
	ReviewCount   int      `json:"review_count"`
	AverageRating *float64 `json:"average_rating"`
}

// NewReviewStats builds stats from a count and a rating sum.
func NewReviewStats(count int, sum int) ReviewStats {
	if count <= 0 {
		return ReviewStats{}
	}
	avg := float64(sum) / float64(count)
	return ReviewStats{ReviewCount: count, AverageRating: &avg}
}

// ValidateReview checks the rating and body of a review and returns a map of
// field to message for every violation. A nil map means the review is valid.
func ValidateReview(rating int, body string) map[string]string {
	var fields map[string]string
	add := func(field, msg string) {
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[field] = msg
	}

	if rating < MinRating || rating > MaxRating {
		add("rating", "must be between 1 and 5")
	}
	if utf8.RuneCountInString(strings.TrimSpace(body)) < MinBodyLength {
		add("body", "must be at least 15 characters")
	}
	return fields
}
