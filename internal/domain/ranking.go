package domain

import (
	"cmp"
	"slices"
)

// Rank attaches stats to books, drops books under the filter's threshold and
// orders the rest by the filter's sort key. Books missing from stats count as
// having no reviews. Remaining ties are broken by book ID ascending. The
// result is never nil.
func Rank(filter Filter, books []Book, stats map[string]ReviewStats) []BookWithStats {
	minReviews := filter.MinReviews()
	ranked := make([]BookWithStats, 0, len(books))
	for _, b := range books {
		s := stats[b.ID]
		if filter.Thresholded() && (s.ReviewCount < minReviews || s.AverageRating == nil) {
			continue
		}
		ranked = append(ranked, BookWithStats{Book: b, Stats: s})
	}

	slices.SortStableFunc(ranked, compareFor(filter))
	return ranked
}

// compareFor returns an ordering where a negative result puts a first.
func compareFor(filter Filter) func(a, b BookWithStats) int {
	switch {
	case filter.byPopularity():
		return func(a, b BookWithStats) int {
			if c := cmp.Compare(b.Stats.ReviewCount, a.Stats.ReviewCount); c != 0 {
				return c
			}
			if c := compareAverage(a.Stats, b.Stats); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		}
	case filter.byRating():
		return func(a, b BookWithStats) int {
			if c := compareAverage(a.Stats, b.Stats); c != 0 {
				return c
			}
			if c := cmp.Compare(b.Stats.ReviewCount, a.Stats.ReviewCount); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		}
	default:
		return func(a, b BookWithStats) int {
			if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		}
	}
}

// compareAverage orders higher averages first. Undefined averages never take
// part in a comparison: they sort after every defined average and tie with
// each other.
func compareAverage(a, b ReviewStats) int {
	switch {
	case a.AverageRating == nil && b.AverageRating == nil:
		return 0
	case a.AverageRating == nil:
		return 1
	case b.AverageRating == nil:
		return -1
	}
	return cmp.Compare(*b.AverageRating, *a.AverageRating)
}
