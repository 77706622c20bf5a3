package domain

import (
	"fmt"
	"time"
)

// Filter selects the ranking window, minimum sample size and sort key of a
// book listing.
type Filter string

// Listing filters.
const (
	FilterLatest                  Filter = "latest"
	FilterPopularLastMonth        Filter = "popular_last_month"
	FilterPopularLast6Months      Filter = "popular_last_6months"
	FilterHighestRatedLastMonth   Filter = "highest_rated_last_month"
	FilterHighestRatedLast6Months Filter = "highest_rated_last_6months"
)

// ValidFilters returns every listing filter.
func ValidFilters() []Filter {
	return []Filter{
		FilterLatest,
		FilterPopularLastMonth,
		FilterPopularLast6Months,
		FilterHighestRatedLastMonth,
		FilterHighestRatedLast6Months,
	}
}

// ParseFilter parses a filter name. The empty string selects FilterLatest.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return FilterLatest, nil
	}
	for _, f := range ValidFilters() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

func (f Filter) String() string { return string(f) }

// months is the window length in calendar months; zero means no window.
func (f Filter) months() int {
	switch f {
	case FilterPopularLastMonth, FilterHighestRatedLastMonth:
		return 1
	case FilterPopularLast6Months, FilterHighestRatedLast6Months:
		return 6
	default:
		return 0
	}
}

// Since returns the inclusive lower bound of the review window relative to
// now, or nil when the filter is not windowed.
func (f Filter) Since(now time.Time) *time.Time {
	m := f.months()
	if m == 0 {
		return nil
	}
	since := now.AddDate(0, -m, 0)
	return &since
}

// MinReviews is the number of reviews inside the window a book needs to be
// listed.
func (f Filter) MinReviews() int {
	switch f.months() {
	case 1:
		return 2
	case 6:
		return 5
	default:
		return 0
	}
}

// Thresholded reports whether the filter drops books below MinReviews.
func (f Filter) Thresholded() bool { return f.MinReviews() > 0 }

func (f Filter) byPopularity() bool {
	return f == FilterPopularLastMonth || f == FilterPopularLast6Months
}

func (f Filter) byRating() bool {
	return f == FilterHighestRatedLastMonth || f == FilterHighestRatedLast6Months
}
