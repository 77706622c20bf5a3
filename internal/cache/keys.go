package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ThureinS/bookreview/internal/domain"
)

// Key layout. Raw user input never appears in a key.
const (
	KeyPrefix     = "bookreview:"
	ListingPrefix = KeyPrefix + "books:list:"
	DetailPrefix  = KeyPrefix + "books:detail:"
)

// NormalizeSearch is the canonical form of a title search.
func NormalizeSearch(search string) string {
	return strings.ToLower(strings.TrimSpace(search))
}

// ListKey returns the key of a book listing. The search text is hashed so
// titles containing the key delimiter cannot collide with other filters.
func ListKey(filter domain.Filter, search string) string {
	sum := sha256.Sum256([]byte(NormalizeSearch(search)))
	return ListingPrefix + string(filter) + ":" + hex.EncodeToString(sum[:])
}

// BookKey returns the key of a book page.
func BookKey(bookID string) string {
	return DetailPrefix + bookID
}
