package source

import "context"

// Item is one listing returned by a source search.
type Item struct {
	Source string
	ID     string
	Title  string
	Price  int // source currency, 0 when the page didn't expose a price
	URL    string
}

// Adapter is one listing source (auction site, marketplace, ...).
//
// Search returns the current result page for a keyword; it does not page
// through results. Items with an empty ID are unusable for dedup and are
// skipped by the monitor.
type Adapter interface {
	Name() string
	Search(ctx context.Context, keyword string) ([]Item, error)
	// ExtractID derives the stable listing id from a listing URL.
	// Returns "" when the URL doesn't contain one.
	ExtractID(rawURL string) string
}
