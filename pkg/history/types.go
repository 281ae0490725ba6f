// Package history persists price comparison searches per user.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrSearchNotFound = errors.New("search record not found")
	ErrLimitReached   = errors.New("search limit reached")
)

// DomainPrice is the stored price of one storefront, already converted to
// the reference currency of the comparison.
type DomainPrice struct {
	Currency string              `json:"currency"`
	Domain   string              `json:"domain"`
	Price    decimal.NullDecimal `json:"price"`
	URL      string              `json:"url"`
	Source   string              `json:"source"`
}

// SearchRecord is created when a search starts and completed in place with
// the item name and prices once the comparison finishes.
type SearchRecord struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	Query     string        `json:"query"`
	Timestamp time.Time     `json:"timestamp"`
	ItemName  string        `json:"item_name"`
	Prices    []DomainPrice `json:"prices"`
}

// Completed reports whether the comparison for the search finished.
func (r SearchRecord) Completed() bool {
	return r.ItemName != ""
}

type Store interface {
	// RecordSearch stores a new search and returns its id.
	RecordSearch(ctx context.Context, userID int64, query string) (int64, error)
	// RecordSearchWithin stores a new search only while userID has fewer
	// than limit searches since the given time.
	RecordSearchWithin(ctx context.Context, userID int64, query string, since time.Time, limit int) (int64, error)
	CountSearchesSince(ctx context.Context, userID int64, since time.Time) (int, error)
	// UpdateSearch completes the search with the given id.
	UpdateSearch(ctx context.Context, id int64, itemName string, prices []DomainPrice) error
	// UpdateMostRecentSearch completes the latest search of userID.
	UpdateMostRecentSearch(ctx context.Context, userID int64, itemName string, prices []DomainPrice) error
	// History lists the searches of userID, most recent first.
	History(ctx context.Context, userID int64) ([]SearchRecord, error)
	Close() error
}
