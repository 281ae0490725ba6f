// Package service applies per-user search limits and history around price
// comparisons.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geniass/pricecompare/pkg/compare"
	"github.com/geniass/pricecompare/pkg/history"
	"github.com/geniass/pricecompare/pkg/listing"
	"github.com/geniass/pricecompare/pkg/scraper"
)

const (
	DefaultDailyLimit = 10
	DefaultWindow     = 24 * time.Hour
)

var (
	ErrDailyLimitReached = errors.New("daily search limit reached")
	ErrInvalidIdentifier = scraper.ErrInvalidIdentifier
)

// Comparer is the part of compare.Comparer the service depends on.
type Comparer interface {
	Compare(ctx context.Context, identifier string) (*compare.PriceComparison, error)
	Product(ctx context.Context, identifier string) (listing.Product, error)
}

type Config struct {
	// DailyLimit is the number of comparisons a user may start within Window.
	// Zero or less disables the limit.
	DailyLimit int
	Window     time.Duration
}

type Service struct {
	comparer Comparer
	store    history.Store
	limit    int
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func New(comparer Comparer, store history.Store, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		comparer: comparer,
		store:    store,
		limit:    cfg.DailyLimit,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

// ComparePrices validates query, checks the user's limit, records the search
// and compares prices. The search record is completed with the result by its
// id, so concurrent comparisons of one user never update each other's rows.
// A comparison that fails leaves the record incomplete.
func (s *Service) ComparePrices(ctx context.Context, userID int64, query string) (*compare.PriceComparison, error) {
	identifier, err := scraper.IdentifierFromURL(query)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(slog.Int64("user_id", userID), slog.String("identifier", identifier))

	recordID, err := s.recordSearch(ctx, userID, identifier)
	if errors.Is(err, history.ErrLimitReached) {
		logger.Info("daily search limit reached", slog.Int("limit", s.limit))
		return nil, fmt.Errorf("%w: %d searches per %s", ErrDailyLimitReached, s.limit, s.window)
	}
	if err != nil {
		return nil, fmt.Errorf("record search: %w", err)
	}

	cmp, err := s.comparer.Compare(ctx, identifier)
	if err != nil {
		logger.Warn("comparison failed", slog.Int64("search_id", recordID), slog.String("error", err.Error()))
		return nil, err
	}

	if err := s.store.UpdateSearch(ctx, recordID, cmp.Item, Prices(cmp)); err != nil {
		// the comparison itself succeeded, only its history entry is incomplete
		logger.Error("failed to store comparison", slog.Int64("search_id", recordID), slog.String("error", err.Error()))
	}

	return cmp, nil
}

// recordSearch checks the limit and records the search in one step so that
// concurrent requests cannot both take the last remaining search.
func (s *Service) recordSearch(ctx context.Context, userID int64, identifier string) (int64, error) {
	if s.limit <= 0 {
		return s.store.RecordSearch(ctx, userID, identifier)
	}
	return s.store.RecordSearchWithin(ctx, userID, identifier, s.now().Add(-s.window), s.limit)
}

// Remaining is the number of comparisons userID may still start in the
// current window, or -1 when searches are unlimited.
func (s *Service) Remaining(ctx context.Context, userID int64) (int, error) {
	if s.limit <= 0 {
		return -1, nil
	}
	n, err := s.store.CountSearchesSince(ctx, userID, s.now().Add(-s.window))
	if err != nil {
		return 0, fmt.Errorf("count searches: %w", err)
	}
	return max(s.limit-n, 0), nil
}

func (s *Service) History(ctx context.Context, userID int64) ([]history.SearchRecord, error) {
	return s.store.History(ctx, userID)
}

// ProductDetails looks query up on the origin storefront without counting
// towards the limit.
func (s *Service) ProductDetails(ctx context.Context, query string) (listing.Product, error) {
	identifier, err := scraper.IdentifierFromURL(query)
	if err != nil {
		return listing.Product{}, err
	}
	return s.comparer.Product(ctx, identifier)
}

// Prices flattens a comparison into history rows, reference currency first.
func Prices(cmp *compare.PriceComparison) []history.DomainPrice {
	rows := cmp.Rows()
	prices := make([]history.DomainPrice, 0, len(rows))
	for _, r := range rows {
		prices = append(prices, history.DomainPrice{
			Currency: r.Currency,
			Domain:   r.Domain,
			Price:    r.Price,
			URL:      r.URL,
			Source:   string(r.Source),
		})
	}
	return prices
}

// Compile-time interface check.
var _ Comparer = (*compare.Comparer)(nil)
