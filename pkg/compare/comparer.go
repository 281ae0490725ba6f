// Package compare reconciles the price of one product across a storefront and
// its regional mirrors.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/geniass/pricecompare/pkg/currency"
	"github.com/geniass/pricecompare/pkg/listing"
	"github.com/geniass/pricecompare/pkg/match"
	"github.com/geniass/pricecompare/pkg/scraper"
)

type Config struct {
	// Origin is the reference storefront; its currency is the reference
	// currency.
	Origin     Mirror
	Mirrors    []Mirror
	Storefront scraper.Storefront
	Matcher    match.Matcher
	Session    scraper.SessionConfig
	Rates      currency.Source
	Logger     *slog.Logger
}

type Comparer struct {
	origin     Mirror
	mirrors    []Mirror
	storefront scraper.Storefront
	resolver   *scraper.Resolver
	session    scraper.SessionConfig
	rates      currency.Source
	logger     *slog.Logger
	now        func() time.Time
}

func New(cfg Config) (*Comparer, error) {
	if cfg.Origin.Domain == "" || cfg.Origin.Currency == "" {
		return nil, fmt.Errorf("origin domain and currency are required")
	}
	if cfg.Rates == nil {
		return nil, fmt.Errorf("rate source is required")
	}

	seen := map[string]bool{strings.ToUpper(cfg.Origin.Currency): true}
	mirrors := make([]Mirror, 0, len(cfg.Mirrors))
	for _, m := range cfg.Mirrors {
		if m.Domain == "" || m.Currency == "" {
			return nil, fmt.Errorf("mirror %q: domain and currency are required", m.Domain)
		}
		code := strings.ToUpper(m.Currency)
		if seen[code] {
			return nil, fmt.Errorf("mirror %s: currency %s is configured twice", m.Domain, code)
		}
		seen[code] = true
		mirrors = append(mirrors, Mirror{Domain: m.Domain, Currency: code})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	matcher := cfg.Matcher
	if matcher.Threshold == 0 && matcher.Limit == 0 {
		matcher = match.NewMatcher(match.DefaultThreshold, match.DefaultLimit)
	}

	return &Comparer{
		origin:     Mirror{Domain: cfg.Origin.Domain, Currency: strings.ToUpper(cfg.Origin.Currency)},
		mirrors:    mirrors,
		storefront: cfg.Storefront,
		resolver:   scraper.NewResolver(cfg.Storefront, matcher, logger),
		session:    cfg.Session,
		rates:      cfg.Rates,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (c *Comparer) Reference() string {
	return c.origin.Currency
}

// Product fetches the product page of identifier on the origin storefront.
func (c *Comparer) Product(ctx context.Context, identifier string) (listing.Product, error) {
	session, err := scraper.NewSession(ctx, c.session)
	if err != nil {
		return listing.Product{}, err
	}
	p, err := c.storefront.Product(session, c.origin.Domain, identifier)
	if err != nil {
		return listing.Product{}, fmt.Errorf("%w: %w", ErrItemNotFound, err)
	}
	return p, nil
}

// Compare prices identifier on the origin and every mirror. Mirrors are
// resolved concurrently and independently; a mirror that yields nothing gets
// an entry without a price. Only a missing reference product or unavailable
// exchange rates fail the whole comparison.
func (c *Comparer) Compare(ctx context.Context, identifier string) (*PriceComparison, error) {
	id := uuid.NewString()
	logger := c.logger.With(
		slog.String("comparison_id", id),
		slog.String("identifier", identifier),
	)
	start := time.Now()

	session, err := scraper.NewSession(ctx, c.session)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrComparisonFailed, err)
	}

	ref, err := c.storefront.Product(session, c.origin.Domain, identifier)
	if err != nil {
		logger.Info("reference product unavailable", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %s: %w", ErrItemNotFound, identifier, err)
	}

	// every task owns its slot
	results := make([]scraper.DomainPriceResult, len(c.mirrors))
	var g errgroup.Group
	for i, m := range c.mirrors {
		g.Go(func() error {
			results[i] = c.resolver.Resolve(session, identifier, m.Domain, ref.Title)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrComparisonFailed, err)
	}

	n := currency.Normalizer{Reference: c.origin.Currency}
	if c.needsRates(results) {
		table, err := c.rates.Rates(ctx)
		if err != nil {
			logger.Error("exchange rates unavailable", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %w", ErrComparisonFailed, err)
		}
		n.Table = table
	}

	cmp := &PriceComparison{
		ID:         id,
		Identifier: identifier,
		Item:       ref.Title,
		Rating:     ref.Rating,
		Reference:  c.origin.Currency,
		Entries:    make(map[string]Entry, len(c.mirrors)+1),
		ComparedAt: c.now().UTC(),
	}
	origin := Entry{Domain: c.origin.Domain, URL: ref.URL, Source: scraper.SourceNone}
	if ref.Price.Valid {
		origin.Price = ref.Price
		origin.Source = scraper.SourceDirect
	}
	cmp.Entries[c.origin.Currency] = origin

	for i, m := range c.mirrors {
		r := results[i]
		e := Entry{Domain: r.Domain, URL: r.URL, Source: r.Source}
		if r.Price.Valid {
			p, err := n.ToReference(r.Price.Decimal, m.Currency)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrComparisonFailed, m.Domain, err)
			}
			e.Price = decimal.NewNullDecimal(p)
		}
		cmp.Entries[m.Currency] = e
	}

	logger.Info("comparison complete",
		slog.String("item", cmp.Item),
		slog.Int("priced", priced(cmp)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return cmp, nil
}

// rates are only needed for prices outside the reference currency
func (c *Comparer) needsRates(results []scraper.DomainPriceResult) bool {
	for i, m := range c.mirrors {
		if results[i].Price.Valid && m.Currency != c.origin.Currency {
			return true
		}
	}
	return false
}

func priced(c *PriceComparison) int {
	n := 0
	for _, e := range c.Entries {
		if e.Price.Valid {
			n++
		}
	}
	return n
}
