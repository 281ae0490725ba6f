package scraper

import (
	"log/slog"

	"github.com/geniass/pricecompare/pkg/listing"
	"github.com/geniass/pricecompare/pkg/match"
)

// Resolver finds the price of one product on one storefront domain.
type Resolver struct {
	storefront Storefront
	matcher    match.Matcher
	logger     *slog.Logger
}

func NewResolver(storefront Storefront, matcher match.Matcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{storefront: storefront, matcher: matcher, logger: logger}
}

// Resolve looks identifier up on domain. When the product page yields no
// price, for whatever reason, the domain is searched for referenceTitle and
// the first sufficiently similar priced result is used instead. Resolve never
// fails: a result without a price carries the last URL attempted.
func (r *Resolver) Resolve(f Fetcher, identifier, domain, referenceTitle string) DomainPriceResult {
	logger := r.logger.With(slog.String("domain", domain), slog.String("identifier", identifier))

	p, err := r.storefront.Product(f, domain, identifier)
	switch {
	case err != nil:
		logger.Debug("direct lookup failed", slog.String("error", err.Error()))
	case p.HasPrice():
		return DomainPriceResult{
			Domain: domain,
			Price:  p.Price,
			URL:    p.URL,
			Source: SourceDirect,
		}
	default:
		logger.Debug("direct lookup has no price")
	}

	searchURL := r.storefront.SearchURL(domain, referenceTitle)
	none := DomainPriceResult{Domain: domain, URL: searchURL, Source: SourceNone}

	results, err := r.storefront.Search(f, domain, referenceTitle, r.matcher.Limit)
	if err != nil {
		logger.Debug("similarity search failed", slog.String("error", err.Error()))
		return none
	}

	m, score, ok := r.matcher.BestMatch(referenceTitle, priced(results))
	if !ok {
		logger.Debug("no similar listing", slog.Int("candidates", len(results)))
		return none
	}

	logger.Debug("similar listing matched",
		slog.String("title", m.Title),
		slog.Int("score", score),
	)
	return DomainPriceResult{
		Domain:       domain,
		Price:        m.Price,
		URL:          m.URL,
		Source:       SourceSimilar,
		MatchedTitle: m.Title,
	}
}

// a similar listing is only useful if it carries a price
func priced(ls []listing.Listing) []listing.Listing {
	out := make([]listing.Listing, 0, len(ls))
	for _, l := range ls {
		if l.HasPrice() {
			out = append(out, l)
		}
	}
	return out
}
