package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/geniass/pricecompare/pkg/listing"
)

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)
	// product links carry cruft around the identifier that breaks lookups
	// e.g. https://www.amazon.com/Some-Product-Name/dp/B07XJ8C8F5/ref=sr_1_3?keywords=widget
	productURLRegex = regexp.MustCompile(`/(?:dp|gp/product)/([A-Za-z0-9]{1,16})(?:[/?#]|$)`)
)

// Storefront builds storefront URLs and reads product and search pages. The
// same layout is served by the origin domain and all of its mirrors.
type Storefront struct {
	Scheme string
}

func (s Storefront) scheme() string {
	if s.Scheme == "" {
		return "https"
	}
	return s.Scheme
}

func (s Storefront) ProductURL(domain, identifier string) string {
	return listing.ProductURL(s.scheme(), domain, identifier)
}

func (s Storefront) SearchURL(domain, query string) string {
	return fmt.Sprintf("%s://%s/s?field-keywords=%s", s.scheme(), domain, url.QueryEscape(query))
}

// Product fetches the product page of identifier on domain. A non-success
// answer is ErrNotFound; a page without a title is listing.ErrMissingTitle.
func (s Storefront) Product(f Fetcher, domain, identifier string) (listing.Product, error) {
	u := s.ProductURL(domain, identifier)
	doc, err := f.Fetch(u)
	if err != nil {
		return listing.Product{}, err
	}
	if doc == nil {
		return listing.Product{}, fmt.Errorf("%s: %w", u, ErrNotFound)
	}

	p, err := listing.ExtractProduct(doc)
	if err != nil {
		return listing.Product{}, fmt.Errorf("%s: %w", u, err)
	}
	p.Identifier = identifier
	p.URL = u
	return p, nil
}

// Search runs a keyword search on domain and returns up to limit listings in
// page order. A non-success answer yields no listings.
func (s Storefront) Search(f Fetcher, domain, query string, limit int) ([]listing.Listing, error) {
	doc, err := f.Fetch(s.SearchURL(domain, query))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return []listing.Listing{}, nil
	}
	return listing.ExtractSearchResults(doc, domain, s.scheme(), limit)
}

// IdentifierFromURL accepts either a bare product identifier or a product
// page URL and returns the upper-cased identifier.
func IdentifierFromURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if identifierRegex.MatchString(s) {
		return strings.ToUpper(s), nil
	}
	matches := productURLRegex.FindStringSubmatch(s)
	if len(matches) != 2 {
		return "", fmt.Errorf("%q: %w", s, ErrInvalidIdentifier)
	}
	return strings.ToUpper(matches[1]), nil
}
