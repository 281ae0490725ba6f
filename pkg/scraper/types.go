package scraper

import (
	"errors"

	"github.com/gocolly/colly/v2"
	"github.com/shopspring/decimal"
)

var (
	ErrTransport           = errors.New("transport failure")
	ErrRedirectToErrorPage = errors.New("redirected to error page")
	ErrNotFound            = errors.New("page not found")
	ErrInvalidIdentifier   = errors.New("invalid product identifier")
)

// Fetcher retrieves raw documents. A nil document with a nil error means the
// server answered with a non-success status.
type Fetcher interface {
	Fetch(url string) ([]byte, error)
}

// Session is a Fetcher backed by one colly collector. Every fetch runs on
// a clone, so clones share the HTTP backend (connections, limits, redirect
// policy) but not callbacks.
type Session struct {
	colly   *colly.Collector
	headers map[string]string
}

// Source tells which lookup produced a DomainPriceResult.
type Source string

const (
	SourceDirect  Source = "direct"
	SourceSimilar Source = "similar"
	SourceNone    Source = "none"
)

// DomainPriceResult is the outcome of resolving one identifier on one
// storefront domain. Price is in the domain's own currency.
type DomainPriceResult struct {
	Domain string
	Price  decimal.NullDecimal
	URL    string
	Source Source
	// MatchedTitle is set for SourceSimilar results.
	MatchedTitle string
}
