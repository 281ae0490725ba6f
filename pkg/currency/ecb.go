package currency

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/shopspring/decimal"

	"github.com/geniass/pricecompare/pkg/scraper"
)

const ECBDailyURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

// ECBSource downloads the European Central Bank daily reference rates, which
// are quoted against EUR.
type ECBSource struct {
	URL     string
	Session scraper.SessionConfig
}

func (s ECBSource) Rates(ctx context.Context) (Table, error) {
	url := s.URL
	if url == "" {
		url = ECBDailyURL
	}

	session, err := scraper.NewSession(ctx, s.Session)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %w", ErrRatesUnavailable, err)
	}
	doc, err := session.Fetch(url)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %w", ErrRatesUnavailable, err)
	}
	if doc == nil {
		return Table{}, fmt.Errorf("%w: %s answered with an error status", ErrRatesUnavailable, url)
	}

	t, err := ParseECB(doc)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %w", ErrRatesUnavailable, err)
	}
	return t, nil
}

// ParseECB reads the eurofxref XML format:
//
//	<Cube><Cube time="2024-01-05"><Cube currency="USD" rate="1.0921"/>...</Cube></Cube>
func ParseECB(doc []byte) (Table, error) {
	root, err := xmlquery.Parse(bytes.NewReader(doc))
	if err != nil {
		return Table{}, fmt.Errorf("parse rates document: %w", err)
	}

	t := Table{
		Base:  "EUR",
		Rates: map[string]decimal.Decimal{"EUR": decimal.NewFromInt(1)},
	}

	if n := xmlquery.FindOne(root, "//*[@time]"); n != nil {
		if d, err := time.Parse(time.DateOnly, n.SelectAttr("time")); err == nil {
			t.Date = d
		}
	}

	for _, n := range xmlquery.Find(root, "//*[@currency]") {
		code := strings.ToUpper(strings.TrimSpace(n.SelectAttr("currency")))
		rate, err := decimal.NewFromString(strings.TrimSpace(n.SelectAttr("rate")))
		if err != nil {
			return Table{}, fmt.Errorf("rate for %s: %w", code, err)
		}
		t.Rates[code] = rate
	}

	if len(t.Rates) == 1 {
		return Table{}, fmt.Errorf("no rates in document")
	}
	return t, nil
}
