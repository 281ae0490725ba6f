package compare

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geniass/pricecompare/pkg/scraper"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrComparisonFailed = errors.New("comparison failed")
)

// Mirror is a storefront domain and the currency it prices in.
type Mirror struct {
	Domain   string `json:"domain" toml:"domain"`
	Currency string `json:"currency" toml:"currency"`
}

// Entry is one storefront's price converted into the reference currency.
type Entry struct {
	Domain string              `json:"domain"`
	Price  decimal.NullDecimal `json:"price"`
	URL    string              `json:"url"`
	Source scraper.Source      `json:"source"`
}

// PriceComparison is built once per comparison and not modified afterwards.
// Entries holds exactly one entry per configured currency.
type PriceComparison struct {
	ID         string           `json:"id"`
	Identifier string           `json:"identifier"`
	Item       string           `json:"item"`
	Rating     float64          `json:"rating"`
	Reference  string           `json:"reference_currency"`
	Entries    map[string]Entry `json:"entries"`
	ComparedAt time.Time        `json:"compared_at"`
}

type Row struct {
	Currency string
	Entry
}

// Rows lists the entries with the reference currency first and the rest by
// currency code.
func (c PriceComparison) Rows() []Row {
	rows := make([]Row, 0, len(c.Entries))
	for code, e := range c.Entries {
		rows = append(rows, Row{Currency: code, Entry: e})
	}
	sort.Slice(rows, func(i, j int) bool {
		if (rows[i].Currency == c.Reference) != (rows[j].Currency == c.Reference) {
			return rows[i].Currency == c.Reference
		}
		return rows[i].Currency < rows[j].Currency
	})
	return rows
}

// Cheapest returns the priced row with the lowest price, preferring the
// reference currency on ties.
func (c PriceComparison) Cheapest() (Row, bool) {
	var (
		best  Row
		found bool
	)
	for _, r := range c.Rows() {
		if !r.Price.Valid {
			continue
		}
		if !found || r.Price.Decimal.LessThan(best.Price.Decimal) {
			best, found = r, true
		}
	}
	return best, found
}

// Savings is how much cheaper the cheapest row is than the reference row.
func (c PriceComparison) Savings() decimal.NullDecimal {
	ref, ok := c.Entries[c.Reference]
	if !ok || !ref.Price.Valid {
		return decimal.NullDecimal{}
	}
	best, ok := c.Cheapest()
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(ref.Price.Decimal.Sub(best.Price.Decimal))
}
