// Package currency converts storefront prices into a reference currency.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrRatesUnavailable = errors.New("exchange rates unavailable")

// Table holds exchange rates quoted against Base: one unit of Base buys
// Rates[code] units of code. Base itself is always present with rate 1.
type Table struct {
	Base  string
	Date  time.Time
	Rates map[string]decimal.Decimal
}

func (t Table) Rate(code string) (decimal.Decimal, bool) {
	r, ok := t.Rates[strings.ToUpper(code)]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}

// Source provides a rate table.
type Source interface {
	Rates(ctx context.Context) (Table, error)
}

// FixedSource always returns the same table.
type FixedSource struct {
	Table Table
}

func (s FixedSource) Rates(context.Context) (Table, error) {
	return s.Table, nil
}

// Normalizer converts amounts into Reference using Table.
type Normalizer struct {
	Reference string
	Table     Table
}

// ToReference converts amount from code into the reference currency, rounded
// to cents. Amounts already in the reference currency are returned unchanged
// without consulting the table.
func (n Normalizer) ToReference(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	if strings.EqualFold(code, n.Reference) {
		return amount, nil
	}

	from, ok := n.Table.Rate(code)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", ErrRatesUnavailable, code)
	}
	to, ok := n.Table.Rate(n.Reference)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", ErrRatesUnavailable, n.Reference)
	}

	return amount.Mul(to).Div(from).Round(2), nil
}
