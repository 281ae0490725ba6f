package compare

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniass/pricecompare/pkg/currency"
	"github.com/geniass/pricecompare/pkg/match"
	"github.com/geniass/pricecompare/pkg/scraper"
	"github.com/geniass/pricecompare/pkg/scraper/scrapertest"
)

type countingSource struct {
	table currency.Table
	err   error
	calls int
}

func (s *countingSource) Rates(context.Context) (currency.Table, error) {
	s.calls++
	return s.table, s.err
}

func testRates() *countingSource {
	return &countingSource{table: currency.Table{
		Base: "EUR",
		Rates: map[string]decimal.Decimal{
			"EUR": decimal.RequireFromString("1"),
			"USD": decimal.RequireFromString("1.10"),
			"GBP": decimal.RequireFromString("0.85"),
			"CAD": decimal.RequireFromString("1.50"),
		},
	}}
}

// scores fallback titles so the scenario does not depend on the metric
var scenarioScores = map[string]int{
	"Widget Pro":  75,
	"Garden Hose": 10,
}

func scenarioMatcher() match.Matcher {
	m := match.NewMatcher(match.DefaultThreshold, match.DefaultLimit)
	m.Score = func(ref, cand string) int { return scenarioScores[cand] }
	return m
}

type scenario struct {
	origin, mirrorA, mirrorB, mirrorC *scrapertest.Storefront
}

func newScenario(t *testing.T) scenario {
	t.Helper()
	s := scenario{
		origin: scrapertest.NewStorefront([]scrapertest.Product{
			{ID: "B000X", Title: "Widget", Price: "$19.99", Rating: "4.5 out of 5 stars"},
		}, nil),
		mirrorA: scrapertest.NewStorefront([]scrapertest.Product{
			{ID: "B000X", Title: "Widget", Price: "£14.99"},
		}, nil),
		mirrorB: scrapertest.NewStorefront(nil, map[string][]scrapertest.Result{
			"Widget": {{ID: "B0PRO", Title: "Widget Pro", Image: "p.jpg", Price: "12,00 €"}},
		}),
		mirrorC: scrapertest.NewStorefront(nil, map[string][]scrapertest.Result{
			"Widget": {{ID: "B0HOSE", Title: "Garden Hose", Image: "h.jpg", Price: "CDN$ 30.00"}},
		}),
	}
	t.Cleanup(func() {
		s.origin.Close()
		s.mirrorA.Close()
		s.mirrorB.Close()
		s.mirrorC.Close()
	})
	return s
}

func (s scenario) config(rates currency.Source) Config {
	return Config{
		Origin: Mirror{Domain: s.origin.Domain(), Currency: "USD"},
		Mirrors: []Mirror{
			{Domain: s.mirrorA.Domain(), Currency: "GBP"},
			{Domain: s.mirrorB.Domain(), Currency: "EUR"},
			{Domain: s.mirrorC.Domain(), Currency: "CAD"},
		},
		Storefront: scraper.Storefront{Scheme: "http"},
		Matcher:    scenarioMatcher(),
		Rates:      rates,
	}
}

func newTestComparer(t *testing.T, cfg Config) *Comparer {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestCompareScenario(t *testing.T) {
	s := newScenario(t)
	rates := testRates()
	c := newTestComparer(t, s.config(rates))

	cmp, err := c.Compare(context.Background(), "B000X")
	require.NoError(t, err)

	assert.Equal(t, "B000X", cmp.Identifier)
	assert.Equal(t, "Widget", cmp.Item)
	assert.Equal(t, 4.5, cmp.Rating)
	assert.Equal(t, "USD", cmp.Reference)
	assert.NotEmpty(t, cmp.ID)
	assert.False(t, cmp.ComparedAt.IsZero())
	require.Len(t, cmp.Entries, 4)

	usd := cmp.Entries["USD"]
	assert.Equal(t, "19.99", usd.Price.Decimal.String())
	assert.Equal(t, "http://"+s.origin.Domain()+"/dp/B000X", usd.URL)
	assert.Equal(t, scraper.SourceDirect, usd.Source)

	gbp := cmp.Entries["GBP"]
	assert.Equal(t, "19.4", gbp.Price.Decimal.String())
	assert.Equal(t, "http://"+s.mirrorA.Domain()+"/dp/B000X", gbp.URL)
	assert.Equal(t, scraper.SourceDirect, gbp.Source)

	eur := cmp.Entries["EUR"]
	assert.Equal(t, "13.2", eur.Price.Decimal.String())
	assert.Equal(t, "http://"+s.mirrorB.Domain()+"/dp/B0PRO", eur.URL)
	assert.Equal(t, scraper.SourceSimilar, eur.Source)

	cad := cmp.Entries["CAD"]
	assert.False(t, cad.Price.Valid)
	assert.Equal(t, "http://"+s.mirrorC.Domain()+"/s?field-keywords=Widget", cad.URL)
	assert.Equal(t, scraper.SourceNone, cad.Source)

	assert.Equal(t, 1, rates.calls)

	// the reference title is not fetched a second time
	assert.Equal(t, []string{"/dp/B000X"}, s.origin.Requests())
	assert.Equal(t, []string{"/dp/B000X"}, s.mirrorA.Requests())
	assert.Equal(t, []string{"/dp/B000X", "/s?field-keywords=Widget"}, s.mirrorB.Requests())
	assert.Equal(t, []string{"/dp/B000X", "/s?field-keywords=Widget"}, s.mirrorC.Requests())
}

func TestCompareRowsAndCheapest(t *testing.T) {
	s := newScenario(t)
	c := newTestComparer(t, s.config(testRates()))

	cmp, err := c.Compare(context.Background(), "B000X")
	require.NoError(t, err)

	var codes []string
	for _, r := range cmp.Rows() {
		codes = append(codes, r.Currency)
	}
	assert.Equal(t, []string{"USD", "CAD", "EUR", "GBP"}, codes)

	best, ok := cmp.Cheapest()
	require.True(t, ok)
	assert.Equal(t, "EUR", best.Currency)
	assert.Equal(t, "6.79", cmp.Savings().Decimal.String())
}

func TestCompareReferenceNotFound(t *testing.T) {
	s := newScenario(t)
	rates := testRates()
	c := newTestComparer(t, s.config(rates))

	_, err := c.Compare(context.Background(), "B0MISSING")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, err, scraper.ErrNotFound)

	assert.Empty(t, s.mirrorA.Requests())
	assert.Empty(t, s.mirrorB.Requests())
	assert.Empty(t, s.mirrorC.Requests())
	assert.Zero(t, rates.calls)
}

func TestCompareReferenceUnreachable(t *testing.T) {
	s := newScenario(t)
	s.origin.Close()
	c := newTestComparer(t, s.config(testRates()))

	_, err := c.Compare(context.Background(), "B000X")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, err, scraper.ErrTransport)
}

func TestCompareRatesUnavailable(t *testing.T) {
	s := newScenario(t)
	rates := &countingSource{err: currency.ErrRatesUnavailable}
	c := newTestComparer(t, s.config(rates))

	_, err := c.Compare(context.Background(), "B000X")
	assert.ErrorIs(t, err, ErrComparisonFailed)
	assert.ErrorIs(t, err, currency.ErrRatesUnavailable)
	assert.False(t, errors.Is(err, ErrItemNotFound))
}

func TestCompareSkipsRatesWithoutForeignPrices(t *testing.T) {
	origin := scrapertest.NewStorefront([]scrapertest.Product{
		{ID: "B000X", Title: "Widget", Price: "$19.99"},
	}, nil)
	defer origin.Close()
	mirror := scrapertest.NewStorefront(nil, nil)
	defer mirror.Close()

	rates := &countingSource{err: currency.ErrRatesUnavailable}
	c := newTestComparer(t, Config{
		Origin:     Mirror{Domain: origin.Domain(), Currency: "USD"},
		Mirrors:    []Mirror{{Domain: mirror.Domain(), Currency: "GBP"}},
		Storefront: scraper.Storefront{Scheme: "http"},
		Rates:      rates,
	})

	cmp, err := c.Compare(context.Background(), "B000X")
	require.NoError(t, err)
	assert.Zero(t, rates.calls)
	assert.Equal(t, "19.99", cmp.Entries["USD"].Price.Decimal.String())
	assert.False(t, cmp.Entries["GBP"].Price.Valid)
	assert.Equal(t, scraper.SourceNone, cmp.Entries["GBP"].Source)
}

func TestCompareMirrorFailureIsIsolated(t *testing.T) {
	s := newScenario(t)
	s.mirrorB.Close()
	c := newTestComparer(t, s.config(testRates()))

	cmp, err := c.Compare(context.Background(), "B000X")
	require.NoError(t, err)
	require.Len(t, cmp.Entries, 4)

	assert.False(t, cmp.Entries["EUR"].Price.Valid)
	assert.Equal(t, scraper.SourceNone, cmp.Entries["EUR"].Source)
	assert.Equal(t, "19.4", cmp.Entries["GBP"].Price.Decimal.String())
	assert.Equal(t, "19.99", cmp.Entries["USD"].Price.Decimal.String())
}

func TestCompareOriginWithoutPrice(t *testing.T) {
	origin := scrapertest.NewStorefront([]scrapertest.Product{{ID: "B000X", Title: "Widget"}}, nil)
	defer origin.Close()

	c := newTestComparer(t, Config{
		Origin:     Mirror{Domain: origin.Domain(), Currency: "USD"},
		Storefront: scraper.Storefront{Scheme: "http"},
		Rates:      testRates(),
	})

	cmp, err := c.Compare(context.Background(), "B000X")
	require.NoError(t, err)
	require.Len(t, cmp.Entries, 1)
	assert.False(t, cmp.Entries["USD"].Price.Valid)
	assert.Equal(t, scraper.SourceNone, cmp.Entries["USD"].Source)
	_, ok := cmp.Cheapest()
	assert.False(t, ok)
}

func TestCompareCancelled(t *testing.T) {
	s := newScenario(t)
	c := newTestComparer(t, s.config(testRates()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Compare(ctx, "B000X")
	assert.Error(t, err)
}

func TestNewValidatesMirrors(t *testing.T) {
	_, err := New(Config{Origin: Mirror{Domain: "www.amazon.com"}, Rates: testRates()})
	assert.Error(t, err)

	_, err = New(Config{Origin: Mirror{Domain: "www.amazon.com", Currency: "USD"}})
	assert.Error(t, err)

	_, err = New(Config{
		Origin:  Mirror{Domain: "www.amazon.com", Currency: "USD"},
		Mirrors: []Mirror{{Domain: "www.amazon.ca", Currency: "usd"}},
		Rates:   testRates(),
	})
	assert.Error(t, err)

	c, err := New(Config{
		Origin:  Mirror{Domain: "www.amazon.com", Currency: "usd"},
		Mirrors: []Mirror{{Domain: "www.amazon.ca", Currency: "cad"}},
		Rates:   testRates(),
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", c.Reference())
}
