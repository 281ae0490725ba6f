package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniass/pricecompare/pkg/compare"
	"github.com/geniass/pricecompare/pkg/history"
	dataio "github.com/geniass/pricecompare/pkg/io"
	"github.com/geniass/pricecompare/pkg/listing"
	"github.com/geniass/pricecompare/pkg/scraper"
	"github.com/geniass/pricecompare/pkg/service"
)

type fakeService struct {
	err       error
	users     []int64
	queries   []string
	records   []history.SearchRecord
	remaining int
}

func (f *fakeService) ComparePrices(ctx context.Context, userID int64, query string) (*compare.PriceComparison, error) {
	f.users = append(f.users, userID)
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return testComparison(), nil
}

func (f *fakeService) ProductDetails(ctx context.Context, query string) (listing.Product, error) {
	if f.err != nil {
		return listing.Product{}, f.err
	}
	return listing.Product{
		Listing: listing.Listing{
			Title: "Widget",
			Price: decimal.NewNullDecimal(decimal.RequireFromString("19.99")),
			URL:   "https://www.amazon.com/dp/" + query,
		},
		Rating: 4.5,
	}, nil
}

func (f *fakeService) History(ctx context.Context, userID int64) ([]history.SearchRecord, error) {
	f.users = append(f.users, userID)
	return f.records, f.err
}

func (f *fakeService) Remaining(ctx context.Context, userID int64) (int, error) {
	return f.remaining, nil
}

func testComparison() *compare.PriceComparison {
	return &compare.PriceComparison{
		ID:         "c-1",
		Identifier: "B000X",
		Item:       "Widget",
		Rating:     4.5,
		Reference:  "USD",
		ComparedAt: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
		Entries: map[string]compare.Entry{
			"USD": {Domain: "www.amazon.com", Price: decimal.NewNullDecimal(decimal.RequireFromString("19.99")), URL: "https://www.amazon.com/dp/B000X", Source: scraper.SourceDirect},
			"EUR": {Domain: "www.amazon.de", Price: decimal.NewNullDecimal(decimal.RequireFromString("13.20")), URL: "https://www.amazon.de/dp/B0PRO", Source: scraper.SourceSimilar},
			"CAD": {Domain: "www.amazon.ca", URL: "https://www.amazon.ca/s?field-keywords=Widget", Source: scraper.SourceNone},
		},
	}
}

func newTestServer(t *testing.T, svc Service) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(NewHandler(Config{DefaultUser: 0}, svc, logger))
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestPriceComparisonJSON(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc)

	resp, body := get(t, ts.URL+"/price-comparison/B000X?user_id=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	var got compare.PriceComparison
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Widget", got.Item)
	assert.Equal(t, "19.99", got.Entries["USD"].Price.Decimal.String())
	assert.False(t, got.Entries["CAD"].Price.Valid)
	assert.Equal(t, scraper.SourceSimilar, got.Entries["EUR"].Source)

	assert.Equal(t, []int64{5}, svc.users)
	assert.Equal(t, []string{"B000X"}, svc.queries)
}

func TestPriceComparisonDefaultUser(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc)

	resp, _ := get(t, ts.URL+"/price-comparison/B000X")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{0}, svc.users)

	resp, _ = get(t, ts.URL+"/price-comparison/B000X?user_id=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPriceComparisonErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%q: %w", "x", service.ErrInvalidIdentifier), http.StatusBadRequest},
		{fmt.Errorf("%w: B000X: %w", compare.ErrItemNotFound, scraper.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: 10 searches per 24h0m0s", service.ErrDailyLimitReached), http.StatusTooManyRequests},
		{fmt.Errorf("%w: exchange rates unavailable", compare.ErrComparisonFailed), http.StatusBadGateway},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		ts := newTestServer(t, &fakeService{err: tt.err})

		resp, body := get(t, ts.URL+"/price-comparison/B000X")
		assert.Equal(t, tt.status, resp.StatusCode, tt.err.Error())

		var e map[string]string
		require.NoError(t, json.Unmarshal(body, &e))
		assert.NotEmpty(t, e["error"])
		assert.NotContains(t, e["error"], "disk full")
	}
}

func TestProductJSON(t *testing.T) {
	ts := newTestServer(t, &fakeService{})

	resp, body := get(t, ts.URL+"/product/B000X")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Widget", got["title"])
	assert.Equal(t, "19.99", got["price"])
	assert.Equal(t, 4.5, got["rating"])
	assert.Equal(t, "https://www.amazon.com/dp/B000X", got["product_url"])

	ts = newTestServer(t, &fakeService{err: compare.ErrItemNotFound})
	resp, _ = get(t, ts.URL+"/product/B000X")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchHistoryJSON(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc)

	resp, _ := get(t, ts.URL+"/search_history?user_id=3")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	svc.records = []history.SearchRecord{{
		ID: 1, UserID: 3, Query: "B000X", ItemName: "Widget",
		Timestamp: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
		Prices: []history.DomainPrice{
			{Currency: "USD", Domain: "www.amazon.com", Price: decimal.NewNullDecimal(decimal.RequireFromString("19.99")), Source: "direct"},
		},
	}}
	resp, body := get(t, ts.URL+"/search_history?user_id=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []history.SearchRecord
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Widget", got[0].ItemName)
	assert.Equal(t, "19.99", got[0].Prices[0].Price.Decimal.String())
	assert.Equal(t, []int64{3, 3}, svc.users)
}

func TestHomePage(t *testing.T) {
	ts := newTestServer(t, &fakeService{})

	resp, body := get(t, ts.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `action="/compare"`)

	resp, _ = get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestComparePage(t *testing.T) {
	svc := &fakeService{remaining: 7}
	ts := newTestServer(t, svc)

	resp, body := get(t, ts.URL+"/compare?q=https%3A%2F%2Fwww.amazon.com%2Fdp%2FB000X")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(body)
	assert.Contains(t, page, "<h1>Widget</h1>")
	assert.Contains(t, page, "19.99")
	assert.Contains(t, page, "13.20")
	assert.Contains(t, page, "n/a")
	assert.Contains(t, page, `class="cheapest"`)
	assert.Contains(t, page, "Save 6.79")
	assert.Contains(t, page, "7 comparisons left today")
	assert.Equal(t, []string{"https://www.amazon.com/dp/B000X"}, svc.queries)

	resp, _ = get(t, ts.URL+"/compare/B000X")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "B000X", svc.queries[1])
}

func TestComparePageError(t *testing.T) {
	ts := newTestServer(t, &fakeService{err: service.ErrDailyLimitReached})

	resp, body := get(t, ts.URL+"/compare/B000X")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, string(body), "daily search limit reached")
}

func TestHistoryPage(t *testing.T) {
	svc := &fakeService{records: []history.SearchRecord{
		{ID: 2, Query: "B000Y", Timestamp: time.Date(2024, 1, 5, 13, 0, 0, 0, time.UTC)},
		{ID: 1, Query: "B000X", ItemName: "Widget", Timestamp: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)},
	}}
	ts := newTestServer(t, svc)

	resp, body := get(t, ts.URL+"/history?user_id=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(body)
	assert.Contains(t, page, "incomplete")
	assert.Contains(t, page, "Widget")
	assert.Contains(t, page, "2024-01-05 12:00 UTC")
	assert.Contains(t, page, `href="/compare/B000Y"`)
}

func TestCORS(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(NewHandler(Config{CORSOrigins: []string{"http://localhost:8000"}}, &fakeService{}, logger))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/price-comparison/B000X", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:8000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:8000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, &fakeService{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))
}

func TestRenderExports(t *testing.T) {
	var buf bytes.Buffer
	err := RenderExports(&buf, ExportsContext{
		BaseContext: BaseContext{PathPrefix: "/prices"},
		Title:       "Latest comparisons",
		LastUpdated: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
		Comparisons: []dataio.ComparisonWithPath{{PriceComparison: *testComparison(), Path: "Widget-B000X.json"}},
	})
	require.NoError(t, err)

	page := buf.String()
	assert.Contains(t, page, "Latest comparisons")
	assert.Contains(t, page, "2024-01-05T12:00:00 UTC")
	assert.Contains(t, page, `href="/prices/"`)
	assert.Contains(t, page, "13.20 USD")
	assert.Contains(t, page, "n/a USD")

	buf.Reset()
	require.NoError(t, RenderExports(&buf, ExportsContext{Title: "Empty"}))
	assert.Contains(t, buf.String(), "No comparisons exported yet")
}
