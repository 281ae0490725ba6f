package web

import (
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geniass/pricecompare/pkg/compare"
	"github.com/geniass/pricecompare/pkg/history"
	dataio "github.com/geniass/pricecompare/pkg/io"
)

//go:embed templates
var templatesFs embed.FS

var templateFuncs = template.FuncMap{
	"price": formatPrice,
	"date":  formatTime,
}

func formatPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return "n/a"
	}
	return p.Decimal.StringFixed(2)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

type BaseContext struct {
	PathPrefix string
}

type ComparisonContext struct {
	BaseContext
	Comparison compare.PriceComparison
	// Remaining is the number of comparisons left today, -1 when unlimited.
	Remaining int
}

func (c ComparisonContext) CheapestCurrency() string {
	r, ok := c.Comparison.Cheapest()
	if !ok {
		return ""
	}
	return r.Currency
}

type HistoryContext struct {
	BaseContext
	UserID  int64
	Records []history.SearchRecord
}

type ExportsContext struct {
	BaseContext
	Title       string
	LastUpdated time.Time
	Comparisons []dataio.ComparisonWithPath
}

func (c ExportsContext) FormattedLastUpdated() string {
	return c.LastUpdated.UTC().Format("2006-01-02T15:04:05 MST")
}

func render(w io.Writer, page string, data any) error {
	t, err := template.New(page).Funcs(templateFuncs).ParseFS(templatesFs, "templates/"+page)
	if err != nil {
		return err
	}
	t, err = t.ParseFS(templatesFs, "templates/common/*")
	if err != nil {
		return err
	}

	return t.Execute(w, data)
}

func RenderHome(w io.Writer, c BaseContext) error {
	return render(w, "index.html.tpl", c)
}

func RenderComparison(w io.Writer, c ComparisonContext) error {
	return render(w, "comparison.html.tpl", c)
}

func RenderHistory(w io.Writer, c HistoryContext) error {
	return render(w, "history.html.tpl", c)
}

func RenderExports(w io.Writer, c ExportsContext) error {
	return render(w, "exports.html.tpl", c)
}

// RenderError renders a page for a failed request.
func RenderError(w io.Writer, c BaseContext, status int, msg string) error {
	return render(w, "error.html.tpl", struct {
		BaseContext
		Status  int
		Message string
	}{c, status, msg})
}
