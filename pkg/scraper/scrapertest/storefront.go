// Package scrapertest serves synthetic storefront pages for tests.
package scrapertest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

type Product struct {
	ID     string
	Title  string
	Price  string
	Rating string
}

type Result struct {
	ID    string
	Title string
	Image string
	Price string
}

// Storefront is an httptest server with the product page and search layout
// of a real storefront.
type Storefront struct {
	*httptest.Server

	products map[string]Product
	searches map[string][]Result

	mu       sync.Mutex
	requests []string
	headers  []http.Header
}

// NewStorefront serves products on /dp/{id} and searches on
// /s?field-keywords=..., keyed by the decoded query.
func NewStorefront(products []Product, searches map[string][]Result) *Storefront {
	s := &Storefront{
		products: make(map[string]Product),
		searches: searches,
	}
	for _, p := range products {
		s.products[p.ID] = p
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/dp/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		p, ok := s.products[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write(ProductPage(p))
	})

	mux.HandleFunc("/s", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		w.Header().Set("Content-Type", "text/html")
		w.Write(SearchPage(s.searches[r.URL.Query().Get("field-keywords")]...))
	})

	mux.HandleFunc("/errors/validateCaptcha", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		w.Write([]byte(`<html><body>Enter the characters you see below</body></html>`))
	})

	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Storefront) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.URL.RequestURI())
	s.headers = append(s.headers, r.Header.Clone())
}

// Domain is the host:port the storefront listens on.
func (s *Storefront) Domain() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// Requests returns the request URIs received so far, in order.
func (s *Storefront) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Headers returns the request headers received so far, in order.
func (s *Storefront) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

func ProductPage(p Product) []byte {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html lang="en">
	<body>
		<div id="dp-container">`)
	if p.Title != "" {
		fmt.Fprintf(&b, `
			<h1 id="title"><span id="productTitle" class="a-size-large product-title-word-break">        %s       </span></h1>`, p.Title)
	}
	if p.Rating != "" {
		fmt.Fprintf(&b, `
			<span id="acrPopover"><i class="a-icon a-icon-star a-star-4-5"><span class="a-icon-alt">%s</span></i></span>`, p.Rating)
	}
	if p.Price != "" {
		fmt.Fprintf(&b, `
			<div id="corePrice_feature_div"><span class="a-price aok-align-center"><span class="a-offscreen">%s</span><span aria-hidden="true"><span class="a-price-whole">0</span></span></span></div>`, p.Price)
	}
	b.WriteString(`
		</div>
	</body>
</html>`)
	return []byte(b.String())
}

// SearchPage renders results after the header block the storefront always
// puts first.
func SearchPage(results ...Result) []byte {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html lang="en">
	<body>
		<div class="s-main-slot s-result-list">
			<div class="s-result-item s-widget" data-asin=""><span>RESULTS</span></div>`)
	for _, r := range results {
		fmt.Fprintf(&b, `
			<div class="s-result-item s-asin" data-asin="%s">`, r.ID)
		if r.Image != "" {
			fmt.Fprintf(&b, `<img class="s-image" src="%s"/>`, r.Image)
		}
		if r.Title != "" {
			fmt.Fprintf(&b, `<h2><a class="a-link-normal" href="/x/dp/%s"><span class="a-size-medium a-color-base a-text-normal">%s</span></a></h2>`, r.ID, r.Title)
		}
		if r.Price != "" {
			fmt.Fprintf(&b, `<span class="a-price"><span class="a-offscreen">%s</span></span>`, r.Price)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`
		</div>
	</body>
</html>`)
	return []byte(b.String())
}
