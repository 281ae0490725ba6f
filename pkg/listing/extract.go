package listing

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	titleSelector        = "#productTitle"
	priceSelector        = ".a-price .a-offscreen"
	ratingSelector       = ".a-icon-star .a-icon-alt"
	resultSelector       = ".s-result-item"
	resultTitleSelector  = ".a-text-normal"
	resultImageSelector  = ".s-image"
	resultIdentifierAttr = "data-asin"
)

// ExtractProduct parses a product page. A page without a title is rejected
// with ErrMissingTitle; a missing price or rating is not an error.
func ExtractProduct(doc []byte) (Product, error) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return Product{}, fmt.Errorf("parse product page: %w", err)
	}

	title := strings.TrimSpace(d.Find(titleSelector).First().Text())
	if title == "" {
		return Product{}, ErrMissingTitle
	}

	p := Product{
		Listing: Listing{
			Title: title,
			Price: ParsePrice(d.Find(priceSelector).First().Text()),
		},
		Rating: parseRating(d.Find(ratingSelector).First().Text()),
	}
	return p, nil
}

// ExtractSearchResults scans the result blocks of a search page in page order
// and returns at most limit well-formed listings. The first block is skipped,
// the storefront reserves it for a header slot. Blocks missing a title, an
// identifier, or both of image and price are dropped one by one.
func ExtractSearchResults(doc []byte, domain, scheme string, limit int) ([]Listing, error) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	results := []Listing{}
	if limit <= 0 {
		return results, nil
	}

	d.Find(resultSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i == 0 {
			return true
		}
		if l, ok := extractResult(s, domain, scheme); ok {
			results = append(results, l)
		}
		return len(results) < limit
	})

	return results, nil
}

func extractResult(s *goquery.Selection, domain, scheme string) (Listing, bool) {
	id := strings.TrimSpace(s.AttrOr(resultIdentifierAttr, ""))
	title := strings.TrimSpace(s.Find(resultTitleSelector).First().Text())
	image := s.Find(resultImageSelector).First().AttrOr("src", "")
	price := ParsePrice(s.Find(priceSelector).First().Text())

	if id == "" || title == "" || (image == "" && !price.Valid) {
		return Listing{}, false
	}

	return Listing{
		Title:      title,
		Price:      price,
		Identifier: id,
		URL:        ProductURL(scheme, domain, id),
		ImageURL:   image,
	}, true
}

// ProductURL is the canonical product page of identifier on domain.
func ProductURL(scheme, domain, identifier string) string {
	return fmt.Sprintf("%s://%s/dp/%s", scheme, domain, identifier)
}

// "4.5 out of 5 stars" -> 4.5; some mirrors write "4,5 von 5 Sternen"
func parseRating(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	r, err := strconv.ParseFloat(strings.Replace(fields[0], ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return r
}
