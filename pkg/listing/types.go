package listing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrMissingTitle is returned when a product page has no title. Pages like
// that are not product pages (captcha, "dog" error pages, empty shells).
var ErrMissingTitle = errors.New("product title not found")

// Listing is one storefront entry. An invalid Price means the page had no
// usable price, which is not an error.
type Listing struct {
	Title      string
	Price      decimal.NullDecimal
	Identifier string
	URL        string
	ImageURL   string
}

type Product struct {
	Listing
	Rating float64
}

func (l Listing) HasPrice() bool {
	return l.Price.Valid
}
