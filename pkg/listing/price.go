package listing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// first number in the text, allowing grouping characters inside it
var priceTokenRegex = regexp.MustCompile(`\d(?:[\d.,\s\x{00a0}\x{202f}]*\d)?`)

var priceSpaceReplacer = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "", "\n", "")

// ParsePrice turns storefront price text such as "$1,299.99", "£12.00" or
// "1.299,99 €" into a decimal. Text without a parseable number yields an
// invalid NullDecimal.
func ParsePrice(text string) decimal.NullDecimal {
	token := priceTokenRegex.FindString(text)
	if token == "" {
		return decimal.NullDecimal{}
	}
	s := priceSpaceReplacer.Replace(token)

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.299,99
			s = strings.ReplaceAll(s[:lastComma], ".", "") + "." + s[lastComma+1:]
			s = strings.ReplaceAll(s, ",", "")
		} else {
			// 1,299.99
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// a lone comma before one or two digits is a decimal comma: 12,5 or 12,99
		if decimals := len(s) - lastComma - 1; strings.Count(s, ",") == 1 && decimals >= 1 && decimals <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
