package match

import "github.com/geniass/pricecompare/pkg/listing"

const (
	DefaultThreshold = 60
	DefaultLimit     = 20
)

// Matcher picks a listing from search results whose title resembles a
// reference title.
type Matcher struct {
	// Threshold is the minimum acceptable score.
	Threshold int
	// Limit is the maximum number of candidates scanned.
	Limit int
	// Score defaults to TokenSetRatio.
	Score func(reference, candidate string) int
}

func NewMatcher(threshold, limit int) Matcher {
	return Matcher{Threshold: threshold, Limit: limit, Score: TokenSetRatio}
}

// BestMatch returns the first candidate, in the order given, that scores at
// least m.Threshold. It does not look for the highest score: page order
// decides between candidates that clear the threshold.
func (m Matcher) BestMatch(reference string, candidates []listing.Listing) (listing.Listing, int, bool) {
	score := m.Score
	if score == nil {
		score = TokenSetRatio
	}
	limit := m.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	for i, c := range candidates {
		if i >= limit {
			break
		}
		if s := score(reference, c.Title); s >= m.Threshold {
			return c, s, true
		}
	}
	return listing.Listing{}, 0, false
}
