// Package match scores listing titles against a reference title.
package match

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// TokenSetRatio scores the similarity of two titles from 0 to 100. Word order,
// repeated words, case and punctuation are ignored, and a title whose words
// are all contained in the other scores 100, so "Widget" matches
// "Widget - Black, 2 Pack".
//
// The sorted intersection and the two sorted remainders are compared
// pairwise with the indel ratio 2*LCS/(len(a)+len(b)); the best pair wins.
func TokenSetRatio(a, b string) int {
	// non-ASCII letters are kept, punctuation becomes a token boundary
	return fuzzy.TokenSetRatio(a, b, false, true)
}
