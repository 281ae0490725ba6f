package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geniass/pricecompare/pkg/listing"
)

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"Widget", "Widget", 100},
		{"widget pro", "Pro Widget", 100},
		{"Widget Widget Pro", "pro widget", 100},
		{"Widget", "Widget - Black, 2 Pack", 100},
		{"Acme Widget", "ACME widget (Renewed)", 100},
		{"abc", "xyz", 0},
		{"", "Widget", 0},
		// "widget blue" vs "widget red": LCS 8 over 21 characters
		{"Widget Blue", "Widget Red", 76},
		{"Widget Pro", "Garden Hose", 29},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, TokenSetRatio(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
	}
}

// Realistic storefront titles around the default threshold.
func TestTokenSetRatio_ProductTitles(t *testing.T) {
	tests := []struct {
		reference, candidate string
		expected             int
	}{
		{"Logitech Wireless Mouse", "Logitech M185 Mouse Grey Compact", 76},
		{"Anker PowerCore 10000 Portable Charger", "Anker PowerCore Slim 10000 PD USB C Power Bank", 71},
		{"Echo Dot 4th Gen Smart Speaker", "Echo Dot (5th Gen, 2022 release) Charcoal", 65},
		{"Instant Pot Duo 7-in-1 Electric Pressure Cooker", "Instant Pot Duo Plus 9-in-1 Multicooker", 72},
		{"Sony WH-1000XM4 Wireless Headphones", "Sony WH-1000XM5 Wireless Noise Canceling Headphones", 87},
	}

	for _, tc := range tests {
		score := TokenSetRatio(tc.reference, tc.candidate)
		assert.Equal(t, tc.expected, score, "%q vs %q", tc.reference, tc.candidate)
		assert.GreaterOrEqual(t, score, DefaultThreshold, "%q vs %q", tc.reference, tc.candidate)
	}
}

func TestTokenSetRatio_Symmetric(t *testing.T) {
	a := "Anker PowerCore 10000 Portable Charger"
	b := "Anker Portable Charger PowerCore Slim 10000 PD"
	assert.Equal(t, TokenSetRatio(a, b), TokenSetRatio(b, a))
	assert.GreaterOrEqual(t, TokenSetRatio(a, b), DefaultThreshold)
}

func stubScores(scores map[string]int) func(string, string) int {
	return func(_, candidate string) int { return scores[candidate] }
}

func candidates(titles ...string) []listing.Listing {
	ls := make([]listing.Listing, len(titles))
	for i, title := range titles {
		ls[i] = listing.Listing{Title: title, Identifier: title}
	}
	return ls
}

func TestBestMatch_FirstAboveThresholdWins(t *testing.T) {
	m := Matcher{
		Threshold: 60,
		Limit:     20,
		Score:     stubScores(map[string]int{"a": 55, "b": 72, "c": 90}),
	}

	got, score, ok := m.BestMatch("ref", candidates("a", "b", "c"))
	assert.True(t, ok)
	assert.Equal(t, "b", got.Title)
	assert.Equal(t, 72, score)
}

func TestBestMatch_ThresholdIsInclusive(t *testing.T) {
	m := Matcher{Threshold: 60, Limit: 20, Score: stubScores(map[string]int{"a": 59, "b": 60})}

	got, _, ok := m.BestMatch("ref", candidates("a", "b"))
	assert.True(t, ok)
	assert.Equal(t, "b", got.Title)
}

func TestBestMatch_RespectsLimit(t *testing.T) {
	m := Matcher{Threshold: 60, Limit: 2, Score: stubScores(map[string]int{"a": 10, "b": 20, "c": 99})}

	_, _, ok := m.BestMatch("ref", candidates("a", "b", "c"))
	assert.False(t, ok)
}

func TestBestMatch_NoCandidates(t *testing.T) {
	_, _, ok := NewMatcher(DefaultThreshold, DefaultLimit).BestMatch("Widget", nil)
	assert.False(t, ok)
}

func TestBestMatch_DefaultScore(t *testing.T) {
	m := NewMatcher(DefaultThreshold, DefaultLimit)

	got, score, ok := m.BestMatch("Acme Widget", candidates("Garden Hose", "Acme Widget 2-Pack", "Acme Widget"))
	assert.True(t, ok)
	assert.Equal(t, "Acme Widget 2-Pack", got.Title)
	assert.Equal(t, 100, score)
}
