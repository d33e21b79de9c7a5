// Package originality scores how novel a claim is against a bounded window
// of recent platform content. Originality measures novelty, never accuracy;
// the score is computed once at claim creation and frozen.
package originality

import (
	"strings"
	"unicode"
)

// stopwords excluded from the keyword-based semantic fallback.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"that": {}, "this": {}, "it": {}, "to": {}, "for": {}, "of": {}, "in": {},
	"on": {}, "at": {}, "by": {}, "with": {}, "from": {}, "as": {}, "about": {},
	"into": {}, "through": {}, "during": {}, "can": {}, "could": {},
	"would": {}, "should": {}, "may": {}, "might": {}, "must": {},
}

// Tokenize lowercases the text, strips punctuation, and splits on whitespace.
func Tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Fields(b.String())
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// TokenSimilarity returns the Jaccard similarity of the two texts' token
// sets, in [0, 1].
func TokenSimilarity(a, b string) float64 {
	setA := tokenSet(Tokenize(a))
	setB := tokenSet(Tokenize(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// keywordSimilarity is the semantic fallback used when the external judge is
// unavailable: stopword-filtered keyword overlap divided by the larger
// keyword set.
func keywordSimilarity(a, b string) float64 {
	keywordsA := filterStopwords(tokenSet(Tokenize(a)))
	keywordsB := filterStopwords(tokenSet(Tokenize(b)))
	if len(keywordsA) == 0 || len(keywordsB) == 0 {
		return 0
	}

	overlap := 0
	for t := range keywordsA {
		if _, ok := keywordsB[t]; ok {
			overlap++
		}
	}
	max := len(keywordsA)
	if len(keywordsB) > max {
		max = len(keywordsB)
	}
	return float64(overlap) / float64(max)
}

func filterStopwords(set map[string]struct{}) map[string]struct{} {
	filtered := make(map[string]struct{}, len(set))
	for t := range set {
		if _, stop := stopwords[t]; !stop {
			filtered[t] = struct{}{}
		}
	}
	return filtered
}
