package textutil

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Fingerprint is a term-frequency vector over a piece of transcript text.
// Two fingerprints can be compared for topical similarity or containment
// without retaining the text itself.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
	mass   float64
}

// NewFingerprint builds a fingerprint from text. Returns nil when the text
// yields no usable tokens (empty, whitespace, or only short words).
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm, mass float64
	for _, count := range counts {
		norm += count * count
		mass += count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
		mass:   mass,
	}
}

// Tokenize lowercases text and splits it on non-alphanumeric runs, dropping
// tokens shorter than three characters. Transcribers disagree on
// punctuation and casing; this keeps comparisons stable across them.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	raw := tokenSplitPattern.Split(lowered, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimSpace(token)
		if len(token) < 3 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of distinct tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}
