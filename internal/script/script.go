// Package script classifies text samples into writing-system buckets by
// Unicode code-point range and computes their proportional distribution.
package script

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Supported scripts.
const (
	Latin      = "latin"
	Devanagari = "devanagari"
	Gurmukhi   = "gurmukhi"
)

// Distribution maps a script name to the percentage of non-whitespace
// characters belonging to it. Percentages may sum to less than 100 since
// digits, punctuation and characters of other scripts are counted in the
// total but belong to no bucket.
type Distribution map[string]float64

// Normalize collapses all whitespace runs to single spaces and applies
// Unicode NFC normalization.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return norm.NFC.String(s)
}

// Analyze computes the script distribution of a text sample. The sample is
// expected to be normalized already. Empty or whitespace-only input yields an
// all-zero distribution.
func Analyze(text string) Distribution {
	dist := Distribution{Latin: 0, Devanagari: 0, Gurmukhi: 0}

	var total, latin, devanagari, gurmukhi int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case isLatinLetter(r):
			latin++
		case isDevanagari(r):
			devanagari++
		case isGurmukhi(r):
			gurmukhi++
		}
	}

	if total == 0 {
		return dist
	}

	dist[Latin] = float64(latin) / float64(total) * 100
	dist[Devanagari] = float64(devanagari) / float64(total) * 100
	dist[Gurmukhi] = float64(gurmukhi) / float64(total) * 100
	return dist
}

// Strip returns only the characters of the three supported scripts, plus
// spaces, dropping everything else. Used to clean samples before statistical
// detection.
func Strip(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == ' ' || isLatinLetter(r) || isDevanagari(r) || isGurmukhi(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Basic Latin letters only; digits and punctuation stay unclassified so a
// page of numbers does not read as English.
func isLatinLetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func isDevanagari(r rune) bool {
	return r >= 0x0900 && r <= 0x097F
}

func isGurmukhi(r rune) bool {
	return r >= 0x0A00 && r <= 0x0A7F
}
