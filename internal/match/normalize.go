// Package match implements the fuzzy name-matching engine: text
// normalization, a multi-measure similarity score in [0,100], and the
// single/bulk search routines that rank dataset rows against query names.
package match

import (
	"strings"
	"unicode"
)

// Normalize lowercases the input, strips punctuation, and collapses all
// internal whitespace to single spaces. It is idempotent; empty input
// normalizes to the empty string.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			// Punctuation and whitespace both become separators so
			// "O'Brien" and "O Brien" normalize identically.
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// tokens splits a normalized string into its whitespace-separated tokens.
func tokens(s string) []string {
	return strings.Fields(s)
}
