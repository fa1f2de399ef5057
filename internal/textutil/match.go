package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the Unicode case-folded form of s, suitable for
// caseless comparison.
func Fold(s string) string {
	// cases.Caser carries internal state and is not safe for concurrent
	// use, so a fresh one is created per call.
	return cases.Fold().String(s)
}

// ContainsFold reports whether needle occurs within haystack under
// Unicode case folding.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}

// EqualFold reports whether a and b are equal under Unicode case folding.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}
