package transform

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// whitespaceRe collapses runs of whitespace during key normalization.
var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeKey canonicalizes a string for use as a match key:
// lowercase, trimmed, diacritics stripped (NFD decompose, drop
// combining marks), whitespace collapsed. Two source spellings of the
// same value normalize to the same key.
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	s = stripDiacritics(s)
	return whitespaceRe.ReplaceAllString(s, " ")
}

// NormalizeEmail canonicalizes an address for duplicate detection.
// Interior whitespace is removed entirely: it is always a data-entry
// artifact in an address.
func NormalizeEmail(s string) string {
	return strings.ReplaceAll(NormalizeKey(s), " ", "")
}

// NormalizeHostname canonicalizes a hostname for fallback matching:
// lowercase, trimmed, trailing root dot removed.
func NormalizeHostname(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSuffix(s, ".")
}

// stripDiacritics removes combining marks after NFD decomposition.
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
