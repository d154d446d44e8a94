// Package transform implements the field-level conversions applied
// between staged source rows and target entities: width truncation,
// enum remapping, composite-field derivation, unit conversion, and the
// documented fallbacks for malformed data. Nothing here returns an
// error; every transform resolves bad input to a deterministic value.
package transform

import (
	"fmt"
	"strings"
)

// BytesPerGiB is the fixed divisor for normalizing raw byte counters.
// The usage load binds it into SQL so the set-based path and
// BytesToGiB cannot drift apart.
const BytesPerGiB = float64(1 << 30)

// Fallback values for unparseable composite fields and unrecognized
// enum codes.
const (
	FallbackName   = "unknown"
	FallbackBucket = "other"
)

// Truncate caps s at max runes. Target column widths are counted in
// characters, not bytes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// SplitName derives (first, last) from a single full-name field. The
// first whitespace-separated token becomes the first name and the rest
// the last name. One lone token keeps last empty; a blank field falls
// back to FallbackName for both parts.
func SplitName(full string) (first, last string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return FallbackName, FallbackName
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// PlaceholderEmail returns the deterministic address used when a source
// record has no e-mail. Deriving it from the source key keeps re-runs
// from generating a second distinct placeholder for the same record.
func PlaceholderEmail(sourceKey int64) string {
	return fmt.Sprintf("entity_%d@invalid.local", sourceKey)
}

// DisambiguateEmail rewrites a duplicated address for the given
// collision rank. Rank 1 (first-seen by ascending source key) keeps the
// address unmodified; later ranks get "_<rank>" appended to the local
// part, so "jane@x.com" at rank 2 becomes "jane_2@x.com".
func DisambiguateEmail(email string, rank int) string {
	if rank <= 1 {
		return email
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return fmt.Sprintf("%s_%d", email, rank)
	}
	return fmt.Sprintf("%s_%d%s", email[:at], rank, email[at:])
}

// BytesToGiB converts a raw byte counter to the target volume unit.
func BytesToGiB(n int64) float64 {
	return float64(n) / BytesPerGiB
}

// MapEnum translates a source code through mapping, case-insensitively.
// Unrecognized codes land in the fallback bucket rather than failing
// the row.
func MapEnum(code string, mapping map[string]string, fallback string) string {
	if v, ok := mapping[strings.ToLower(strings.TrimSpace(code))]; ok {
		return v
	}
	return fallback
}

// Coalesce returns s unless it is blank, in which case def.
func Coalesce(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
