package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantFirst string
		wantLast  string
	}{
		{"simple pair", "Jane Doe", "Jane", "Doe"},
		{"multi-part surname", "Jane van der Berg", "Jane", "van der Berg"},
		{"single token", "Cher", "Cher", ""},
		{"extra whitespace", "  Jane   Doe  ", "Jane", "Doe"},
		{"blank", "", FallbackName, FallbackName},
		{"whitespace only", "   ", FallbackName, FallbackName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := SplitName(tt.input)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestPlaceholderEmail(t *testing.T) {
	assert.Equal(t, "entity_7@invalid.local", PlaceholderEmail(7))
	// Same key, same placeholder, every time.
	assert.Equal(t, PlaceholderEmail(42), PlaceholderEmail(42))
}

func TestDisambiguateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		rank  int
		want  string
	}{
		{"rank one unchanged", "jane@x.com", 1, "jane@x.com"},
		{"rank zero unchanged", "jane@x.com", 0, "jane@x.com"},
		{"rank two suffixed", "jane@x.com", 2, "jane_2@x.com"},
		{"rank ten suffixed", "jane@x.com", 10, "jane_10@x.com"},
		{"no at sign", "not-an-address", 2, "not-an-address_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisambiguateEmail(tt.email, tt.rank))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
	// Rune-safe: multibyte characters are not split.
	assert.Equal(t, "héll", Truncate("héllo", 4))
}

func TestBytesToGiB(t *testing.T) {
	assert.Equal(t, 1.0, BytesToGiB(1<<30))
	assert.Equal(t, 0.5, BytesToGiB(1<<29))
	assert.Equal(t, 0.0, BytesToGiB(0))
}

func TestMapEnum(t *testing.T) {
	statuses := map[string]string{"a": "active", "c": "closed"}

	assert.Equal(t, "active", MapEnum("A", statuses, FallbackBucket))
	assert.Equal(t, "active", MapEnum("  a ", statuses, FallbackBucket))
	assert.Equal(t, "closed", MapEnum("c", statuses, FallbackBucket))
	assert.Equal(t, FallbackBucket, MapEnum("zz", statuses, FallbackBucket))
	assert.Equal(t, FallbackBucket, MapEnum("", statuses, FallbackBucket))
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "x", Coalesce("x", "d"))
	assert.Equal(t, "d", Coalesce("", "d"))
	assert.Equal(t, "d", Coalesce("   ", "d"))
}
