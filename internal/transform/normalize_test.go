package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases and trims", "  Jane Doe ", "jane doe"},
		{"strips diacritics", "Ann Örn", "ann orn"},
		{"collapses whitespace", "a \t b", "a b"},
		{"empty", "", ""},
		{"accented e", "café", "cafe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.input))
		})
	}
}

func TestNormalizeKeyConvergence(t *testing.T) {
	// Different source spellings of the same value must share a key.
	assert.Equal(t, NormalizeKey("José García"), NormalizeKey("jose  garcia"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@example.com", NormalizeEmail("ANN@example.com"))
	assert.Equal(t, "ann@example.com", NormalizeEmail(" ann @example.com "))
	assert.Equal(t, NormalizeEmail("Ann@X.com"), NormalizeEmail("ann@x.com"))
}

func TestNormalizeHostname(t *testing.T) {
	assert.Equal(t, "cpe-jane.local", NormalizeHostname("CPE-Jane.local"))
	assert.Equal(t, "cpe-jane.local", NormalizeHostname("cpe-jane.local."))
	assert.Equal(t, "cpe-jane", NormalizeHostname("  cpe-jane  "))
}
