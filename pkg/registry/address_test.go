package registry

import (
	"strings"
	"testing"
)

func TestIsValidOnionAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"valid v3", strings.Repeat("a", 56) + ".onion", true},
		{"valid v2", strings.Repeat("b", 16) + ".onion", true},
		{"valid v3 with digits", strings.Repeat("a2b7", 14) + ".onion", true},
		{"empty", "", false},
		{"missing suffix", strings.Repeat("a", 62), false},
		{"wrong suffix", strings.Repeat("a", 56) + ".union", false},
		{"v3 one short", strings.Repeat("a", 55) + ".onion", false},
		{"v3 one long", strings.Repeat("a", 57) + ".onion", false},
		{"v2 one short", strings.Repeat("a", 15) + ".onion", false},
		{"uppercase", strings.Repeat("A", 56) + ".onion", false},
		{"digit outside base32", strings.Repeat("a", 55) + "1.onion", false},
		{"digit zero", strings.Repeat("a", 55) + "0.onion", false},
		{"embedded dot", strings.Repeat("a", 27) + "." + strings.Repeat("a", 28) + ".onion", false},
		{"suffix only", ".onion", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidOnionAddress(tt.address); got != tt.want {
				t.Errorf("IsValidOnionAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}
