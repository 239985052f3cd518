package service

import (
	"strings"
	"testing"
)

func TestTruncateCaption(t *testing.T) {
	tests := []struct {
		name     string
		caption  string
		limit    int
		expected string
	}{
		{"under limit", "short", 10, "short"},
		{"exact limit", "12345", 5, "12345"},
		{"over limit", "123456", 5, "12345"},
		{"empty", "", 5, ""},
		{"multibyte runes kept whole", strings.Repeat("é", 6), 5, strings.Repeat("é", 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateCaption(tt.caption, tt.limit); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
