package cmd

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 5, 15, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		input string
		want  string
	}{
		{"2024-05-01", "2024-05-01"},
		{"today", "2024-05-15"},
		{"Yesterday", "2024-05-14"},
		{"3d ago", "2024-05-12"},
		{"2w", "2024-05-01"},
		{"1mo ago", "2024-04-15"},
		{"monday", "2024-05-13"},
		{"wed", "2024-05-15"},
		{"last wed", "2024-05-08"},
	}
	for _, tt := range tests {
		got, err := parseDay(tt.input, now)
		if err != nil {
			t.Fatalf("parseDay(%q) error: %v", tt.input, err)
		}
		if got.Format(time.DateOnly) != tt.want {
			t.Errorf("parseDay(%q) = %s, want %s", tt.input, got.Format(time.DateOnly), tt.want)
		}
	}

	for _, bad := range []string{"", "soon", "0d", "2024-13-01"} {
		if _, err := parseDay(bad, now); err == nil {
			t.Errorf("parseDay(%q) expected error", bad)
		}
	}
}
