package gammaapi

import "testing"

func TestCategoryTag(t *testing.T) {
	tests := []struct {
		category string
		want     string
	}{
		{"Trending", ""},
		{"", ""},
		{"Sports", "sports"},
		{"Politics", "politics"},
		{"Science & Tech", "science-tech"},
		{"Middle East", "middle-east"},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			if got := CategoryTag(tt.category); got != tt.want {
				t.Errorf("CategoryTag(%q) = %q, want %q", tt.category, got, tt.want)
			}
		})
	}
}
