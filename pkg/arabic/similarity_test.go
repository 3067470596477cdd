package arabic_test

import (
	"math"
	"testing"

	"github.com/amrmuhaffez/muhaffez/pkg/arabic"
)

func TestLevenshteinDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"test", "test", 0},
		{"", "abc", 3},
		{"الله", "اللة", 1},
	}
	for _, tt := range tests {
		if got := arabic.LevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := arabic.LevenshteinDistance(tt.b, tt.a); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d (symmetry)", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "both empty", a: "", b: "", want: 1},
		{name: "identical", a: "الحمد", b: "الحمد", want: 1},
		{name: "one empty", a: "", b: "رب", want: 0},
		{name: "one substitution in four", a: "الله", b: "اللة", want: 0.75},
		{name: "kitten sitting", a: "kitten", b: "sitting", want: 1 - 3.0/7.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := arabic.Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPrefixSimilarity(t *testing.T) {
	t.Parallel()

	line := "الحمد لله رب العالمين"
	if got := arabic.PrefixSimilarity(line, "الحمد لله"); got != 1 {
		t.Errorf("PrefixSimilarity(line, spoken opening) = %f, want 1", got)
	}
	if got := arabic.PrefixSimilarity("قل هو", "قل هو الله احد"); got != 1 {
		t.Errorf("PrefixSimilarity(short line, longer text) = %f, want 1", got)
	}
	if got := arabic.PrefixSimilarity(line, "مالك يوم"); got >= 0.5 {
		t.Errorf("PrefixSimilarity(line, unrelated) = %f, want < 0.5", got)
	}
}
