package arabic

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// LevenshteinDistance returns the minimum number of single-rune insertions,
// deletions and substitutions turning a into b.
func LevenshteinDistance(a, b string) int {
	return matchr.Levenshtein(a, b)
}

// Similarity returns 1 - distance/maxLen, where maxLen is the rune length of
// the longer argument. Two empty strings are identical (1.0).
func Similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

// PrefixSimilarity compares the leading runes of line and text, both cut to
// the shorter of the two lengths. It scores how well a partial utterance
// agrees with the opening of a verse.
func PrefixSimilarity(line, text string) float64 {
	n := min(utf8.RuneCountInString(line), utf8.RuneCountInString(text))
	return Similarity(runePrefix(line, n), runePrefix(text, n))
}

// runePrefix returns the first n runes of s.
func runePrefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
