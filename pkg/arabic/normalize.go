// Package arabic holds the text primitives the recitation engine is built on:
// orthographic normalization of Arabic script, rune-level edit distance and
// the similarity score derived from it, and helpers for the opening formulas
// reciters commonly say before a passage.
//
// Everything in this package is pure and safe for concurrent use.
package arabic

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Diacritic range removed by [Normalize]: the harakat block plus the
// superscript alef.
const (
	diacriticFirst  = '\u064B'
	diacriticLast   = '\u065F'
	superscriptAlef = '\u0670'
)

// hamzaFold maps hamza-carrying letters to their bare carrier.
var hamzaFold = map[rune]rune{
	'إ': 'ا',
	'أ': 'ا',
	'آ': 'ا',
	'ؤ': 'و',
	'ئ': 'ي',
}

// stripped reports whether r is dropped during normalization.
func stripped(r rune) bool {
	switch {
	case r >= diacriticFirst && r <= diacriticLast, r == superscriptAlef:
		return true
	case unicode.Is(unicode.Cf, r):
		return true
	case unicode.IsControl(r) && !unicode.IsSpace(r):
		return true
	}
	return false
}

func fold(r rune) rune {
	if m, ok := hamzaFold[r]; ok {
		return m
	}
	return r
}

// Normalize returns text with diacritics and invisible format characters
// removed and hamza forms folded onto their carrier letter.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s). It never
// reorders characters and leaves letters outside the folded set untouched.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	// transform.Chain keeps internal buffers, so each call builds its own.
	t := transform.Chain(runes.Remove(runes.Predicate(stripped)), runes.Map(fold))
	out, _, err := transform.String(t, text)
	if err != nil {
		// Neither transformer can fail on valid or invalid UTF-8 input.
		return text
	}
	return out
}
