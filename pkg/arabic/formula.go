package arabic

import "strings"

// DefaultFormulaThreshold is the per-word similarity at which a spoken word is
// taken to be part of an opening formula.
const DefaultFormulaThreshold = 0.8

// Opening formulas, already normalized.
var (
	// Istiadha is the prayer for refuge recited before a passage.
	Istiadha = []string{"اعوذ", "بالله", "من", "الشيطان", "الرجيم"}

	// Basmala opens every chapter but one.
	Basmala = []string{"بسم", "الله", "الرحمن", "الرحيم"}
)

// leadingMatches counts how many leading words of words agree with formula,
// stopping at the first disagreement.
func leadingMatches(words, formula []string, threshold float64) int {
	n := 0
	for i := 0; i < len(formula) && i < len(words); i++ {
		if Similarity(words[i], formula[i]) < threshold {
			break
		}
		n++
	}
	return n
}

// RemoveOpeningFormula strips formula from the start of text.
//
// At least two leading words must agree with the formula for anything to be
// removed. When every formula word agrees, all of them are dropped; when only
// the last one disagrees (or has not been spoken yet), the agreeing prefix is
// dropped. In every other case text is returned unchanged.
func RemoveOpeningFormula(text string, formula []string, threshold float64) string {
	words := strings.Fields(text)
	matched := leadingMatches(words, formula, threshold)
	if matched < 2 {
		return text
	}
	if matched != len(formula) && matched != len(formula)-1 {
		return text
	}
	return strings.Join(words[matched:], " ")
}

// HasOpeningFormula reports whether text begins with every word of formula.
func HasOpeningFormula(text string, formula []string, threshold float64) bool {
	words := strings.Fields(text)
	if len(words) < len(formula) {
		return false
	}
	return leadingMatches(words, formula, threshold) == len(formula)
}
