// Package validator judges player answers against the canonical answer.
package validator

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AlternativeSeparator splits a canonical answer into accepted variants,
// e.g. "Leningrad|Saint Petersburg".
const AlternativeSeparator = "|"

// Normalize folds case, strips diacritics and punctuation and collapses
// whitespace so that "  Écoute!" and "ecoute" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// Matches reports whether answer equals any variant of correct after
// normalization. Empty answers never match.
func Matches(answer, correct string) bool {
	given := Normalize(answer)
	if given == "" {
		return false
	}
	for _, variant := range strings.Split(correct, AlternativeSeparator) {
		if given == Normalize(variant) {
			return true
		}
	}
	return false
}

// Exact is a Validator doing normalized string comparison.
type Exact struct{}

// Validate implements the engine's Validator contract. It never fails.
func (Exact) Validate(_ context.Context, userAnswer, correctAnswer, _, _ string) (bool, error) {
	return Matches(userAnswer, correctAnswer), nil
}
