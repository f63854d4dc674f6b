// Package entity implements Argus's Entity Normalizer (component C):
// turning a raw entity mention into a normalized form and deciding whether
// it matches an already-known entity.
package entity

import (
	"strings"
	"unicode"
)

// Normalize reduces a raw entity mention to its comparable form: Unicode
// NFC-adjacent casefolding, punctuation stripped except apostrophes inside
// a word, and whitespace collapsed to single spaces.
func Normalize(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	runes := []rune(lowered)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' && i > 0 && i < len(runes)-1 && unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		// all other punctuation is dropped
		}
	}

	return collapseSpaces(b.String())
}

func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// spellingVariants maps common British/American and stylistic spelling
// variants that would otherwise defeat exact normalized-form matching on
// otherwise-identical entity names.
var spellingVariants = map[string]string{
	"organisation": "organization",
	"defence":      "defense",
	"labour":       "labor",
	"centre":       "center",
}

// NormalizeWithVariants applies Normalize and then substitutes known
// spelling variants token-by-token, so "World Health Organisation" and
// "World Health Organization" normalize identically.
func NormalizeWithVariants(raw string) string {
	normalized := Normalize(raw)
	tokens := strings.Split(normalized, " ")
	for i, tok := range tokens {
		if repl, ok := spellingVariants[tok]; ok {
			tokens[i] = repl
		}
	}
	return strings.Join(tokens, " ")
}
