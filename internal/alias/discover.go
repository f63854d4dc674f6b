package alias

import (
	"regexp"
	"strings"
)

// Candidate is an alias pair surfaced from free text, awaiting the
// validity gate and (if it passes) a PENDING proposal.
type Candidate struct {
	Canonical string
	Alias     string
	PatternID string
}

// discoveryPatterns is a catalog of common phrasings that
// introduce an alias relationship in news prose.
var discoveryPatterns = []struct {
	id string
	re *regexp.Regexp
}{
	// "X, also known as Y" / "X, known as Y"
	{"also_known_as", regexp.MustCompile(`(?i)([A-Z][\w&.'-]+(?:\s+[A-Z][\w&.'-]+){0,5}),?\s+(?:also\s+)?known as\s+([A-Z][\w&.'-]+(?:\s+[A-Z][\w&.'-]+){0,5})`)},
	// "X (Y)" — parenthetical short form, e.g. "World Health Organization (WHO)"
	{"parenthetical", regexp.MustCompile(`([A-Z][\w&.'-]+(?:\s+[A-Z][\w&.'-]+){0,5})\s+\(([A-Z]{2,10})\)`)},
	// "X (a.k.a. Y)" / "X (aka Y)" / "X, formerly Y,"
	{"aka_formerly", regexp.MustCompile(`(?i)([A-Z][\w&.'-]+(?:\s+[A-Z][\w&.'-]+){0,5}),?\s+\(?(?:a\.?k\.?a\.?|formerly)\s+([A-Z][\w&.'-]*(?:\s+[A-Z][\w&.'-]+){0,5})`)},
	// "X, now known as Y"
	{"now_known_as", regexp.MustCompile(`(?i)([A-Z][\w&.'-]+(?:\s+[A-Z][\w&.'-]+){0,5}),\s+now known as\s+([A-Z][\w&.'-]+(?:\s+[A-Z][\w&.'-]+){0,5})`)},
	// "X, or Y,"
	{"or_alias", regexp.MustCompile(`(?i)([A-Z][\w&.'-]+(?:\s+[A-Z][\w&.'-]+){0,5}),?\s+or\s+([A-Z][\w&.'-]+(?:\s+[A-Z][\w&.'-]+){0,5}),`)},
}

// DiscoverFromText scans text for the pattern catalog and returns every
// candidate pair that survives the validity gate.
func DiscoverFromText(text string) []Candidate {
	var out []Candidate
	for _, p := range discoveryPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			if len(m) < 3 {
				continue
			}
			canonical, aliasName := trimCapture(m[1]), trimCapture(m[2])
			if !IsValidCandidate(canonical) || !IsValidCandidate(aliasName) {
				continue
			}
			out = append(out, Candidate{Canonical: canonical, Alias: aliasName, PatternID: p.id})
		}
	}
	return out
}

// trimCapture trims surrounding space and a leading "The " from a captured
// name, so "The World Health Organization (WHO)" yields "World Health
// Organization".
func trimCapture(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 4 && strings.EqualFold(s[:4], "the ") {
		return s[4:]
	}
	return s
}

// sentenceConnectives are words whose presence in a candidate string
// signal it was over-captured across a sentence boundary rather than
// naming a single entity.
var sentenceConnectives = []string{" and then ", " however ", " meanwhile ", " because ", " although "}

// IsValidCandidate applies a validity gate to a proposed
// canonical or alias string: at most 100 characters, at most 10 words, no
// sentence-terminator followed (after any spaces) by a capital letter, and
// no sentence-connective phrase.
func IsValidCandidate(s string) bool {
	if s == "" || len(s) > 100 {
		return false
	}
	if len(strings.Fields(s)) > 10 {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] != '.' && s[i] != '!' && s[i] != '?' {
			continue
		}
		j := i + 1
		for j < len(s) && s[j] == ' ' {
			j++
		}
		if j < len(s) && s[j] >= 'A' && s[j] <= 'Z' {
			return false
		}
	}
	lower := " " + strings.ToLower(s) + " "
	for _, c := range sentenceConnectives {
		if strings.Contains(lower, c) {
			return false
		}
	}
	return true
}
