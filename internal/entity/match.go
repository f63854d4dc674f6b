package entity

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"

	"argus/internal/config"
	"argus/internal/model"
)

// NegativeMatchChecker reports whether two surface names of a given type
// have been explicitly marked non-equivalent.
type NegativeMatchChecker interface {
	IsNegative(ctx context.Context, nameA, nameB string, typ model.EntityType) (bool, error)
}

// AliasChecker reports whether two surface names are a known approved
// alias pair (the Alias Repository, component D).
type AliasChecker interface {
	AreEquivalent(ctx context.Context, nameA, nameB string, typ model.EntityType) (bool, error)
}

// Matcher decides whether a raw mention refers to an already-known entity
//.
type Matcher struct {
	negatives NegativeMatchChecker
	aliases   AliasChecker
	cfg       *config.Entity
}

func NewMatcher(negatives NegativeMatchChecker, aliases AliasChecker, cfg *config.Entity) *Matcher {
	return &Matcher{negatives: negatives, aliases: aliases, cfg: cfg}
}

// Decision is the outcome of comparing a mention to a candidate entity.
type Decision struct {
	Match      bool
	Reason     string
	Confidence float64
}

// Match decides whether mention (already normalized via NormalizeWithVariants)
// refers to the same entity as candidateNormalized, both of type typ.
// Order of checks: exact normalized-form equality first,
// negative-match short-circuit second, approved-alias lookup third,
// type-specific fuzzy thresholds last.
func (m *Matcher) Match(ctx context.Context, mentionRaw, mentionNormalized, candidateRaw, candidateNormalized string, typ model.EntityType) (Decision, error) {
	if mentionNormalized == candidateNormalized {
		return Decision{Match: true, Reason: "exact normalized form", Confidence: 1.0}, nil
	}

	if m.negatives != nil {
		neg, err := m.negatives.IsNegative(ctx, mentionRaw, candidateRaw, typ)
		if err != nil {
			return Decision{}, err
		}
		if neg {
			return Decision{Match: false, Reason: "negative match on record"}, nil
		}
	}

	if m.aliases != nil {
		equiv, err := m.aliases.AreEquivalent(ctx, mentionRaw, candidateRaw, typ)
		if err != nil {
			return Decision{}, err
		}
		if equiv {
			return Decision{Match: true, Reason: "approved alias", Confidence: 1.0}, nil
		}
	}

	if typ == model.EntityOrganization && isAcronymOf(mentionNormalized, candidateNormalized) {
		return Decision{Match: true, Reason: "acronym match", Confidence: 0.95}, nil
	}
	if typ == model.EntityProduct && hasBrandPrefixOverlap(mentionNormalized, candidateNormalized) {
		return Decision{Match: true, Reason: "brand prefix overlap", Confidence: 0.9}, nil
	}

	if guardBarePrefix(mentionNormalized, candidateNormalized) {
		return Decision{Match: false, Reason: "bare-prefix guard"}, nil
	}
	if typ == model.EntityPerson && isStrictPlural(mentionNormalized, candidateNormalized) {
		return Decision{Match: false, Reason: "strict plural guard"}, nil
	}

	threshold := m.thresholdFor(typ)
	jw := JaroWinkler(mentionNormalized, candidateNormalized)
	lev := levenshtein.ComputeDistance(mentionNormalized, candidateNormalized)

	if jw >= threshold.JaroWinkler && lev <= threshold.Levenshtein {
		return Decision{Match: true, Reason: "fuzzy match", Confidence: jw}, nil
	}
	return Decision{Match: false, Reason: "below fuzzy threshold", Confidence: jw}, nil
}

func (m *Matcher) thresholdFor(typ model.EntityType) config.FuzzyThreshold {
	if m.cfg != nil {
		if t, ok := m.cfg.Thresholds[string(typ)]; ok {
			return t
		}
	}
	return config.FuzzyThreshold{JaroWinkler: 0.85, Levenshtein: 3}
}

// acronymStopwords are dropped before taking word initials, so e.g. "FBI"
// matches "Federal Bureau of Investigation" (4 words, 3 initials) rather
// than being rejected for a word/letter count mismatch.
var acronymStopwords = map[string]bool{
	"of": true, "the": true, "and": true, "for": true, "in": true, "&": true,
}

func contentWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !acronymStopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// isAcronymOf reports whether short is plausibly an acronym of long, e.g.
// "who" for "world health organization": every letter of short appears, in
// order, as the first letter of consecutive content words of long.
func isAcronymOf(short, long string) bool {
	a, b := short, long
	if len(a) > len(b) {
		a, b = b, a
	}
	words := contentWords(strings.Fields(b))
	if len(a) == 0 || len(a) != countInitialMatch(a, words) {
		return false
	}
	return true
}

// isStrictPlural reports whether the longer name is exactly the shorter
// name with a trailing "s"/"es" appended, e.g. "Smiths" vs. "Smith".
func isStrictPlural(a, b string) bool {
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if shorter == "" {
		return false
	}
	return longer == shorter+"s" || longer == shorter+"es"
}

func countInitialMatch(acronym string, words []string) int {
	if len(acronym) != len(words) {
		return -1
	}
	for i, w := range words {
		if len(w) == 0 || rune(w[0]) != rune(acronym[i]) {
			return -1
		}
	}
	return len(acronym)
}

// hasBrandPrefixOverlap reports whether one product name is a leading
// token-bounded prefix of the other, e.g. "iphone" vs. "iphone 15 pro".
func hasBrandPrefixOverlap(a, b string) bool {
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if shorter == "" {
		return false
	}
	return strings.HasPrefix(longer, shorter) &&
		(len(longer) == len(shorter) || longer[len(shorter)] == ' ')
}

// guardBarePrefix rejects matches where one name is merely a short
// substring prefix of the other without a token boundary, preventing e.g.
// "Iran" from fuzzy-matching "Iranian Revolutionary Guard Corps".
func guardBarePrefix(a, b string) bool {
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if shorter == "" || len(shorter) >= len(longer) {
		return false
	}
	if !strings.HasPrefix(longer, shorter) {
		return false
	}
	return longer[len(shorter)] != ' '
}
