package entity

import (
	"context"
	"testing"

	"argus/internal/config"
	"argus/internal/model"
)

type fakeNegatives struct{ negative bool }

func (f fakeNegatives) IsNegative(ctx context.Context, nameA, nameB string, typ model.EntityType) (bool, error) {
	return f.negative, nil
}

type fakeAliases struct{ equivalent bool }

func (f fakeAliases) AreEquivalent(ctx context.Context, nameA, nameB string, typ model.EntityType) (bool, error) {
	return f.equivalent, nil
}

func TestMatchExactNormalizedForm(t *testing.T) {
	m := NewMatcher(fakeNegatives{}, fakeAliases{}, &config.Entity{})
	d, err := m.Match(context.Background(), "FBI", "fbi", "FBI", "fbi", model.EntityOrganization)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !d.Match || d.Confidence != 1.0 {
		t.Errorf("expected an exact match, got %+v", d)
	}
}

func TestMatchNegativeShortCircuits(t *testing.T) {
	m := NewMatcher(fakeNegatives{negative: true}, fakeAliases{}, &config.Entity{})
	d, err := m.Match(context.Background(), "Iran", "iran", "Iraq", "iraq", model.EntityLocation)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if d.Match {
		t.Error("a recorded negative match should never match, regardless of fuzzy score")
	}
}

func TestMatchApprovedAlias(t *testing.T) {
	m := NewMatcher(fakeNegatives{}, fakeAliases{equivalent: true}, &config.Entity{})
	d, err := m.Match(context.Background(), "FBI", "fbi", "Federal Bureau of Investigation", "federal bureau of investigation", model.EntityOrganization)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !d.Match || d.Reason != "approved alias" {
		t.Errorf("expected an approved-alias match, got %+v", d)
	}
}

func TestMatchAcronym(t *testing.T) {
	m := NewMatcher(fakeNegatives{}, fakeAliases{}, &config.Entity{})
	d, err := m.Match(context.Background(), "WHO", "who", "World Health Organization", "world health organization", model.EntityOrganization)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !d.Match || d.Reason != "acronym match" {
		t.Errorf("expected an acronym match, got %+v", d)
	}
}

func TestMatchAcronymSkipsStopwords(t *testing.T) {
	m := NewMatcher(fakeNegatives{}, fakeAliases{}, &config.Entity{})
	d, err := m.Match(context.Background(), "FBI", "fbi", "Federal Bureau of Investigation", "federal bureau of investigation", model.EntityOrganization)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !d.Match || d.Reason != "acronym match" {
		t.Errorf("expected an acronym match ignoring the stopword \"of\", got %+v", d)
	}
}

func TestMatchPersonRejectsStrictPlural(t *testing.T) {
	m := NewMatcher(fakeNegatives{}, fakeAliases{}, &config.Entity{})
	d, err := m.Match(context.Background(), "Smiths", "smiths", "Smith", "smith", model.EntityPerson)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if d.Match {
		t.Errorf("a strict plural of a PERSON name must not match: %+v", d)
	}
}

func TestMatchBarePrefixGuard(t *testing.T) {
	m := NewMatcher(fakeNegatives{}, fakeAliases{}, &config.Entity{})
	d, err := m.Match(context.Background(), "Iran", "iran", "Iranian Revolutionary Guard Corps", "iranian revolutionary guard corps", model.EntityOrganization)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if d.Match {
		t.Error("a bare substring prefix without a token boundary must not match")
	}
}

func TestMatchBelowFuzzyThreshold(t *testing.T) {
	m := NewMatcher(fakeNegatives{}, fakeAliases{}, &config.Entity{})
	d, err := m.Match(context.Background(), "Apple Inc", "apple inc", "Banana Republic", "banana republic", model.EntityOrganization)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if d.Match {
		t.Errorf("unrelated names should not match: %+v", d)
	}
}
