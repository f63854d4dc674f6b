package alias

import "testing"

func TestDiscoverFromTextParenthetical(t *testing.T) {
	candidates := DiscoverFromText("The World Health Organization (WHO) issued a statement.")
	found := false
	for _, c := range candidates {
		if c.Canonical == "World Health Organization" && c.Alias == "WHO" && c.PatternID == "parenthetical" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a parenthetical candidate, got %+v", candidates)
	}
}

func TestDiscoverFromTextAlsoKnownAs(t *testing.T) {
	candidates := DiscoverFromText("Facebook, also known as Meta, rebranded in 2021.")
	found := false
	for _, c := range candidates {
		if c.PatternID == "also_known_as" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an also-known-as candidate, got %+v", candidates)
	}
}

func TestDiscoverFromTextAkaFormerly(t *testing.T) {
	candidates := DiscoverFromText("Twitter, formerly X Corp, changed its policy.")
	found := false
	for _, c := range candidates {
		if c.PatternID == "aka_formerly" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an aka/formerly candidate, got %+v", candidates)
	}
}

func TestDiscoverFromTextNowKnownAs(t *testing.T) {
	candidates := DiscoverFromText("Google, now known as Alphabet, restructured its holdings.")
	found := false
	for _, c := range candidates {
		if c.Canonical == "Google" && c.Alias == "Alphabet" && c.PatternID == "now_known_as" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a now-known-as candidate, got %+v", candidates)
	}
}

func TestDiscoverFromTextNoMatches(t *testing.T) {
	if got := DiscoverFromText("A plain sentence with nothing to extract."); len(got) != 0 {
		t.Errorf("expected no candidates, got %+v", got)
	}
}

func TestIsValidCandidate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"World Health Organization", true},
		{"", false},
		{"this has and then a connective phrase inside", false},
		{"Ends in a period. And a new sentence", false},
	}
	for _, tc := range cases {
		if got := IsValidCandidate(tc.in); got != tc.want {
			t.Errorf("IsValidCandidate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsValidCandidateRejectsTooManyWords(t *testing.T) {
	if IsValidCandidate("one two three four five six seven eight nine ten eleven") {
		t.Error("expected a string with more than 10 words to be rejected")
	}
}
