package entity

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Federal   Bureau of Investigation  ", "federal bureau of investigation"},
		{"O'Brien's Pub", "o'brien's pub"},
		{"AT&T", "att"},
		{"Jordan (country)", "jordan country"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeWithVariants(t *testing.T) {
	a := NormalizeWithVariants("World Health Organisation")
	b := NormalizeWithVariants("World Health Organization")
	if a != b {
		t.Errorf("spelling variants should normalize identically: %q vs %q", a, b)
	}

	a = NormalizeWithVariants("Ministry of Defence")
	b = NormalizeWithVariants("Ministry of Defense")
	if a != b {
		t.Errorf("defence/defense should normalize identically: %q vs %q", a, b)
	}
}
