package utils

import (
	"testing"
)

func TestCollapseWhitespace(t *testing.T) {
	cases := map[string]string{
		"  cats  and\n\tdogs ": "cats and dogs",
		"":                      "",
		" \n ":                  "",
		"single":                "single",
	}
	for in, want := range cases {
		if got := CollapseWhitespace(in); got != want {
			t.Errorf("CollapseWhitespace(%q) = %q, want %q", in, got, want)
		}
	}
}
