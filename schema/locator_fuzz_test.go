package schema

import (
	"strings"
	"testing"
)

// FuzzLocatorParse checks that parsing never panics and that dimension
// locators round-trip.
// Run with: go test -fuzz=FuzzLocatorParse -fuzztime=30s ./schema/
func FuzzLocatorParse(f *testing.F) {
	f.Add("nMuon")
	f.Add("hits:/2")
	f.Add("jet:e")
	f.Add("b:/")
	f.Add("b:/x")
	f.Add("a:b:/3")
	f.Add(":")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		branch, dim, field := Locator(s).Parse()
		if !strings.HasPrefix(s, branch) {
			t.Fatalf("branch %q is not a prefix of %q", branch, s)
		}
		if dim != NoDim && field != "" {
			t.Fatalf("%q parsed as both dimension %d and field %q", s, dim, field)
		}
		if dim != NoDim && dim >= 0 && !strings.Contains(branch, ":") {
			b, d, _ := DimLocator(branch, dim).Parse()
			if b != branch || d != dim {
				t.Fatalf("DimLocator(%q, %d) parsed as (%q, %d)", branch, dim, b, d)
			}
		}
	})
}
