package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Locator addresses the physical source of one schema slot:
//
//	branch       the whole branch
//	branch:/d    offsets synthesized over fixed dimension d of branch
//	branch:name  field name of a structured branch
type Locator string

// NoDim is returned by Parse when a locator carries no dimension suffix.
const NoDim = -1

// DimLocator returns the locator of dimension d of branch.
func DimLocator(branch string, d int) Locator {
	return Locator(fmt.Sprintf("%s:/%d", branch, d))
}

// Parse splits the locator at its last colon. A suffix of the form "/<digits>"
// is a dimension; any other suffix starting with "/" is ignored; a suffix
// without the slash is a field name.
func (l Locator) Parse() (branch string, dim int, field string) {
	s := string(l)
	colon := strings.LastIndex(s, ":")
	if colon < 0 {
		return s, NoDim, ""
	}
	branch, suffix := s[:colon], s[colon+1:]
	if !strings.HasPrefix(suffix, "/") {
		return branch, NoDim, suffix
	}
	digits := suffix[1:]
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return branch, NoDim, ""
	}
	d, err := strconv.Atoi(digits)
	if err != nil {
		return branch, NoDim, ""
	}
	return branch, d, ""
}

// Branch returns the branch part of the locator.
func (l Locator) Branch() string {
	b, _, _ := l.Parse()
	return b
}

func (l Locator) String() string { return string(l) }
