package schema

import (
	"regexp"
	"strings"
)

// trailingSpaceRE lists the whitespace explicitly: RE2's \s has no \v.
var trailingSpaceRE = regexp.MustCompile(`[ \t\f\v\r]+\n`)

// Normalize removes carriage returns, expands tabs to three spaces and
// strips trailing whitespace at the end of every line. Blank lines are kept.
//
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", "   ")
	return trailingSpaceRE.ReplaceAllString(s, "\n")
}
