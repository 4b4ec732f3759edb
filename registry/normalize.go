package registry

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// suggestCutoff is the minimum similarity a candidate must reach before
// it is offered as a fuzzy suggestion.
const suggestCutoff = 0.6

// Normalize maps a tool name to its canonical lookup form: Unicode
// compatibility composition (NFKC), every run of whitespace (including
// non-breaking space) collapsed to a single ASCII space, and leading and
// trailing whitespace trimmed.
//
// Normalize is a pure function of its input: no hidden state, no locale
// dependence, and Normalize(Normalize(s)) == Normalize(s).
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	inSpace := false
	for _, r := range norm.NFKC.String(name) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// similarity scores two strings in [0, 1] as 1 - d/max(len), where d is
// the Levenshtein edit distance measured in runes. Identical strings
// score 1; strings sharing no characters score near 0.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la := len([]rune(a))
	lb := len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}
