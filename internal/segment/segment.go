// Package segment splits text into the units sent to the speech endpoint.
package segment

import (
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"
)

// unitRegex matches a run of non-terminator characters closed by at most one
// terminator: a period, an ideographic full stop or a line break. The
// optional terminator lets the final unterminated run match at end of text.
var unitRegex = regexp.MustCompile(`[^.。\n]+[.。\n]?`)

// DefaultThreshold is the length, in characters, above which text is split.
const DefaultThreshold = 200

// Units returns the speech units of text as a lazy sequence.
//
// Text no longer than threshold characters yields a single unit, the trimmed
// text. Longer text yields every terminator-delimited clause, trimmed, with
// empty clauses dropped. The sequence keeps no state between iterations, so
// it can be ranged over any number of times.
func Units(text string, threshold int) iter.Seq[string] {
	return func(yield func(string) bool) {
		if utf8.RuneCountInString(text) <= threshold {
			yield(strings.TrimSpace(text))
			return
		}

		rest := text
		for len(rest) > 0 {
			loc := unitRegex.FindStringIndex(rest)
			if loc == nil {
				return
			}
			unit := strings.TrimSpace(rest[loc[0]:loc[1]])
			rest = rest[loc[1]:]
			if unit == "" {
				continue
			}
			if !yield(unit) {
				return
			}
		}
	}
}

// Split collects Units into a slice.
func Split(text string, threshold int) []string {
	var units []string
	for u := range Units(text, threshold) {
		units = append(units, u)
	}
	return units
}
