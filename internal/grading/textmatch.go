package grading

import (
	"strings"
	"unicode"
)

// clean strips trailing whitespace from every line and from the text as a
// whole.
func clean(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	return strings.TrimRightFunc(strings.Join(lines, "\n"), unicode.IsSpace)
}

// nearNormalize casefolds, collapses runs of spaces within a line and drops
// blank lines.
func nearNormalize(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		out = append(out, strings.ToLower(strings.Join(words, " ")))
	}
	return strings.Join(out, "\n")
}
