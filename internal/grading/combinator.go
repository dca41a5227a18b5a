package grading

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mind-engage/mindengage-coderunner/internal/outcome"
)

var combinatorFields = map[string]bool{
	"fraction":       true,
	"testresults":    true,
	"prologuehtml":   true,
	"epiloguehtml":   true,
	"feedbackhtml":   true,
	"showoutputonly": true,
	"graderstate":    true,
	"columnformats":  true,
}

type combinatorOutput struct {
	Fraction       *float64 `json:"fraction"`
	TestResults    [][]any  `json:"testresults"`
	PrologueHTML   string   `json:"prologuehtml"`
	EpilogueHTML   string   `json:"epiloguehtml"`
	FeedbackHTML   string   `json:"feedbackhtml"`
	ShowOutputOnly bool     `json:"showoutputonly"`
	GraderState    string   `json:"graderstate"`
	ColumnFormats  []string `json:"columnformats"`
}

// ParseCombinatorOutput reads the JSON printed by a combinator template
// grader. Output that cannot be trusted yields an outcome with
// StatusBadCombinator and a message for the question author.
func ParseCombinatorOutput(raw string, precheck bool) *outcome.GraderOutcome {
	g := outcome.NewGraderOutcome(precheck)
	bad := func(format string, args ...any) *outcome.GraderOutcome {
		g.SetStatus(outcome.StatusBadCombinator, "Bad JSON output from combinator grader: "+fmt.Sprintf(format, args...))
		return g
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil || keys == nil {
		return bad("output is not a JSON object. Output was: %s", raw)
	}
	var unknown []string
	for k := range keys {
		if !combinatorFields[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return bad("unknown field name(s) %s", strings.Join(unknown, ", "))
	}

	var out combinatorOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return bad("%v", err)
	}
	if out.Fraction == nil {
		return bad("no fraction")
	}
	if *out.Fraction < 0 || *out.Fraction > 1 {
		return bad("fraction %v is outside [0, 1]", *out.Fraction)
	}
	if out.TestResults != nil {
		if err := checkTable(out.TestResults, out.ColumnFormats); err != nil {
			return bad("%v", err)
		}
	}

	epilogue := out.EpilogueHTML
	if epilogue == "" {
		epilogue = out.FeedbackHTML
	}
	g.SetMarkAndFeedback(*out.Fraction, out.TestResults, out.PrologueHTML, epilogue)
	g.OutputOnly = out.ShowOutputOnly
	g.GraderState = out.GraderState
	g.ColumnFormats = out.ColumnFormats
	return g
}

// checkTable requires a header row of strings, rows no longer than the
// header, and one column format per displayed column.
func checkTable(table [][]any, formats []string) error {
	if len(table) == 0 {
		return fmt.Errorf("testresults has no header row")
	}
	displayed := 0
	for _, h := range table[0] {
		s, ok := h.(string)
		if !ok {
			return fmt.Errorf("testresults header %v is not a string", h)
		}
		if s != outcome.IsCorrectColumn && s != outcome.IsHiddenColumn {
			displayed++
		}
	}
	for i, row := range table[1:] {
		if len(row) > len(table[0]) {
			return fmt.Errorf("testresults row %d has more cells than the header", i+1)
		}
	}
	if formats == nil {
		return nil
	}
	if len(formats) != displayed {
		return fmt.Errorf("columnformats has %d entries for %d columns", len(formats), displayed)
	}
	for _, f := range formats {
		if f != "%s" && f != outcome.HTMLFormat {
			return fmt.Errorf("illegal column format %q", f)
		}
	}
	return nil
}
