package outcome

import "strings"

// DisplayPolicy controls whether a single test result is shown to students.
type DisplayPolicy string

const (
	DisplayUnset         DisplayPolicy = ""
	DisplayShow          DisplayPolicy = "SHOW"
	DisplayHide          DisplayPolicy = "HIDE"
	DisplayHideIfFail    DisplayPolicy = "HIDE_IF_FAIL"
	DisplayHideIfSucceed DisplayPolicy = "HIDE_IF_SUCCEED"
)

// MaxStringLength bounds the length (in runes) of string values placed in a
// result table. Longer values are snipped in the middle.
const MaxStringLength = 8000

const snipMarker = "\n... snip ...\n"

// TestResult is the outcome of running a single test case.
type TestResult struct {
	TestCode string
	Stdin    string
	Expected string
	Got      string
	Extra    string
	Stderr   string

	Mark      float64 // mark available
	Awarded   float64 // mark awarded, 0 <= Awarded <= Mark
	IsCorrect bool

	Display        DisplayPolicy
	HideRestIfFail bool

	RowNum    int
	HasRowNum bool

	// Clamped is set by AddResult when Awarded was outside [0, Mark].
	Clamped bool
}

// Field names understood by Field and by result column specifications.
const (
	FieldTestCode       = "testcode"
	FieldStdin          = "stdin"
	FieldExpected       = "expected"
	FieldGot            = "got"
	FieldExtra          = "extra"
	FieldStderr         = "stderr"
	FieldMark           = "mark"
	FieldAwarded        = "awarded"
	FieldIsCorrect      = "iscorrect"
	FieldDisplay        = "display"
	FieldHideRestIfFail = "hiderestiffail"
	FieldRowNum         = "rownum"
)

// Field returns the named attribute of the result. The boolean is false when
// no such field exists in the schema.
func (tr *TestResult) Field(name string) (any, bool) {
	switch name {
	case FieldTestCode:
		return tr.TestCode, true
	case FieldStdin:
		return tr.Stdin, true
	case FieldExpected:
		return tr.Expected, true
	case FieldGot:
		return tr.Got, true
	case FieldExtra:
		return tr.Extra, true
	case FieldStderr:
		return tr.Stderr, true
	case FieldMark:
		return tr.Mark, true
	case FieldAwarded:
		return tr.Awarded, true
	case FieldIsCorrect:
		return tr.IsCorrect, true
	case FieldDisplay:
		return string(tr.Display), true
	case FieldHideRestIfFail:
		return tr.HideRestIfFail, true
	case FieldRowNum:
		if !tr.HasRowNum {
			return nil, true
		}
		return tr.RowNum, true
	default:
		return nil, false
	}
}

// TrimmedValue is Field with over-long strings snipped for display. A missing
// field yields a visible marker rather than an empty cell.
func (tr *TestResult) TrimmedValue(name string) any {
	v, ok := tr.Field(name)
	if !ok {
		return "[unknown field: " + name + "]"
	}
	if s, isStr := v.(string); isStr {
		return Snip(s, MaxStringLength)
	}
	return v
}

// Fraction is the proportion of the available mark awarded for this test.
// A test with no available mark contributes 0.
func (tr *TestResult) Fraction() float64 {
	if tr.Mark == 0 {
		return 0
	}
	return tr.Awarded / tr.Mark
}

// Snip shortens s to at most max runes by cutting out its middle.
func Snip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	marker := []rune(snipMarker)
	keep := (max - len(marker)) / 2
	if keep <= 0 {
		return string(r[:max])
	}
	var b strings.Builder
	b.WriteString(string(r[:keep]))
	b.WriteString(snipMarker)
	b.WriteString(string(r[len(r)-keep:]))
	return b.String()
}

func isBlank(v any, exists bool) bool {
	if !exists {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}
