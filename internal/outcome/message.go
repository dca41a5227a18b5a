package outcome

import (
	"fmt"
	"html"
	"strings"
)

// Strings looks up a user-facing message by key, substituting {name}
// placeholders from args.
type Strings interface {
	Get(key string, args map[string]any) string
}

// Catalog is a Strings backed by a map of templates.
type Catalog map[string]string

func (c Catalog) Get(key string, args map[string]any) string {
	tmpl, ok := c[key]
	if !ok {
		return "[[" + key + "]]"
	}
	for name, v := range args {
		tmpl = strings.ReplaceAll(tmpl, "{"+name+"}", toText(v))
	}
	return tmpl
}

// English is the default message catalogue.
var English = Catalog{
	"run_failed":             "Failed to run tests",
	"syntax_errors":          "Syntax Error(s)",
	"badquestion":            "Error in question",
	"failedntests":           "Failed {numerrors} test(s)",
	"failedtesting":          "Failed testing.",
	"testcase":               "Test case {n}",
	"testcolhdr":             "Test",
	"expectedcolhdr":         "Expected",
	"gotcolhdr":              "Got",
	"replaceexpectedwithgot": "Click on the &lt;&lt; button to replace the expected output of this testcase with actual output.",
	"howtogetmore":           "For more detailed information, save the question with 'Validate on save' unchecked and test it manually.",
}

// FailedTest is one row of the validation failures report.
type FailedTest struct {
	RowNum   int
	TestCode string
	Expected string
	Got      string
}

// Failures returns the report collected by the last ValidationErrorMessage.
func (o *Outcome) Failures() []FailedTest { return o.failures }

// statusMessage handles the statuses that short-circuit test interpretation.
func (o *Outcome) statusMessage(strs Strings) (string, bool) {
	switch {
	case o.Invalid():
		return pre(o.ErrorMessage), true
	case o.RunFailed():
		return strs.Get("run_failed", nil), true
	case o.HasSyntaxError():
		return strs.Get("syntax_errors", nil) + pre(o.ErrorMessage), true
	case o.CombinatorError():
		return strs.Get("badquestion", nil) + pre(o.ErrorMessage), true
	}
	return "", false
}

// ValidationErrorMessage summarises why the outcome is not all correct, for
// question authors validating their tests. Each call adds the number of
// incorrect results to NumErrors.
func (o *Outcome) ValidationErrorMessage(strs Strings) string {
	if msg, done := o.statusMessage(strs); done {
		return msg
	}
	o.failures = o.failures[:0]
	for i := range o.TestResults {
		tr := &o.TestResults[i]
		if tr.IsCorrect {
			continue
		}
		o.NumErrors++
		rownum := i
		if tr.HasRowNum {
			rownum = tr.RowNum
		}
		o.failures = append(o.failures, FailedTest{
			RowNum:   rownum,
			TestCode: tr.TestCode,
			Expected: tr.Expected,
			Got:      tr.Got,
		})
	}
	message := strs.Get("failedntests", map[string]any{"numerrors": o.NumErrors})
	if len(o.failures) > 0 {
		message += failuresTable(o.failures, strs) + strs.Get("replaceexpectedwithgot", nil)
	}
	return message + "<br>" + strs.Get("howtogetmore", nil)
}

func failuresTable(failures []FailedTest, strs Strings) string {
	var b strings.Builder
	b.WriteString(`<table class="coderunner-test-results"><thead><tr>`)
	for _, key := range []string{"testcolhdr", "expectedcolhdr", "gotcolhdr"} {
		b.WriteString("<th>" + strs.Get(key, nil) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, f := range failures {
		fmt.Fprintf(&b, `<tr class="coderunner-failed-test failrow_%d">`, f.RowNum)
		fmt.Fprintf(&b, `<td><a href="#id_testcode_%d">%s</a><br><pre>%s</pre></td>`,
			f.RowNum, strs.Get("testcase", map[string]any{"n": f.RowNum + 1}), html.EscapeString(f.TestCode))
		fmt.Fprintf(&b, `<td><a href="#id_expected_%d"><pre id="id_fail_expected_%d">%s</pre></a></td>`,
			f.RowNum, f.RowNum, html.EscapeString(f.Expected))
		fmt.Fprintf(&b, `<td><pre id="id_got_%d">%s</pre><button type="button" class="replaceexpectedwithgot">&lt;&lt;</button></td>`,
			f.RowNum, html.EscapeString(f.Got))
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func pre(s string) string { return "<pre>" + html.EscapeString(s) + "</pre>" }
