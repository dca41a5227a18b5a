package outcome

// ShouldDisplay applies a result's own display policy. An unset or
// unrecognised policy (e.g. from a broken combinator template) shows the row.
func ShouldDisplay(tr *TestResult) bool {
	switch tr.Display {
	case DisplayShow:
		return true
	case DisplayHide:
		return false
	case DisplayHideIfFail:
		return tr.IsCorrect
	case DisplayHideIfSucceed:
		return !tr.IsCorrect
	default:
		return true
	}
}

// Visibility returns the effective visibility of each result in order. Once
// a result with HideRestIfFail fails, every later result is hidden.
func Visibility(results []TestResult) []bool {
	visible := make([]bool, len(results))
	hidingRest := false
	for i := range results {
		tr := &results[i]
		visible[i] = !hidingRest && ShouldDisplay(tr)
		if tr.HideRestIfFail && !tr.IsCorrect {
			hidingRest = true
		}
	}
	return visible
}

// CountHiddenErrors counts failing results that students cannot see,
// ignoring any viewer privileges.
func (o *Outcome) CountHiddenErrors() int {
	count := 0
	for i, shown := range Visibility(o.TestResults) {
		if !shown && !o.TestResults[i].IsCorrect {
			count++
		}
	}
	return count
}
