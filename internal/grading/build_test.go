package grading_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mind-engage/mindengage-coderunner/internal/grading"
	"github.com/mind-engage/mindengage-coderunner/internal/outcome"
)

func sqrQuestion() grading.Q {
	q := grading.Q{Grader: grading.Equality, PrecheckMode: grading.PrecheckExamples}
	args := []string{"0", "1", "2", "3", "-6"}
	for i, want := range []string{"0", "1", "4", "9", "36"} {
		q.TestCases = append(q.TestCases, grading.TestCase{
			TestCode:     "print(sqr(" + args[i] + "))",
			Expected:     want,
			Mark:         float64(uint(1) << i),
			Display:      outcome.DisplayShow,
			UseAsExample: i < 2,
		})
	}
	return q
}

func okRuns(got ...string) []grading.Run {
	runs := make([]grading.Run, len(got))
	for i, g := range got {
		runs[i] = grading.Run{Got: g}
	}
	return runs
}

func TestBuildOutcomeAllCorrect(t *testing.T) {
	q := sqrQuestion()
	o, err := grading.BuildOutcome(context.Background(), grading.NewDefaultGrader(), q, okRuns("0", "1", "4", "9", "36"), false)
	if err != nil {
		t.Fatalf("BuildOutcome: %v", err)
	}
	if o.MaxPossMark != 31 || o.ActualMark != 31 || !o.AllCorrect() || o.WasAborted() {
		t.Fatalf("outcome = %+v", o)
	}
	if !o.TestResults[4].HasRowNum || o.TestResults[4].RowNum != 4 {
		t.Fatalf("row numbers not recorded: %+v", o.TestResults[4])
	}
	if q.Fraction(o) != 1 {
		t.Fatalf("Fraction() = %v", q.Fraction(o))
	}
}

func TestBuildOutcomePartialAndAllOrNothing(t *testing.T) {
	q := sqrQuestion()
	runs := okRuns("0", "1", "4", "10", "36")
	o, err := grading.BuildOutcome(context.Background(), grading.NewDefaultGrader(), q, runs, false)
	if err != nil {
		t.Fatalf("BuildOutcome: %v", err)
	}
	if o.ActualMark != 23 || o.ErrorCount != 1 {
		t.Fatalf("ActualMark = %v, ErrorCount = %d", o.ActualMark, o.ErrorCount)
	}

	q.AllOrNothing = true
	o, _ = grading.BuildOutcome(context.Background(), grading.NewDefaultGrader(), q, runs, false)
	if o.MaxPossMark != 5 || o.ActualMark != 4 {
		t.Fatalf("all-or-nothing marks = %v/%v", o.ActualMark, o.MaxPossMark)
	}
	if q.Fraction(o) != 0 {
		t.Fatalf("Fraction() = %v, want 0", q.Fraction(o))
	}
}

func TestBuildOutcomeCompileError(t *testing.T) {
	runs := []grading.Run{{Outcome: grading.RunCompileError, Stderr: "SyntaxError: invalid syntax"}}
	o, err := grading.BuildOutcome(context.Background(), grading.NewDefaultGrader(), sqrQuestion(), runs, false)
	if err != nil {
		t.Fatalf("BuildOutcome: %v", err)
	}
	if !o.HasSyntaxError() || o.ErrorMessage != "SyntaxError: invalid syntax" || o.MarkAsFraction() != 0 {
		t.Fatalf("outcome = %+v", o)
	}
}

func TestBuildOutcomeSandboxError(t *testing.T) {
	runs := []grading.Run{{Got: "0"}, {Outcome: grading.RunSandboxError, Stderr: "server overloaded"}}
	o, _ := grading.BuildOutcome(context.Background(), grading.NewDefaultGrader(), sqrQuestion(), runs, false)
	if !o.RunFailed() || len(o.TestResults) != 1 {
		t.Fatalf("outcome = %+v", o)
	}
}

func TestBuildOutcomeRuntimeErrorAborts(t *testing.T) {
	runs := []grading.Run{
		{Got: "0"},
		{Got: "1", Stderr: "Traceback", Outcome: grading.RunRuntimeError},
		{Got: "4"},
	}
	o, err := grading.BuildOutcome(context.Background(), grading.NewDefaultGrader(), sqrQuestion(), runs, false)
	if err != nil {
		t.Fatalf("BuildOutcome: %v", err)
	}
	if len(o.TestResults) != 2 || !o.WasAborted() {
		t.Fatalf("results = %d, aborted = %v", len(o.TestResults), o.WasAborted())
	}
	second := o.TestResults[1]
	if second.IsCorrect || second.Stderr != "Traceback" {
		t.Fatalf("runtime error result = %+v", second)
	}
}

func TestBuildOutcomeTooManyRuns(t *testing.T) {
	_, err := grading.BuildOutcome(context.Background(), grading.NewDefaultGrader(), sqrQuestion(), okRuns("0", "1", "2"), true)
	if !errors.Is(err, grading.ErrTooManyRuns) {
		t.Fatalf("err = %v, want ErrTooManyRuns", err)
	}
}

func TestSelectPrecheck(t *testing.T) {
	q := sqrQuestion()
	tests := []struct {
		mode  grading.PrecheckMode
		want  int
		empty bool
	}{
		{grading.PrecheckExamples, 2, false},
		{grading.PrecheckAll, 5, false},
		{grading.PrecheckEmpty, 1, true},
	}
	for _, tt := range tests {
		q.PrecheckMode = tt.mode
		sel, err := q.Select(true)
		if err != nil {
			t.Fatalf("%s: %v", tt.mode, err)
		}
		if len(sel) != tt.want || sel[0].Empty != tt.empty {
			t.Fatalf("%s: selected %+v", tt.mode, sel)
		}
	}

	q.PrecheckMode = grading.PrecheckDisabled
	if _, err := q.Select(true); !errors.Is(err, grading.ErrPrecheckDisabled) {
		t.Fatalf("err = %v, want ErrPrecheckDisabled", err)
	}
	if sel, _ := q.Select(false); len(sel) != 5 {
		t.Fatalf("non-precheck selected %d tests", len(sel))
	}

	for i := range q.TestCases {
		q.TestCases[i].UseAsExample = false
	}
	q.PrecheckMode = grading.PrecheckExamples
	if sel, _ := q.Select(true); len(sel) != 1 || !sel[0].Empty {
		t.Fatalf("examples without examples selected %+v", sel)
	}
}

func TestBuildOutcomeEmptyPrecheck(t *testing.T) {
	q := sqrQuestion()
	q.PrecheckMode = grading.PrecheckEmpty
	o, err := grading.BuildOutcome(context.Background(), grading.NewDefaultGrader(), q, okRuns("anything"), true)
	if err != nil {
		t.Fatalf("BuildOutcome: %v", err)
	}
	if p, _ := o.IsPrecheck(nil); !p || !o.AllCorrect() || o.NumTestsExpected != 1 {
		t.Fatalf("outcome = %+v", o)
	}
}
