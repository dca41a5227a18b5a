package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-coderunner/internal/outcome"
)

// PrecheckMode selects the tests run when a student asks for a precheck.
type PrecheckMode string

const (
	PrecheckDisabled PrecheckMode = "disabled"
	PrecheckEmpty    PrecheckMode = "empty"
	PrecheckExamples PrecheckMode = "examples"
	PrecheckAll      PrecheckMode = "all"
)

var (
	ErrPrecheckDisabled = errors.New("precheck is disabled for this question")
	ErrTooManyRuns      = errors.New("more runs than selected tests")
	ErrCombinatorRuns   = errors.New("combinator grading takes exactly one run")
)

// RunOutcome classifies a sandbox execution.
type RunOutcome int

const (
	RunOK RunOutcome = iota
	RunCompileError
	RunRuntimeError
	RunTimeLimit
	RunSandboxError
)

var runOutcomeNames = []string{"ok", "compile_error", "runtime_error", "time_limit", "sandbox_error"}

func (r RunOutcome) MarshalText() ([]byte, error) {
	if int(r) < 0 || int(r) >= len(runOutcomeNames) {
		return nil, fmt.Errorf("invalid run outcome %d", int(r))
	}
	return []byte(runOutcomeNames[r]), nil
}

func (r *RunOutcome) UnmarshalText(b []byte) error {
	for i, name := range runOutcomeNames {
		if string(b) == name {
			*r = RunOutcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown run outcome %q", b)
}

// Run is the sandbox result of executing the submission against one test.
type Run struct {
	Got         string            `json:"got"`
	Stderr      string            `json:"stderr"`
	Outcome     RunOutcome        `json:"outcome,omitempty"`
	SandboxInfo map[string]string `json:"sandboxinfo,omitempty"`
}

// Selected is a test chosen for this step, with its row in the question.
type Selected struct {
	Row   int
	Empty bool // stand-in test of an empty precheck
	TestCase
}

// Select returns the tests to run. Precheck in examples mode falls back
// to the empty test when the question has no examples.
func (q Q) Select(precheck bool) ([]Selected, error) {
	if !precheck {
		return all(q.TestCases), nil
	}
	switch q.PrecheckMode {
	case PrecheckAll:
		return all(q.TestCases), nil
	case PrecheckExamples:
		var out []Selected
		for i, tc := range q.TestCases {
			if tc.UseAsExample {
				out = append(out, Selected{Row: i, TestCase: tc})
			}
		}
		if len(out) > 0 {
			return out, nil
		}
		return []Selected{emptyTest()}, nil
	case PrecheckEmpty, "":
		return []Selected{emptyTest()}, nil
	default:
		return nil, ErrPrecheckDisabled
	}
}

func all(tcs []TestCase) []Selected {
	out := make([]Selected, len(tcs))
	for i, tc := range tcs {
		out[i] = Selected{Row: i, TestCase: tc}
	}
	return out
}

func emptyTest() Selected {
	return Selected{Empty: true, TestCase: TestCase{Mark: 1, Display: outcome.DisplayShow}}
}

// BuildOutcome grades runs, one per selected test in order, into an outcome.
// A compile or sandbox failure sets the outcome status and stops. A runtime
// error or timeout records a failed result and stops, leaving the outcome
// aborted if tests remain.
func BuildOutcome(ctx context.Context, g Grader, q Q, runs []Run, precheck bool) (*outcome.Outcome, error) {
	tests, err := q.Select(precheck)
	if err != nil {
		return nil, err
	}
	if len(runs) > len(tests) {
		return nil, fmt.Errorf("%w: %d runs for %d tests", ErrTooManyRuns, len(runs), len(tests))
	}
	maxMark := 0.0
	for i := range tests {
		if q.AllOrNothing {
			tests[i].Mark = 1
		}
		maxMark += tests[i].Mark
	}

	o := outcome.New(maxMark, len(tests), precheck)
	for i, run := range runs {
		o.AddSandboxInfo(run.SandboxInfo)
		switch run.Outcome {
		case RunCompileError:
			o.SetStatus(outcome.StatusSyntaxError, run.Stderr)
			return o, nil
		case RunSandboxError:
			o.SetStatus(outcome.StatusSandboxError, run.Stderr)
			return o, nil
		}

		tc := tests[i]
		var tr outcome.TestResult
		if tc.Empty {
			tr = outcome.TestResult{Got: run.Got, Mark: tc.Mark, Display: outcome.DisplayShow}
			if run.Outcome == RunOK && run.Stderr == "" {
				tr.IsCorrect, tr.Awarded = true, tc.Mark
			}
		} else {
			tr, err = g.Grade(ctx, q.Grader, tc.TestCase, run.Got)
			if err != nil {
				return nil, err
			}
		}
		tr.Stderr = run.Stderr
		tr.RowNum, tr.HasRowNum = tc.Row, true
		if run.Outcome != RunOK {
			tr.IsCorrect, tr.Awarded = false, 0
		}
		o.AddResult(tr)
		if run.Outcome == RunRuntimeError || run.Outcome == RunTimeLimit {
			break
		}
	}
	return o, nil
}

// Fraction is the mark earned by o, applying the all-or-nothing rule.
func (q Q) Fraction(o *outcome.Outcome) float64 {
	if q.AllOrNothing && !o.AllCorrect() {
		return 0
	}
	return o.MarkAsFraction()
}

// Combinator names the whole-submission template grader. Its single run
// prints the JSON read by ParseCombinatorOutput.
const Combinator = "CombinatorTemplateGrader"

// Evaluate grades runs with the question's grader, producing the base
// outcome or, for a combinator question, the grader variant.
func Evaluate(ctx context.Context, g Grader, q Q, runs []Run, precheck bool) (outcome.Decoded, error) {
	if q.Grader != Combinator {
		o, err := BuildOutcome(ctx, g, q, runs, precheck)
		if err != nil {
			return outcome.Decoded{}, err
		}
		return outcome.Decoded{Kind: outcome.KindBase, Outcome: o}, nil
	}
	if len(runs) != 1 {
		return outcome.Decoded{}, fmt.Errorf("%w, got %d", ErrCombinatorRuns, len(runs))
	}
	run := runs[0]
	var gr *outcome.GraderOutcome
	switch run.Outcome {
	case RunCompileError:
		gr = outcome.NewGraderOutcome(precheck)
		gr.SetStatus(outcome.StatusSyntaxError, run.Stderr)
	case RunSandboxError:
		gr = outcome.NewGraderOutcome(precheck)
		gr.SetStatus(outcome.StatusSandboxError, run.Stderr)
	default:
		gr = ParseCombinatorOutput(run.Got, precheck)
	}
	gr.AddSandboxInfo(run.SandboxInfo)
	return outcome.Decoded{Kind: outcome.KindGraderState, Grader: gr}, nil
}
