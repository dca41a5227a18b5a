// Package outcome aggregates the per-test results of a CodeRunner style
// testing run into a grade, a failure classification and a result table.
package outcome

import (
	"errors"
	"fmt"
	"math"
)

// Tolerance is the allowable difference between the actual and the maximum
// mark for an outcome to count as fully correct.
const Tolerance = 0.00001

var (
	// ErrCorruptOutcome is returned when data is requested from an outcome
	// that could not be restored from its stored form.
	ErrCorruptOutcome = errors.New("outcome: stored outcome is corrupt")

	// ErrPrecheckUnknown signals a bad call to IsPrecheck: the outcome does not
	// record whether it was a precheck and no legacy source was supplied.
	ErrPrecheckUnknown = errors.New("outcome: precheck flag unknown and no legacy source given")

	// ErrNoRawOutput is returned by RawOutput when the outcome is not a
	// single-test precheck run without stderr.
	ErrNoRawOutput = errors.New("outcome: raw output only available for a single clean precheck run")
)

// LegacyPrecheck supplies the precheck flag for outcomes stored before the
// flag was recorded. It is normally the question attempt the outcome came from.
type LegacyPrecheck interface {
	LastBehaviourVar(name string, def int) int
}

// Outcome is the complete set of results from running all the tests on one
// submission. It is built by a single grading pass and is not safe for
// concurrent mutation.
type Outcome struct {
	Status       Status
	ErrorMessage string

	// Precheck is meaningful only when PrecheckKnown is true.
	Precheck      bool
	PrecheckKnown bool

	MaxPossMark      float64
	ActualMark       float64
	NumTestsExpected int

	// ErrorCount counts incorrect results seen by AddResult. NumErrors is a
	// separate display counter maintained by ValidationErrorMessage.
	ErrorCount int
	NumErrors  int

	TestResults    []TestResult
	SandboxInfo    map[string]string
	SourceCodeList []string

	failures []FailedTest
}

// New starts the outcome of a grading attempt.
func New(maxPossMark float64, numTestsExpected int, isPrecheck bool) *Outcome {
	return &Outcome{
		Status:           StatusValid,
		Precheck:         isPrecheck,
		PrecheckKnown:    true,
		MaxPossMark:      maxPossMark,
		NumTestsExpected: numTestsExpected,
		TestResults:      []TestResult{},
		SandboxInfo:      map[string]string{},
	}
}

// IsPrecheck reports whether this outcome came from a precheck run. Legacy
// outcomes without the flag consult legacy; with neither, ErrPrecheckUnknown.
func (o *Outcome) IsPrecheck(legacy LegacyPrecheck) (bool, error) {
	if o.PrecheckKnown {
		return o.Precheck, nil
	}
	if legacy != nil {
		return legacy.LastBehaviourVar("_precheck", 0) != 0, nil
	}
	return false, ErrPrecheckUnknown
}

// IsCombinatorGrader is false for the base outcome; see GraderOutcome.
func (o *Outcome) IsCombinatorGrader() bool { return false }

func (o *Outcome) IsOutputOnly() bool { return false }

// CheckValid returns ErrCorruptOutcome for an outcome that failed to restore.
func (o *Outcome) CheckValid() error {
	if o.Invalid() {
		return fmt.Errorf("%w: %s", ErrCorruptOutcome, o.ErrorMessage)
	}
	return nil
}

// MarkAsFraction returns the grade in [0, 1]. A result within Tolerance of a
// perfect score is returned as exactly 1.0.
func (o *Outcome) MarkAsFraction() float64 {
	if o.Status != StatusValid || o.MaxPossMark == 0 {
		return 0
	}
	fraction := o.ActualMark / o.MaxPossMark
	if math.Abs(fraction-1.0) < Tolerance {
		return 1.0
	}
	return fraction
}

func (o *Outcome) AllCorrect() bool { return o.MarkAsFraction() == 1.0 }

// WasAborted is true when the number of results differs from the number of
// tests expected, meaning that testing stopped early.
func (o *Outcome) WasAborted() bool {
	return len(o.TestResults) != o.NumTestsExpected
}

// AddResult records the next test result in execution order. An awarded mark
// outside [0, Mark] is clamped and the stored result is flagged Clamped.
// NaN counts as out of range and becomes 0.
func (o *Outcome) AddResult(tr TestResult) {
	switch {
	case math.IsNaN(tr.Awarded), tr.Awarded < 0:
		tr.Awarded, tr.Clamped = 0, true
	case tr.Awarded > tr.Mark:
		tr.Awarded, tr.Clamped = tr.Mark, true
	}
	o.TestResults = append(o.TestResults, tr)
	o.ActualMark += tr.Awarded
	if !tr.IsCorrect {
		o.ErrorCount++
	}
}

// AddSandboxInfo merges info into the sandbox diagnostics. Later values win.
func (o *Outcome) AddSandboxInfo(info map[string]string) {
	if o.SandboxInfo == nil {
		o.SandboxInfo = make(map[string]string, len(info))
	}
	for k, v := range info {
		o.SandboxInfo[k] = v
	}
}

// RawOutput is the output of a precheck run of a single test.
func (o *Outcome) RawOutput() (string, error) {
	if err := o.CheckValid(); err != nil {
		return "", err
	}
	if !o.PrecheckKnown || !o.Precheck || len(o.TestResults) != 1 || o.TestResults[0].Stderr != "" {
		return "", ErrNoRawOutput
	}
	return o.TestResults[0].Got, nil
}

func (o *Outcome) GetErrorCount() int { return o.ErrorCount }

func (o *Outcome) GetSandboxInfo() map[string]string { return o.SandboxInfo }

func (o *Outcome) Prologue() string { return "" }

func (o *Outcome) Epilogue() string { return "" }
