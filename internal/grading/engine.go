// Package grading turns sandbox runs of a submission into an outcome.
package grading

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mind-engage/mindengage-coderunner/internal/outcome"
)

// Built-in grader names.
const (
	Equality     = "EqualityGrader"
	NearEquality = "NearEqualityGrader"
	Regex        = "RegexGrader"
)

var (
	ErrUnknownGrader = errors.New("unknown grader")
	ErrNegativeMark  = errors.New("negative test case mark")
)

// DefaultMark is the mark of a test case that does not set one.
const DefaultMark = 1.0

// TestCase is one author-defined test of a question.
type TestCase struct {
	TestCode       string                `json:"testcode" yaml:"testcode"`
	Stdin          string                `json:"stdin" yaml:"stdin"`
	Expected       string                `json:"expected" yaml:"expected"`
	Extra          string                `json:"extra" yaml:"extra"`
	Mark           float64               `json:"mark" yaml:"mark"`
	Display        outcome.DisplayPolicy `json:"display" yaml:"display"`
	HideRestIfFail bool                  `json:"hiderestiffail" yaml:"hiderestiffail"`
	UseAsExample   bool                  `json:"useasexample" yaml:"useasexample"`
}

// NormalizeMarks gives every unmarked test case DefaultMark and rejects
// negative marks.
func NormalizeMarks(tcs []TestCase) error {
	for i := range tcs {
		switch {
		case tcs[i].Mark < 0:
			return fmt.Errorf("%w: test %d has mark %g", ErrNegativeMark, i+1, tcs[i].Mark)
		case tcs[i].Mark == 0:
			tcs[i].Mark = DefaultMark
		}
	}
	return nil
}

// Q is the view of a question needed for grading.
type Q struct {
	Grader       string
	AllOrNothing bool
	PrecheckMode PrecheckMode
	TestCases    []TestCase
}

// Strategy decides whether got satisfies a single test.
type Strategy interface {
	Grade(ctx context.Context, tc TestCase, got string) (bool, error)
}

// Grader routes by grader name to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, name string, tc TestCase, got string) (outcome.TestResult, error)
	Known(name string) bool
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Known(name string) bool {
	_, ok := g.strategies[name]
	return ok
}

// Grade returns the result row for tc. A strategy error marks the test
// incorrect and is reported in the row's extra field.
func (g *defaultGrader) Grade(ctx context.Context, name string, tc TestCase, got string) (outcome.TestResult, error) {
	tr := outcome.TestResult{
		TestCode:       tc.TestCode,
		Stdin:          tc.Stdin,
		Expected:       tc.Expected,
		Extra:          tc.Extra,
		Got:            got,
		Mark:           tc.Mark,
		Display:        tc.Display,
		HideRestIfFail: tc.HideRestIfFail,
	}
	s, ok := g.strategies[name]
	if !ok {
		return tr, fmt.Errorf("%w: %q", ErrUnknownGrader, name)
	}
	correct, err := s.Grade(ctx, tc, got)
	if err != nil {
		tr.Extra = err.Error()
		return tr, nil
	}
	tr.IsCorrect = correct
	if correct {
		tr.Awarded = tc.Mark
	}
	return tr, nil
}

// Engine options

type Option func(*config)

type config struct {
	extra map[string]Strategy
}

// WithStrategy installs s under name, replacing any built-in of that name.
func WithStrategy(name string, s Strategy) Option {
	return func(c *config) { c.extra[name] = s }
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{extra: map[string]Strategy{}}
	for _, o := range opts {
		o(cfg)
	}
	g := &defaultGrader{
		strategies: map[string]Strategy{
			Equality:     equalityStrategy{},
			NearEquality: nearEqualityStrategy{},
			Regex:        regexStrategy{},
		},
	}
	for name, s := range cfg.extra {
		g.strategies[name] = s
	}
	return g
}

// --- Strategies ---

type equalityStrategy struct{}

func (equalityStrategy) Grade(_ context.Context, tc TestCase, got string) (bool, error) {
	return clean(tc.Expected) == clean(got), nil
}

type nearEqualityStrategy struct{}

func (nearEqualityStrategy) Grade(_ context.Context, tc TestCase, got string) (bool, error) {
	return nearNormalize(tc.Expected) == nearNormalize(got), nil
}

// regexStrategy treats the expected output as a multiline pattern that
// must match somewhere in got.
type regexStrategy struct{}

func (regexStrategy) Grade(_ context.Context, tc TestCase, got string) (bool, error) {
	re, err := regexp.Compile("(?ms)" + tc.Expected)
	if err != nil {
		return false, fmt.Errorf("bad regular expression: %w", err)
	}
	return re.MatchString(got), nil
}
