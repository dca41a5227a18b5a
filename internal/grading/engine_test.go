package grading_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mind-engage/mindengage-coderunner/internal/grading"
)

func TestBuiltinStrategies(t *testing.T) {
	g := grading.NewDefaultGrader()
	tests := []struct {
		grader   string
		expected string
		got      string
		want     bool
	}{
		{grading.Equality, "36\n", "36", true},
		{grading.Equality, "a  \nb", "a\nb  \n\n", true},
		{grading.Equality, "Hello", "hello", false},
		{grading.Equality, " 1", "1", false},
		{grading.NearEquality, "Hello   World\n\nBye", "hello world\nbye\n", true},
		{grading.NearEquality, "a b", "ab", false},
		{grading.Regex, `^\d+$`, "line\n42\n", true},
		{grading.Regex, `^yes.*done$`, "yes\nthen done", true},
		{grading.Regex, `^\d+$`, "forty-two", false},
	}
	for _, tt := range tests {
		t.Run(tt.grader+"/"+tt.expected, func(t *testing.T) {
			tc := grading.TestCase{Expected: tt.expected, Mark: 2}
			tr, err := g.Grade(context.Background(), tt.grader, tc, tt.got)
			if err != nil {
				t.Fatalf("Grade: %v", err)
			}
			if tr.IsCorrect != tt.want {
				t.Fatalf("IsCorrect = %v, want %v", tr.IsCorrect, tt.want)
			}
			wantAwarded := 0.0
			if tt.want {
				wantAwarded = 2
			}
			if tr.Awarded != wantAwarded || tr.Mark != 2 || tr.Got != tt.got {
				t.Fatalf("result = %+v", tr)
			}
		})
	}
}

func TestBadRegexIsReportedInExtra(t *testing.T) {
	g := grading.NewDefaultGrader()
	tr, err := g.Grade(context.Background(), grading.Regex, grading.TestCase{Expected: "(", Mark: 1}, "(")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if tr.IsCorrect || !strings.Contains(tr.Extra, "bad regular expression") {
		t.Fatalf("result = %+v", tr)
	}
}

func TestUnknownGrader(t *testing.T) {
	g := grading.NewDefaultGrader()
	if g.Known("TemplateGrader") {
		t.Fatal("TemplateGrader reported as known")
	}
	_, err := g.Grade(context.Background(), "TemplateGrader", grading.TestCase{}, "")
	if !errors.Is(err, grading.ErrUnknownGrader) {
		t.Fatalf("err = %v, want ErrUnknownGrader", err)
	}
}

type alwaysRight struct{}

func (alwaysRight) Grade(context.Context, grading.TestCase, string) (bool, error) { return true, nil }

func TestWithStrategy(t *testing.T) {
	g := grading.NewDefaultGrader(grading.WithStrategy("Lenient", alwaysRight{}))
	tr, err := g.Grade(context.Background(), "Lenient", grading.TestCase{Expected: "x", Mark: 3}, "y")
	if err != nil || !tr.IsCorrect || tr.Awarded != 3 {
		t.Fatalf("Grade() = %+v, %v", tr, err)
	}
	if !g.Known(grading.Equality) {
		t.Fatal("built-in strategies lost")
	}
}

func TestNormalizeMarks(t *testing.T) {
	tcs := []grading.TestCase{{Mark: 0}, {Mark: 2.5}}
	if err := grading.NormalizeMarks(tcs); err != nil {
		t.Fatalf("NormalizeMarks: %v", err)
	}
	if tcs[0].Mark != grading.DefaultMark || tcs[1].Mark != 2.5 {
		t.Fatalf("marks = %+v", tcs)
	}
	if err := grading.NormalizeMarks([]grading.TestCase{{Mark: 1}, {Mark: -0.5}}); !errors.Is(err, grading.ErrNegativeMark) {
		t.Fatalf("err = %v, want ErrNegativeMark", err)
	}
}
