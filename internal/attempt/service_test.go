package attempt_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mind-engage/mindengage-coderunner/internal/attempt"
	"github.com/mind-engage/mindengage-coderunner/internal/grading"
	"github.com/mind-engage/mindengage-coderunner/internal/outcome"
	"github.com/mind-engage/mindengage-coderunner/internal/storage"
	syncx "github.com/mind-engage/mindengage-coderunner/internal/sync"
)

type fakeRecorder struct {
	mu     sync.Mutex
	events []syncx.Event
	err    error
}

func (f *fakeRecorder) Append(_ context.Context, e syncx.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func sqrQuestion() attempt.Question {
	return attempt.Question{
		Name:         "sqr",
		Grader:       grading.Equality,
		PrecheckMode: grading.PrecheckExamples,
		TestCases: []grading.TestCase{
			{TestCode: "print(sqr(0))", Expected: "0", Mark: 1, UseAsExample: true},
			{TestCode: "print(sqr(1))", Expected: "1", Mark: 2},
			{TestCode: "print(sqr(2))", Expected: "4", Mark: 4, Display: outcome.DisplayHide},
		},
	}
}

func runs(got ...string) []grading.Run {
	out := make([]grading.Run, len(got))
	for i, g := range got {
		out[i] = grading.Run{Got: g, SandboxInfo: map[string]string{"server": "jobe1"}}
	}
	return out
}

func newService(t *testing.T, opts ...attempt.Option) (*attempt.Service, attempt.Attempt) {
	t.Helper()
	clock := func() time.Time { return time.Unix(1700000000, 0) }
	svc := attempt.NewService(attempt.NewMemoryStore(), grading.NewDefaultGrader(), append([]attempt.Option{attempt.WithClock(clock)}, opts...)...)
	ctx := context.Background()
	q, err := svc.CreateQuestion(ctx, sqrQuestion())
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	a, err := svc.StartAttempt(ctx, q.ID, "student1")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	return svc, a
}

func TestCreateQuestionValidates(t *testing.T) {
	svc := attempt.NewService(attempt.NewMemoryStore(), grading.NewDefaultGrader())
	ctx := context.Background()

	bad := []attempt.Question{
		{Grader: "Mystery", TestCases: sqrQuestion().TestCases},
		{Grader: grading.Equality},
		{Grader: grading.Equality, TestCases: sqrQuestion().TestCases, PrecheckMode: "sometimes"},
		{Grader: grading.Equality, TestCases: sqrQuestion().TestCases, ResultColumns: `[["Only header"]]`},
	}
	for i, q := range bad {
		if _, err := svc.CreateQuestion(ctx, q); !errors.Is(err, attempt.ErrInvalidQuestion) {
			t.Errorf("case %d: err = %v, want ErrInvalidQuestion", i, err)
		}
	}

	q, err := svc.CreateQuestion(ctx, attempt.Question{Grader: grading.Combinator})
	if err != nil {
		t.Fatalf("combinator question: %v", err)
	}
	if q.ID == "" || q.PrecheckMode != grading.PrecheckDisabled {
		t.Fatalf("defaults not applied: %+v", q)
	}
}

func TestCreateQuestionMarks(t *testing.T) {
	svc := attempt.NewService(attempt.NewMemoryStore(), grading.NewDefaultGrader())
	ctx := context.Background()

	q, err := svc.CreateQuestion(ctx, attempt.Question{TestCases: []grading.TestCase{
		{TestCode: "print(1)", Expected: "1"},
		{TestCode: "print(2)", Expected: "2", Mark: 3},
	}})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	if q.TestCases[0].Mark != grading.DefaultMark || q.TestCases[1].Mark != 3 {
		t.Fatalf("marks = %v, %v", q.TestCases[0].Mark, q.TestCases[1].Mark)
	}
	a, _ := svc.StartAttempt(ctx, q.ID, "s")
	step, err := svc.Grade(ctx, a.ID, runs("1", "2"), false)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if step.Fraction != 1 {
		t.Fatalf("fraction = %v, want 1", step.Fraction)
	}

	neg := attempt.Question{TestCases: []grading.TestCase{{TestCode: "print(1)", Expected: "1", Mark: -1}}}
	if _, err := svc.CreateQuestion(ctx, neg); !errors.Is(err, attempt.ErrInvalidQuestion) || !errors.Is(err, grading.ErrNegativeMark) {
		t.Fatalf("err = %v, want ErrInvalidQuestion", err)
	}
}

func TestStartAttemptUnknownQuestion(t *testing.T) {
	svc := attempt.NewService(attempt.NewMemoryStore(), grading.NewDefaultGrader())
	if _, err := svc.StartAttempt(context.Background(), "nope", "u"); !errors.Is(err, attempt.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGradeRecordsSteps(t *testing.T) {
	rec := &fakeRecorder{}
	core, logs := observer.New(zap.InfoLevel)
	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	svc, a := newService(t, attempt.WithEvents(rec), attempt.WithLogger(zap.New(core)), attempt.WithArchive(blobs))
	ctx := context.Background()

	first, err := svc.Grade(ctx, a.ID, runs("0"), true)
	if err != nil {
		t.Fatalf("Grade precheck: %v", err)
	}
	if first.Seq != 1 || !first.Precheck || first.Fraction != 1 {
		t.Fatalf("first step = %+v", first)
	}
	second, err := svc.Grade(ctx, a.ID, runs("0", "1", "5"), false)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if second.Seq != 2 || second.Fraction != 3.0/7.0 {
		t.Fatalf("second step = %+v", second)
	}

	steps, err := svc.Steps(ctx, a.ID)
	if err != nil || len(steps) != 2 {
		t.Fatalf("Steps() = %v, %v", steps, err)
	}
	if len(rec.events) != 2 || rec.events[1].Type != syncx.OutcomeRecorded || rec.events[1].Key != a.ID {
		t.Fatalf("events = %+v", rec.events)
	}
	if !strings.Contains(rec.events[1].DataJSON, `"seq":2`) {
		t.Fatalf("event payload = %s", rec.events[1].DataJSON)
	}
	if n := logs.FilterMessage("step graded").Len(); n != 2 {
		t.Fatalf("logged %d graded steps, want 2", n)
	}
	payload, err := svc.Archived(ctx, a.ID, 2)
	if err != nil || string(payload) != second.OutcomeJSON {
		t.Fatalf("Archived() = %s, %v", payload, err)
	}
}

func TestGradeSurvivesEventFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc, a := newService(t, attempt.WithEvents(&fakeRecorder{err: errors.New("db down")}), attempt.WithLogger(zap.New(core)))
	if _, err := svc.Grade(context.Background(), a.ID, runs("0", "1", "4"), false); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if logs.FilterMessage("event not recorded").Len() != 1 {
		t.Fatal("event failure not logged")
	}
}

func TestGradeErrors(t *testing.T) {
	svc, a := newService(t)
	ctx := context.Background()
	if _, err := svc.Grade(ctx, "missing", runs("0"), false); !errors.Is(err, attempt.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Grade(ctx, a.ID, runs("0", "1", "4", "9"), false); !errors.Is(err, grading.ErrTooManyRuns) {
		t.Fatalf("err = %v, want ErrTooManyRuns", err)
	}
}

func TestRenderHidesRowsFromStudents(t *testing.T) {
	svc, a := newService(t)
	ctx := context.Background()
	if _, err := svc.Grade(ctx, a.ID, runs("0", "1", "5"), false); err != nil {
		t.Fatalf("Grade: %v", err)
	}

	student, err := svc.Render(ctx, a.ID, false)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if student.Table == nil || len(student.Table.Rows) != 2 {
		t.Fatalf("student table = %+v", student.Table)
	}
	if student.HiddenErrors != 0 || student.SandboxInfo != nil || student.Message != "" {
		t.Fatalf("student view leaks privileged data: %+v", student)
	}
	if *student.AllCorrect || student.ErrorCount != 1 || student.Status != "VALID" {
		t.Fatalf("student view = %+v", student)
	}

	teacher, err := svc.Render(ctx, a.ID, true)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(teacher.Table.Rows) != 3 || !teacher.Table.RowHidden(2) {
		t.Fatalf("teacher table = %+v", teacher.Table)
	}
	if teacher.HiddenErrors != 1 || teacher.SandboxInfo["server"] != "jobe1" {
		t.Fatalf("teacher view = %+v", teacher)
	}
	if !strings.HasPrefix(teacher.Message, "Failed 1 test(s)") {
		t.Fatalf("teacher message = %q", teacher.Message)
	}
}

func TestRenderAbortedAndSyntaxError(t *testing.T) {
	svc, a := newService(t)
	ctx := context.Background()
	aborted := []grading.Run{{Got: "0"}, {Got: "", Stderr: "ZeroDivisionError", Outcome: grading.RunRuntimeError}}
	if _, err := svc.Grade(ctx, a.ID, aborted, false); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	v, _ := svc.Render(ctx, a.ID, false)
	if !v.Aborted || *v.Fraction != 1.0/7.0 {
		t.Fatalf("aborted view = %+v", v)
	}

	syntax := []grading.Run{{Outcome: grading.RunCompileError, Stderr: "line 1 <bad>"}}
	if _, err := svc.Grade(ctx, a.ID, syntax, false); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	v, _ = svc.Render(ctx, a.ID, false)
	if v.Status != "SYNTAX_ERROR" || v.Table != nil || v.Aborted {
		t.Fatalf("syntax view = %+v", v)
	}
	if !strings.Contains(v.Message, "line 1 &lt;bad&gt;") {
		t.Fatalf("message = %q", v.Message)
	}
}

func TestRenderCombinatorOutcome(t *testing.T) {
	svc := attempt.NewService(attempt.NewMemoryStore(), grading.NewDefaultGrader())
	ctx := context.Background()
	q, _ := svc.CreateQuestion(ctx, attempt.Question{Grader: grading.Combinator})
	a, _ := svc.StartAttempt(ctx, q.ID, "s")
	out := `{"fraction": 0.5, "epiloguehtml": "<p>half</p>",
		"testresults": [["iscorrect", "Test", "ishidden"], [1, "one", 0], [0, "two", 1]]}`
	if _, err := svc.Grade(ctx, a.ID, []grading.Run{{Got: out}}, false); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	v, err := svc.Render(ctx, a.ID, false)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if *v.Fraction != 0.5 || v.Epilogue != "<p>half</p>" || len(v.Table.Rows) != 1 {
		t.Fatalf("view = %+v", v)
	}
}

func TestRenderPrecheckRawOutput(t *testing.T) {
	svc := attempt.NewService(attempt.NewMemoryStore(), grading.NewDefaultGrader())
	ctx := context.Background()
	q := sqrQuestion()
	q.PrecheckMode = grading.PrecheckEmpty
	q, _ = svc.CreateQuestion(ctx, q)
	a, _ := svc.StartAttempt(ctx, q.ID, "s")
	if _, err := svc.Grade(ctx, a.ID, runs("hello raw"), true); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	v, err := svc.Render(ctx, a.ID, false)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !v.Precheck || v.RawOutput != "hello raw" {
		t.Fatalf("view = %+v", v)
	}
	if v.Fraction != nil || v.AllCorrect != nil || v.Table != nil {
		t.Fatalf("raw precheck view carries a grade: %+v", v)
	}

	// a failed precheck run falls back to the graded table
	if _, err := svc.Grade(ctx, a.ID, []grading.Run{{Got: "", Stderr: "NameError", Outcome: grading.RunRuntimeError}}, true); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	v, _ = svc.Render(ctx, a.ID, false)
	if v.RawOutput != "" || v.Fraction == nil {
		t.Fatalf("stderr precheck view = %+v", v)
	}
}

func TestRenderLegacyPrecheckStep(t *testing.T) {
	svc := attempt.NewService(attempt.NewMemoryStore(), grading.NewDefaultGrader())
	q, _ := svc.CreateQuestion(context.Background(), sqrQuestion())

	o := outcome.New(1, 1, true)
	o.PrecheckKnown = false
	o.AddResult(outcome.TestResult{Got: "legacy out", Mark: 1, Awarded: 1, IsCorrect: true, Display: outcome.DisplayShow})
	payload, err := outcome.Encode(o)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	step := attempt.Step{AttemptID: "a1", Seq: 1, Precheck: true, OutcomeJSON: string(payload)}
	v, err := svc.RenderStep(context.Background(), q, step, false)
	if err != nil {
		t.Fatalf("RenderStep: %v", err)
	}
	if v.RawOutput != "legacy out" || v.Fraction != nil {
		t.Fatalf("view = %+v", v)
	}
}

func TestRenderCorruptStep(t *testing.T) {
	store := attempt.NewMemoryStore()
	core, logs := observer.New(zap.ErrorLevel)
	svc := attempt.NewService(store, grading.NewDefaultGrader(), attempt.WithLogger(zap.New(core)))
	ctx := context.Background()
	q, _ := svc.CreateQuestion(ctx, sqrQuestion())
	a, _ := svc.StartAttempt(ctx, q.ID, "s")
	if err := store.AppendStep(ctx, attempt.Step{AttemptID: a.ID, Seq: 1, OutcomeJSON: "{broken"}); err != nil {
		t.Fatalf("AppendStep: %v", err)
	}
	v, err := svc.Render(ctx, a.ID, true)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if v.Status != "DESERIALIZE_FAILED" || v.Table != nil || !strings.Contains(v.Message, "failed to restore outcome") {
		t.Fatalf("view = %+v", v)
	}
	if logs.Len() != 1 {
		t.Fatal("corrupt outcome not logged")
	}
}

func TestRenderWithoutSteps(t *testing.T) {
	svc, a := newService(t)
	if _, err := svc.Render(context.Background(), a.ID, false); !errors.Is(err, attempt.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
