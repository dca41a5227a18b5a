package attempt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-coderunner/internal/grading"
	"github.com/mind-engage/mindengage-coderunner/internal/outcome"
	"github.com/mind-engage/mindengage-coderunner/internal/storage"
	syncx "github.com/mind-engage/mindengage-coderunner/internal/sync"
	"github.com/mind-engage/mindengage-coderunner/pkg/logger"
)

var ErrInvalidQuestion = errors.New("invalid question")

// Service grades attempt steps and renders their outcomes.
type Service struct {
	store  Store
	grader grading.Grader
	events syncx.Recorder
	blobs  storage.BlobStore
	strs   outcome.Strings
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithEvents records an OutcomeRecorded event for every graded step.
func WithEvents(r syncx.Recorder) Option { return func(s *Service) { s.events = r } }

// WithArchive stores a copy of every serialised outcome.
func WithArchive(b storage.BlobStore) Option { return func(s *Service) { s.blobs = b } }

func WithStrings(strs outcome.Strings) Option { return func(s *Service) { s.strs = strs } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store Store, grader grading.Grader, opts ...Option) *Service {
	s := &Service{
		store:  store,
		grader: grader,
		strs:   outcome.English,
		log:    logger.L(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateQuestion validates q and stores it, assigning an ID if q has none.
func (s *Service) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	if q.Grader == "" {
		q.Grader = grading.Equality
	}
	if q.Grader != grading.Combinator {
		if !s.grader.Known(q.Grader) {
			return Question{}, fmt.Errorf("%w: %w %q", ErrInvalidQuestion, grading.ErrUnknownGrader, q.Grader)
		}
		if len(q.TestCases) == 0 {
			return Question{}, fmt.Errorf("%w: no test cases", ErrInvalidQuestion)
		}
	}
	switch q.PrecheckMode {
	case "", grading.PrecheckDisabled, grading.PrecheckEmpty, grading.PrecheckExamples, grading.PrecheckAll:
	default:
		return Question{}, fmt.Errorf("%w: unknown precheck mode %q", ErrInvalidQuestion, q.PrecheckMode)
	}
	if q.PrecheckMode == "" {
		q.PrecheckMode = grading.PrecheckDisabled
	}
	if _, err := outcome.ParseResultColumns(q.ResultColumns); err != nil {
		return Question{}, fmt.Errorf("%w: %w", ErrInvalidQuestion, err)
	}
	if err := grading.NormalizeMarks(q.TestCases); err != nil {
		return Question{}, fmt.Errorf("%w: %w", ErrInvalidQuestion, err)
	}
	for i := range q.TestCases {
		if q.TestCases[i].Display == outcome.DisplayUnset {
			q.TestCases[i].Display = outcome.DisplayShow
		}
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = s.now().Unix()
	if err := s.store.PutQuestion(ctx, q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *Service) GetQuestion(ctx context.Context, id string) (Question, error) {
	return s.store.GetQuestion(ctx, id)
}

func (s *Service) StartAttempt(ctx context.Context, questionID, userID string) (Attempt, error) {
	a := Attempt{ID: uuid.NewString(), QuestionID: questionID, UserID: userID, StartedAt: s.now().Unix()}
	if err := s.store.NewAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *Service) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return s.store.GetAttempt(ctx, id)
}

// Grade grades the sandbox runs of a submission and records them as the
// next step of the attempt.
func (s *Service) Grade(ctx context.Context, attemptID string, runs []grading.Run, precheck bool) (Step, error) {
	ctx = logger.WithAttempt(ctx, attemptID)
	log := logger.Ctx(ctx, s.log)

	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Step{}, err
	}
	q, err := s.store.GetQuestion(ctx, a.QuestionID)
	if err != nil {
		return Step{}, err
	}
	gq := q.Grading()
	d, err := grading.Evaluate(ctx, s.grader, gq, runs, precheck)
	if err != nil {
		return Step{}, err
	}
	payload, err := d.Encode()
	if err != nil {
		return Step{}, fmt.Errorf("encode outcome: %w", err)
	}

	seq := 1
	last, err := s.store.LatestStep(ctx, attemptID)
	switch {
	case err == nil:
		seq = last.Seq + 1
	case !errors.Is(err, ErrNotFound):
		return Step{}, err
	}

	o := d.Base()
	step := Step{
		AttemptID:   attemptID,
		Seq:         seq,
		Precheck:    precheck,
		Fraction:    gq.Fraction(o),
		OutcomeJSON: string(payload),
		CreatedAt:   s.now().Unix(),
	}
	if err := s.store.AppendStep(ctx, step); err != nil {
		return Step{}, err
	}

	log.Info("step graded",
		zap.Int("seq", seq),
		zap.Bool("precheck", precheck),
		zap.Stringer("status", o.Status),
		zap.Float64("fraction", step.Fraction),
		zap.Int("errors", o.ErrorCount),
		zap.Bool("aborted", o.Status == outcome.StatusValid && d.Kind == outcome.KindBase && o.WasAborted()))
	for i, tr := range o.TestResults {
		if tr.Clamped {
			log.Warn("awarded mark clamped", zap.Int("result", i), zap.Float64("mark", tr.Mark))
		}
	}

	s.record(ctx, log, step, o)
	s.archive(ctx, log, step)
	return step, nil
}

// record and archive are best effort: the step is already stored.

func (s *Service) record(ctx context.Context, log *zap.Logger, step Step, o *outcome.Outcome) {
	if s.events == nil {
		return
	}
	ev, err := syncx.NewOutcomeRecorded(syncx.OutcomeRecordedData{
		AttemptID:  step.AttemptID,
		Seq:        step.Seq,
		Precheck:   step.Precheck,
		Status:     int(o.Status),
		Fraction:   step.Fraction,
		ErrorCount: o.ErrorCount,
	})
	if err == nil {
		err = s.events.Append(ctx, ev)
	}
	if err != nil {
		log.Warn("event not recorded", zap.Error(err))
	}
}

func (s *Service) archive(ctx context.Context, log *zap.Logger, step Step) {
	if s.blobs == nil {
		return
	}
	if _, err := s.blobs.Put(ctx, storage.OutcomeKey(step.AttemptID, step.Seq), strings.NewReader(step.OutcomeJSON)); err != nil {
		log.Warn("outcome not archived", zap.Error(err))
	}
}

// Steps lists the graded steps of an attempt, oldest first.
func (s *Service) Steps(ctx context.Context, attemptID string) ([]Step, error) {
	return s.store.ListSteps(ctx, attemptID)
}

// View is an outcome prepared for display.
type View struct {
	Seq          int               `json:"seq"`
	Status       string            `json:"status"`
	Precheck     bool              `json:"precheck"`
	Fraction     *float64          `json:"fraction,omitempty"`
	AllCorrect   *bool             `json:"all_correct,omitempty"`
	RawOutput    string            `json:"raw_output,omitempty"`
	Aborted      bool              `json:"aborted"`
	ErrorCount   int               `json:"error_count"`
	HiddenErrors int               `json:"hidden_errors,omitempty"`
	OutputOnly   bool              `json:"output_only,omitempty"`
	Prologue     string            `json:"prologue_html,omitempty"`
	Epilogue     string            `json:"epilogue_html,omitempty"`
	Message      string            `json:"message_html,omitempty"`
	Table        *outcome.Table    `json:"table,omitempty"`
	SandboxInfo  map[string]string `json:"sandbox_info,omitempty"`
}

// Render restores the latest step of an attempt. A clean precheck of a single
// test renders as its raw output, with no grade. Viewers who may see hidden
// tests also get hidden rows, hidden error counts, sandbox diagnostics and
// the failures report.
func (s *Service) Render(ctx context.Context, attemptID string, canViewHidden bool) (View, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return View{}, err
	}
	step, err := s.store.LatestStep(ctx, attemptID)
	if err != nil {
		return View{}, err
	}
	q, err := s.store.GetQuestion(ctx, a.QuestionID)
	if err != nil {
		return View{}, err
	}
	return s.RenderStep(ctx, q, step, canViewHidden)
}

// RenderStep builds the view of a single stored step.
func (s *Service) RenderStep(ctx context.Context, q Question, step Step, canViewHidden bool) (View, error) {
	d := outcome.Decode([]byte(step.OutcomeJSON))
	o := d.Base()
	v := View{
		Seq:      step.Seq,
		Status:   o.Status.String(),
		Precheck: step.Precheck,
	}
	if o.Invalid() {
		logger.Ctx(logger.WithAttempt(ctx, step.AttemptID), s.log).Error("stored outcome unreadable",
			zap.Int("seq", step.Seq), zap.String("error", o.ErrorMessage))
		v.Message = o.ValidationErrorMessage(s.strs)
		return v, nil
	}

	if d.Kind == outcome.KindBase && o.Status == outcome.StatusValid {
		if pre, _ := o.IsPrecheck(step); pre {
			o.Precheck, o.PrecheckKnown = true, true
			if raw, err := o.RawOutput(); err == nil {
				v.Precheck = true
				v.RawOutput = raw
				return v, nil
			}
		}
	}

	fraction, allCorrect := q.Grading().Fraction(o), o.AllCorrect()
	v.Fraction, v.AllCorrect = &fraction, &allCorrect
	v.ErrorCount = o.ErrorCount
	if canViewHidden {
		v.SandboxInfo = o.SandboxInfo
	}

	var table outcome.Table
	var err error
	if d.Kind == outcome.KindGraderState {
		g := d.Grader
		v.OutputOnly = g.IsOutputOnly()
		v.Prologue, v.Epilogue = g.Prologue(), g.Epilogue()
		table, err = g.ResultsTable(canViewHidden)
		if o.Status != outcome.StatusValid || (canViewHidden && !allCorrect) {
			v.Message = g.ValidationErrorMessage(s.strs)
		}
	} else {
		v.Aborted = o.Status == outcome.StatusValid && o.WasAborted()
		if canViewHidden {
			v.HiddenErrors = o.CountHiddenErrors()
		}
		cols, cerr := outcome.ParseResultColumns(q.ResultColumns)
		if cerr != nil {
			cols = outcome.DefaultResultColumns
		}
		table, err = o.ResultsTable(cols, canViewHidden)
		if o.Status != outcome.StatusValid || (canViewHidden && !allCorrect) {
			v.Message = o.ValidationErrorMessage(s.strs)
		}
	}
	if err != nil {
		return View{}, err
	}
	if o.Status == outcome.StatusValid && len(table.Rows) > 0 {
		v.Table = &table
	}
	return v, nil
}

// Archived reads back an archived outcome payload.
func (s *Service) Archived(ctx context.Context, attemptID string, seq int) ([]byte, error) {
	if s.blobs == nil {
		return nil, ErrNotFound
	}
	rc, err := s.blobs.Get(ctx, storage.OutcomeKey(attemptID, seq))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
