package attempt

import "github.com/mind-engage/mindengage-coderunner/internal/grading"

type Question struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Grader        string               `json:"grader"` // EqualityGrader, RegexGrader, CombinatorTemplateGrader, ...
	AllOrNothing  bool                 `json:"all_or_nothing"`
	PrecheckMode  grading.PrecheckMode `json:"precheck_mode,omitempty"`
	ResultColumns string               `json:"result_columns,omitempty"` // JSON column spec; empty means defaults
	TestCases     []grading.TestCase   `json:"testcases"`
	CreatedAt     int64                `json:"created_at,omitempty"`
}

// Grading returns the view of q used by the grading engine.
func (q Question) Grading() grading.Q {
	return grading.Q{
		Grader:       q.Grader,
		AllOrNothing: q.AllOrNothing,
		PrecheckMode: q.PrecheckMode,
		TestCases:    q.TestCases,
	}
}

type Attempt struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	UserID     string `json:"user_id"`
	StartedAt  int64  `json:"started_at"`
}

// Step is one graded submission within an attempt. OutcomeJSON holds the
// serialised outcome; Seq counts from 1.
type Step struct {
	AttemptID   string  `json:"attempt_id"`
	Seq         int     `json:"seq"`
	Precheck    bool    `json:"precheck"`
	Fraction    float64 `json:"fraction"`
	OutcomeJSON string  `json:"-"`
	CreatedAt   int64   `json:"created_at"`
}

// LastBehaviourVar supplies the precheck flag for outcomes stored without it.
func (s Step) LastBehaviourVar(name string, def int) int {
	if name != "_precheck" {
		return def
	}
	if s.Precheck {
		return 1
	}
	return 0
}
