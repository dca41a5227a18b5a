package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-coderunner/internal/db"
	"github.com/mind-engage/mindengage-coderunner/internal/grading"
)

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
}

func NewSQLStore(conn *sql.DB, driver db.Driver) *SQLStore {
	return &SQLStore{db: conn, driver: driver}
}

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) error {
	tj, err := json.Marshal(q.TestCases)
	if err != nil {
		return err
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions
		(id,name,grader,all_or_nothing,precheck_mode,result_columns,testcases_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, grader=EXCLUDED.grader,
			all_or_nothing=EXCLUDED.all_or_nothing, precheck_mode=EXCLUDED.precheck_mode,
			result_columns=EXCLUDED.result_columns, testcases_json=EXCLUDED.testcases_json`,
		q.ID, q.Name, q.Grader, q.AllOrNothing, string(q.PrecheckMode), q.ResultColumns, string(tj), q.CreatedAt)
	return err
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,name,grader,all_or_nothing,precheck_mode,result_columns,testcases_json,created_at
		FROM questions WHERE id=$1`, id)
	var q Question
	var tjson, mode string
	if err := row.Scan(&q.ID, &q.Name, &q.Grader, &q.AllOrNothing, &mode, &q.ResultColumns, &tjson, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, ErrNotFound
		}
		return Question{}, err
	}
	q.PrecheckMode = grading.PrecheckMode(mode)
	if err := json.Unmarshal([]byte(tjson), &q.TestCases); err != nil {
		return Question{}, fmt.Errorf("question %s testcases: %w", id, err)
	}
	return q, nil
}

func (s *SQLStore) NewAttempt(ctx context.Context, a Attempt) error {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE id=$1`, a.QuestionID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,question_id,user_id,started_at) VALUES ($1,$2,$3,$4)`,
		a.ID, a.QuestionID, a.UserID, a.StartedAt)
	return err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,question_id,user_id,started_at FROM attempts WHERE id=$1`, id)
	var a Attempt
	if err := row.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.StartedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) AppendStep(ctx context.Context, st Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE id=$1`, st.AttemptID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempt_steps WHERE attempt_id=$1 AND seq=$2`,
		st.AttemptID, st.Seq).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrStepExists
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO attempt_steps (attempt_id,seq,precheck,fraction,outcome_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		st.AttemptID, st.Seq, st.Precheck, st.Fraction, st.OutcomeJSON, st.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

const stepColumns = `attempt_id,seq,precheck,fraction,outcome_json,created_at`

func (s *SQLStore) LatestStep(ctx context.Context, attemptID string) (Step, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM attempt_steps
		WHERE attempt_id=$1 ORDER BY seq DESC LIMIT 1`, attemptID)
	st, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Step{}, ErrNotFound
	}
	return st, err
}

func (s *SQLStore) ListSteps(ctx context.Context, attemptID string) ([]Step, error) {
	if _, err := s.GetAttempt(ctx, attemptID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+stepColumns+` FROM attempt_steps
		WHERE attempt_id=$1 ORDER BY seq`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStep(sc scanner) (Step, error) {
	var st Step
	err := sc.Scan(&st.AttemptID, &st.Seq, &st.Precheck, &st.Fraction, &st.OutcomeJSON, &st.CreatedAt)
	return st, err
}
