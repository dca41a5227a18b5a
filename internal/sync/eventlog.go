package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event types.
const (
	OutcomeRecorded = "OutcomeRecorded"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// Recorder appends events. EventRepo is the SQL implementation.
type Recorder interface {
	Append(ctx context.Context, e Event) error
}

// Feed reads events back in log order.
type Feed interface {
	Since(ctx context.Context, seq int64, limit int) ([]Event, error)
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Since returns up to limit events after seq, oldest first.
func (r *EventRepo) Since(ctx context.Context, seq int64, limit int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, seq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// OutcomeRecordedData is the payload of an OutcomeRecorded event.
type OutcomeRecordedData struct {
	AttemptID  string  `json:"attempt_id"`
	Seq        int     `json:"seq"`
	Precheck   bool    `json:"precheck"`
	Status     int     `json:"status"`
	Fraction   float64 `json:"fraction"`
	ErrorCount int     `json:"error_count"`
}

// NewOutcomeRecorded builds the event for a graded attempt step.
func NewOutcomeRecorded(d OutcomeRecordedData) (Event, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: OutcomeRecorded, Key: d.AttemptID, DataJSON: string(b)}, nil
}
