package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/progress"
)

// sequenceCounter hands out the global monotonic sequence shared by all
// events. The mutex serializes within the process; the RETURNING clause
// makes the increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// eventRepo implements EventRepo.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *eventRepo) AppendCompletion(ctx context.Context, userID, courseID string, tr progress.StateTransition) (CompletionEvent, error) {
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return CompletionEvent{}, err
	}
	at := tr.At
	if at.IsZero() {
		at = time.Now()
	}
	ev := CompletionEvent{
		ID:       uuid.NewString(),
		Sequence: seq,
		UserID:   userID,
		CourseID: courseID,
		NodeID:   tr.NodeID,
		PathID:   tr.PathID,
		From:     tr.From,
		At:       at.UTC(),
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO completion_events (id, sequence, user_id, course_id, node_id, path_id, from_state, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Sequence, ev.UserID, ev.CourseID, ev.NodeID, ev.PathID, int(ev.From), ev.At.Format(time.RFC3339Nano),
	)
	if err != nil {
		return CompletionEvent{}, fmt.Errorf("append completion: %w", err)
	}
	return ev, nil
}

func (r *eventRepo) Completions(ctx context.Context, userID, courseID string, opts QueryOpts) ([]CompletionEvent, error) {
	query := `SELECT id, sequence, user_id, course_id, node_id, path_id, from_state, occurred_at
		FROM completion_events
		WHERE user_id = ? AND course_id = ? AND sequence > ?
		ORDER BY sequence`
	args := []any{userID, courseID, opts.After}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var out []CompletionEvent
	for rows.Next() {
		var (
			ev   CompletionEvent
			from int
			at   string
		)
		if err := rows.Scan(&ev.ID, &ev.Sequence, &ev.UserID, &ev.CourseID, &ev.NodeID, &ev.PathID, &from, &at); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		ev.From = graph.NodeState(from)
		ev.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse completion time: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
