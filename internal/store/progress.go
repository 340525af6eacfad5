package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/pathwise/internal/progress"
)

// progressRepo implements ProgressRepo with a JSON data column.
type progressRepo struct {
	db *sql.DB
}

func (r *progressRepo) Get(ctx context.Context, userID, courseID string) (*Record, error) {
	var (
		data    string
		version int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT data, version FROM progress WHERE user_id = ? AND course_id = ?`,
		userID, courseID,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	p, err := decodeProgress(data)
	if err != nil {
		return nil, err
	}
	return &Record{Progress: p, Version: version}, nil
}

func (r *progressRepo) Save(ctx context.Context, p progress.Progress, expectedVersion int64) (int64, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("marshal progress: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM progress WHERE user_id = ? AND course_id = ?`,
		p.UserID, p.CourseID,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return 0, fmt.Errorf("query version: %w", err)
	}
	if current != expectedVersion {
		return 0, ErrConflict
	}

	next := current + 1
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO progress (user_id, course_id, data, version, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, course_id) DO UPDATE SET
		   data = excluded.data,
		   version = excluded.version,
		   updated_at = excluded.updated_at`,
		p.UserID, p.CourseID, string(data), next, updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("save progress: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (r *progressRepo) Delete(ctx context.Context, userID, courseID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM progress WHERE user_id = ? AND course_id = ?`,
		userID, courseID,
	)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func (r *progressRepo) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data, version FROM progress WHERE user_id = ? ORDER BY course_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			data    string
			version int64
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p, err := decodeProgress(data)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{Progress: p, Version: version})
	}
	return out, rows.Err()
}

func decodeProgress(data string) (progress.Progress, error) {
	var p progress.Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return progress.Progress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	return p, nil
}
