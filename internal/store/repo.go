package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/progress"
)

// ErrConflict means the stored progress changed since it was read.
var ErrConflict = errors.New("store: progress version conflict")

// Record is a stored progress envelope with its version token.
type Record struct {
	Progress progress.Progress
	Version  int64
}

// ProgressRepo stores one progress envelope per (user, course).
type ProgressRepo interface {
	// Get returns the stored record, or nil if none exists.
	Get(ctx context.Context, userID, courseID string) (*Record, error)

	// Save writes p if the stored version equals expectedVersion (0 when
	// no record exists yet) and returns the new version. Otherwise it
	// returns ErrConflict and writes nothing.
	Save(ctx context.Context, p progress.Progress, expectedVersion int64) (int64, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID, courseID string) error

	// ListByUser returns every course record of a user, by course id.
	ListByUser(ctx context.Context, userID string) ([]Record, error)
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit int   // max results (0 = unlimited)
	After int64 // sequence > After
}

// CompletionEvent is an appended record of a node being completed.
type CompletionEvent struct {
	ID       string
	Sequence int64
	UserID   string
	CourseID string
	NodeID   string
	PathID   string
	From     graph.NodeState
	At       time.Time
}

// EventRepo provides append access to completion events.
type EventRepo interface {
	// AppendCompletion records a completion transition.
	AppendCompletion(ctx context.Context, userID, courseID string, tr progress.StateTransition) (CompletionEvent, error)

	// Completions returns a learner's events in sequence order.
	Completions(ctx context.Context, userID, courseID string, opts QueryOpts) ([]CompletionEvent, error)
}
