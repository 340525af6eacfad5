package progress

import (
	"fmt"
	"time"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/paths"
)

// StateTransition records a node state change for display and event logging.
type StateTransition struct {
	NodeID string
	PathID string // active path when the transition happened, if any
	From   graph.NodeState
	To     graph.NodeState
	At     time.Time
}

// Tracker owns one learner's mutable progress in one course. Every mutation
// is all-or-nothing: on error the tracked state is unchanged. A Tracker is
// not safe for concurrent use; callers serialize writes per learner.
type Tracker struct {
	graph   *graph.Store
	catalog *paths.Catalog
	state   Progress
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker wraps existing progress. The progress must belong to g's course
// (an empty CourseID is adopted); otherwise it fails with ErrCourseMismatch.
// Completed ids unknown to g are kept: they may predate a content update.
func NewTracker(g *graph.Store, c *paths.Catalog, p Progress, opts ...Option) (*Tracker, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("progress: user id must not be empty")
	}
	if p.CourseID == "" {
		p.CourseID = g.CourseID()
	}
	if p.CourseID != g.CourseID() {
		return nil, &graph.CourseMismatchError{Want: g.CourseID(), Got: p.CourseID}
	}
	if c.CourseID() != g.CourseID() {
		return nil, &graph.CourseMismatchError{Want: g.CourseID(), Got: c.CourseID()}
	}
	t := &Tracker{
		graph:   g,
		catalog: c,
		state:   p.Clone(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Progress returns a snapshot of the tracked state.
func (t *Tracker) Progress() Progress {
	return t.state.Clone()
}

// State derives the state of nodeID for this learner.
func (t *Tracker) State(nodeID string) (graph.NodeState, error) {
	return t.graph.State(nodeID, t.state.CompletedSet())
}

// MarkCompleted marks nodeID completed and returns the new snapshot.
func (t *Tracker) MarkCompleted(nodeID string) (Progress, error) {
	if _, err := t.Complete(nodeID); err != nil {
		return Progress{}, err
	}
	return t.Progress(), nil
}

// Complete marks nodeID completed. It fails with a *graph.NotFoundError for
// ids unknown to the course graph. Completing an already completed node is a
// no-op that returns a nil transition and leaves every field, timestamps
// included, untouched. When the node is on the current path, the path's
// completed set and index are updated.
func (t *Tracker) Complete(nodeID string) (*StateTransition, error) {
	from, err := t.State(nodeID)
	if err != nil {
		return nil, err
	}
	if from == graph.StateCompleted {
		return nil, nil
	}

	now := t.now()
	next := t.state.Clone()
	next.CompletedNodes = append(next.CompletedNodes, nodeID)
	next.UpdatedAt = now

	if next.CurrentPathID != "" && next.PathProgress != nil {
		// A current path missing from the catalog predates a content
		// update; its progress is left as is.
		path, err := t.catalog.GetPath(next.CurrentPathID)
		if err == nil && path.Contains(nodeID) {
			completed := next.CompletedSet()
			next.PathProgress.CompletedNodes = path.CompletedSubset(completed)
			next.PathProgress.CurrentNodeIndex = path.FirstIncomplete(completed)
		}
		next.PathProgress.LastAccessedAt = now
	}

	t.state = next
	return &StateTransition{
		NodeID: nodeID,
		PathID: next.CurrentPathID,
		From:   from,
		To:     graph.StateCompleted,
		At:     now,
	}, nil
}

// SelectPath makes pathID the current path. Path progress is rebuilt from
// the nodes already completed; StartedAt is kept when re-selecting the
// path already in progress. Fails with a *graph.NotFoundError for unknown
// paths.
func (t *Tracker) SelectPath(pathID string) (Progress, error) {
	path, err := t.catalog.GetPath(pathID)
	if err != nil {
		return Progress{}, err
	}

	now := t.now()
	next := t.state.Clone()
	completed := next.CompletedSet()

	startedAt := now
	if next.PathProgress != nil && next.PathProgress.PathID == pathID && !next.PathProgress.StartedAt.IsZero() {
		startedAt = next.PathProgress.StartedAt
	}
	next.CurrentPathID = pathID
	next.PathProgress = &PathProgress{
		PathID:           pathID,
		CurrentNodeIndex: path.FirstIncomplete(completed),
		CompletedNodes:   path.CompletedSubset(completed),
		StartedAt:        startedAt,
		LastAccessedAt:   now,
	}
	next.UpdatedAt = now

	t.state = next
	return t.Progress(), nil
}

// ClearPath stops following the current path. Completed nodes are kept.
func (t *Tracker) ClearPath() Progress {
	if t.state.CurrentPathID == "" && t.state.PathProgress == nil {
		return t.Progress()
	}
	t.state.CurrentPathID = ""
	t.state.PathProgress = nil
	t.state.UpdatedAt = t.now()
	return t.Progress()
}

// SetRecommendations stores the derived recommendation list.
func (t *Tracker) SetRecommendations(ids []string) {
	t.state.RecommendedNextNodes = append([]string{}, ids...)
}

// RemainingMinutes sums the estimates of the current path's nodes that are
// not completed. Returns 0 without a current path.
func (t *Tracker) RemainingMinutes() int {
	if t.state.CurrentPathID == "" {
		return 0
	}
	path, err := t.catalog.GetPath(t.state.CurrentPathID)
	if err != nil {
		return 0
	}
	completed := t.state.CompletedSet()
	var remaining []string
	for _, id := range path.NodeSequence {
		if !completed[id] {
			remaining = append(remaining, id)
		}
	}
	return t.graph.TotalMinutes(remaining)
}
