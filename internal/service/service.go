// Package service exposes the learner-facing operations over the loaded
// courses and the progress store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/pathwise/internal/content"
	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/metrics"
	"github.com/abhisek/pathwise/internal/progress"
	"github.com/abhisek/pathwise/internal/recommend"
	"github.com/abhisek/pathwise/internal/store"
)

// Service runs markCompleted, selectPath and recommendNext for any learner.
// Writes for the same (user, course) are serialized in process; writes from
// other processes are detected by the store's version check and merged.
type Service struct {
	courses      *Registry
	progress     store.ProgressRepo
	events       store.EventRepo
	engine       *recommend.Engine
	metrics      *metrics.Collector
	logger       *zap.Logger
	now          func() time.Time
	defaultLimit int

	locks sync.Map // "user\x00course" -> *sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. The recommendation engine logs its
// diagnostics through it too.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records operation counters on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithClock sets the time source for progress timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultLimit sets the recommendation list length used when a caller
// passes no limit. 0 means unbounded.
func WithDefaultLimit(n int) Option {
	return func(s *Service) { s.defaultLimit = n }
}

// New creates a Service.
func New(courses *Registry, repo store.ProgressRepo, events store.EventRepo, opts ...Option) *Service {
	s := &Service{
		courses:  courses,
		progress: repo,
		events:   events,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = recommend.New(recommend.WithLogger(s.logger))
	return s
}

// Courses returns the course registry.
func (s *Service) Courses() *Registry {
	return s.courses
}

// ApplyCourse swaps in a reloaded course. Older versions are refused.
func (s *Service) ApplyCourse(c *content.Course) error {
	if err := s.courses.Replace(c); err != nil {
		s.logger.Warn("course not replaced",
			zap.String("course_id", c.ID),
			zap.String("version", c.Version),
			zap.Error(err),
		)
		s.countReload("stale")
		return err
	}
	s.logger.Info("course loaded",
		zap.String("course_id", c.ID),
		zap.String("version", c.Version),
		zap.Int("nodes", c.Graph.Len()),
		zap.Int("paths", c.Catalog.Len()),
	)
	s.countReload("ok")
	if s.metrics != nil {
		s.metrics.CoursesLoaded.Set(float64(s.courses.Len()))
	}
	return nil
}

// GetProgress returns the learner's progress with fresh recommendations.
// A learner with nothing stored gets empty progress.
func (s *Service) GetProgress(ctx context.Context, userID, courseID string) (progress.Progress, error) {
	c, err := s.courses.Get(courseID)
	if err != nil {
		return progress.Progress{}, err
	}
	p, _, err := s.load(ctx, userID, courseID)
	if err != nil {
		return progress.Progress{}, err
	}
	p, _, err = s.refresh(c, p, 0)
	return p, err
}

// MarkCompleted completes nodeID for the learner and returns the saved
// progress. Completing an already completed node changes nothing.
func (s *Service) MarkCompleted(ctx context.Context, userID, courseID, nodeID string) (progress.Progress, error) {
	var tr *progress.StateTransition
	p, err := s.mutate(ctx, userID, courseID, func(t *progress.Tracker) (bool, error) {
		var err error
		tr, err = t.Complete(nodeID)
		return tr != nil, err
	})
	if err != nil || tr == nil {
		return p, err
	}

	if _, err := s.events.AppendCompletion(ctx, userID, courseID, *tr); err != nil {
		s.logger.Error("append completion event",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.String("node_id", nodeID),
			zap.Error(err),
		)
	}
	if s.metrics != nil {
		s.metrics.Completions.WithLabelValues(courseID).Inc()
	}
	s.logger.Info("node completed",
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
		zap.String("node_id", nodeID),
		zap.String("from", tr.From.Label()),
	)
	return p, nil
}

// SelectPath makes pathID the learner's current path.
func (s *Service) SelectPath(ctx context.Context, userID, courseID, pathID string) (progress.Progress, error) {
	p, err := s.mutate(ctx, userID, courseID, func(t *progress.Tracker) (bool, error) {
		_, err := t.SelectPath(pathID)
		return err == nil, err
	})
	if err != nil {
		return p, err
	}
	if s.metrics != nil {
		s.metrics.PathSelections.WithLabelValues(courseID, pathID).Inc()
	}
	s.logger.Info("path selected",
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
		zap.String("path_id", pathID),
	)
	return p, nil
}

// ClearPath stops the learner following a path.
func (s *Service) ClearPath(ctx context.Context, userID, courseID string) (progress.Progress, error) {
	return s.mutate(ctx, userID, courseID, func(t *progress.Tracker) (bool, error) {
		before := t.Progress().CurrentPathID
		t.ClearPath()
		return before != "", nil
	})
}

// RecommendNext returns the learner's progress with recommendations capped
// at limit. A zero limit uses the service default; a negative limit is
// unbounded. Nothing is written.
func (s *Service) RecommendNext(ctx context.Context, userID, courseID string, limit int) (progress.Progress, recommend.Result, error) {
	c, err := s.courses.Get(courseID)
	if err != nil {
		return progress.Progress{}, recommend.Result{}, err
	}
	p, _, err := s.load(ctx, userID, courseID)
	if err != nil {
		return progress.Progress{}, recommend.Result{}, err
	}
	return s.refresh(c, p, limit)
}

// Summary is a learner's standing in a course.
type Summary struct {
	Progress         progress.Progress      `json:"progress"`
	PathPercent      int                    `json:"pathPercent"`
	RemainingMinutes int                    `json:"remainingMinutes"`
	Diagnostics      []recommend.Diagnostic `json:"diagnostics"`
}

// Summarize returns the learner's progress with path completion figures.
func (s *Service) Summarize(ctx context.Context, userID, courseID string) (Summary, error) {
	c, err := s.courses.Get(courseID)
	if err != nil {
		return Summary{}, err
	}
	p, _, err := s.load(ctx, userID, courseID)
	if err != nil {
		return Summary{}, err
	}
	p, res, err := s.refresh(c, p, 0)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Progress: p, Diagnostics: res.Diagnostics}
	pct, err := recommend.PathPercent(c.Catalog, p)
	switch {
	case errors.Is(err, graph.ErrNotFound):
		// Stale current path, already reported in Diagnostics.
		return sum, nil
	case err != nil:
		return Summary{}, err
	}
	sum.PathPercent = pct
	tr, err := progress.NewTracker(c.Graph, c.Catalog, p)
	if err != nil {
		return Summary{}, err
	}
	sum.RemainingMinutes = tr.RemainingMinutes()
	return sum, nil
}

// History returns the learner's completion events in order.
func (s *Service) History(ctx context.Context, userID, courseID string, opts store.QueryOpts) ([]store.CompletionEvent, error) {
	if _, err := s.courses.Get(courseID); err != nil {
		return nil, err
	}
	return s.events.Completions(ctx, userID, courseID, opts)
}

// Reset deletes the learner's stored progress. Completion events are kept.
func (s *Service) Reset(ctx context.Context, userID, courseID string) error {
	unlock := s.lock(userID, courseID)
	defer unlock()
	if err := s.progress.Delete(ctx, userID, courseID); err != nil {
		return err
	}
	s.logger.Info("progress reset", zap.String("user_id", userID), zap.String("course_id", courseID))
	return nil
}

// mutate loads the learner's progress, applies fn through a tracker and
// saves the result when fn reports a change. A version conflict is resolved
// once by merging with the stored progress.
func (s *Service) mutate(ctx context.Context, userID, courseID string, fn func(*progress.Tracker) (bool, error)) (progress.Progress, error) {
	if userID == "" {
		return progress.Progress{}, errors.New("service: user id must not be empty")
	}
	c, err := s.courses.Get(courseID)
	if err != nil {
		return progress.Progress{}, err
	}

	unlock := s.lock(userID, courseID)
	defer unlock()

	cur, version, err := s.load(ctx, userID, courseID)
	if err != nil {
		return progress.Progress{}, err
	}
	tr, err := progress.NewTracker(c.Graph, c.Catalog, cur, progress.WithClock(s.now))
	if err != nil {
		return progress.Progress{}, err
	}
	changed, err := fn(tr)
	if err != nil {
		return progress.Progress{}, err
	}
	next, _, err := s.refresh(c, tr.Progress(), 0)
	if err != nil {
		return progress.Progress{}, err
	}
	if !changed {
		return next, nil
	}

	_, err = s.progress.Save(ctx, next, version)
	if !errors.Is(err, store.ErrConflict) {
		if err != nil {
			return progress.Progress{}, err
		}
		return next, nil
	}

	if s.metrics != nil {
		s.metrics.StoreConflicts.Inc()
	}
	s.logger.Warn("progress conflict, merging",
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
		zap.Int64("version", version),
	)
	stored, storedVersion, err := s.load(ctx, userID, courseID)
	if err != nil {
		return progress.Progress{}, err
	}
	merged, err := progress.Merge(c.Catalog, stored, next)
	if err != nil {
		return progress.Progress{}, fmt.Errorf("merge progress: %w", err)
	}
	merged, _, err = s.refresh(c, merged, 0)
	if err != nil {
		return progress.Progress{}, err
	}
	if _, err := s.progress.Save(ctx, merged, storedVersion); err != nil {
		return progress.Progress{}, fmt.Errorf("save merged progress: %w", err)
	}
	return merged, nil
}

func (s *Service) load(ctx context.Context, userID, courseID string) (progress.Progress, int64, error) {
	rec, err := s.progress.Get(ctx, userID, courseID)
	if err != nil {
		return progress.Progress{}, 0, err
	}
	if rec == nil {
		return progress.New(userID, courseID), 0, nil
	}
	return rec.Progress, rec.Version, nil
}

func (s *Service) refresh(c *content.Course, p progress.Progress, limit int) (progress.Progress, recommend.Result, error) {
	if limit == 0 {
		limit = s.defaultLimit
	}
	out, res, err := s.engine.Refresh(c.Graph, c.Catalog, p, limit)
	if err != nil {
		return progress.Progress{}, recommend.Result{}, err
	}
	if s.metrics != nil {
		s.metrics.Recommendations.WithLabelValues(c.ID).Inc()
		for _, d := range res.Diagnostics {
			s.metrics.Diagnostics.WithLabelValues(d.Kind).Inc()
		}
	}
	return out, res, nil
}

func (s *Service) lock(userID, courseID string) func() {
	v, _ := s.locks.LoadOrStore(userID+"\x00"+courseID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) countReload(result string) {
	if s.metrics != nil {
		s.metrics.ContentReloads.WithLabelValues(result).Inc()
	}
}
