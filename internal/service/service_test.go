package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/pathwise/internal/content"
	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/metrics"
	"github.com/abhisek/pathwise/internal/progress"
	"github.com/abhisek/pathwise/internal/recommend"
	"github.com/abhisek/pathwise/internal/store"
)

const courseYAML = `
courseId: algebra
version: "1.0.0"
nodes:
  - {id: a, title: A, difficulty: beginner, importance: core, estimatedMinutes: 10, metadata: {order: 1}}
  - {id: b, title: B, difficulty: beginner, importance: core, estimatedMinutes: 20, metadata: {order: 2}}
  - {id: c, title: C, difficulty: intermediate, importance: core, estimatedMinutes: 30, metadata: {order: 3}}
  - {id: d, title: D, difficulty: advanced, importance: optional, estimatedMinutes: 40, metadata: {order: 4}}
relationships:
  - {id: r1, sourceId: a, targetId: b, type: prerequisite, strength: 9}
  - {id: r2, sourceId: a, targetId: c, type: prerequisite, strength: 5}
predefinedPaths:
  - {id: main, name: Main, nodeSequence: [a, b, c]}
  - {id: extra, name: Extra, nodeSequence: [d]}
`

func testCourse(t *testing.T, version string) *content.Course {
	t.Helper()
	doc, err := content.Parse([]byte(courseYAML), content.FormatYAML)
	require.NoError(t, err)
	doc.Version = version
	c, err := content.Build(doc)
	require.NoError(t, err)
	return c
}

type fixture struct {
	svc     *Service
	store   *store.Store
	metrics *metrics.Collector
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	st, err := store.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := NewRegistry()
	require.NoError(t, reg.Register(testCourse(t, "1.0.0")))

	m := metrics.NewCollector("test")
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	opts = append([]Option{WithMetrics(m), WithClock(now)}, opts...)
	return fixture{
		svc:     New(reg, st.ProgressRepo(), st.EventRepo(), opts...),
		store:   st,
		metrics: m,
	}
}

func TestMarkCompleted_PersistsAndRecommends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.GetProgress(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Empty(t, p.CompletedNodes)
	assert.Equal(t, []string{"a", "d"}, p.RecommendedNextNodes)

	p, err = f.svc.MarkCompleted(ctx, "u1", "algebra", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, p.CompletedNodes)
	assert.Equal(t, []string{"b", "c", "d"}, p.RecommendedNextNodes)

	rec, err := f.store.ProgressRepo().Get(ctx, "u1", "algebra")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, []string{"b", "c", "d"}, rec.Progress.RecommendedNextNodes)

	evs, err := f.svc.History(ctx, "u1", "algebra", store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "a", evs[0].NodeID)
	assert.Equal(t, graph.StateAvailable, evs[0].From)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Completions.WithLabelValues("algebra")))
}

func TestMarkCompleted_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.MarkCompleted(ctx, "u1", "algebra", "a")
	require.NoError(t, err)
	second, err := f.svc.MarkCompleted(ctx, "u1", "algebra", "a")
	require.NoError(t, err)
	assert.Equal(t, first.CompletedNodes, second.CompletedNodes)
	assert.Equal(t, first.RecommendedNextNodes, second.RecommendedNextNodes)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))

	rec, err := f.store.ProgressRepo().Get(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version, "no-op completion must not write")

	evs, err := f.svc.History(ctx, "u1", "algebra", store.QueryOpts{})
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestMarkCompleted_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.MarkCompleted(ctx, "u1", "algebra", "zzz")
	assert.True(t, errors.Is(err, graph.ErrNotFound))
	rec, err := f.store.ProgressRepo().Get(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Nil(t, rec, "failed call must not write")

	_, err = f.svc.MarkCompleted(ctx, "u1", "geometry", "a")
	var nf *graph.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "course", nf.Kind)

	_, err = f.svc.MarkCompleted(ctx, "", "algebra", "a")
	assert.Error(t, err)
}

func TestSelectPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.MarkCompleted(ctx, "u1", "algebra", "a")
	require.NoError(t, err)
	p, err := f.svc.SelectPath(ctx, "u1", "algebra", "main")
	require.NoError(t, err)
	assert.Equal(t, "main", p.CurrentPathID)
	require.NotNil(t, p.PathProgress)
	assert.Equal(t, []string{"a"}, p.PathProgress.CompletedNodes)
	assert.Equal(t, 1, p.PathProgress.CurrentNodeIndex)
	assert.Equal(t, []string{"b", "c", "d"}, p.RecommendedNextNodes)

	p, err = f.svc.SelectPath(ctx, "u1", "algebra", "extra")
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "c"}, p.RecommendedNextNodes)

	_, err = f.svc.SelectPath(ctx, "u1", "algebra", "nope")
	assert.True(t, errors.Is(err, graph.ErrNotFound))

	sum, err := f.svc.Summarize(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.PathPercent)
	assert.Equal(t, 40, sum.RemainingMinutes)

	p, err = f.svc.ClearPath(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Empty(t, p.CurrentPathID)
	assert.Nil(t, p.PathProgress)
}

func TestRecommendNext_Limits(t *testing.T) {
	f := newFixture(t, WithDefaultLimit(2))
	ctx := context.Background()
	_, err := f.svc.MarkCompleted(ctx, "u1", "algebra", "a")
	require.NoError(t, err)

	_, res, err := f.svc.RecommendNext(ctx, "u1", "algebra", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, res.NodeIDs)

	_, res, err = f.svc.RecommendNext(ctx, "u1", "algebra", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.NodeIDs)

	p, res, err := f.svc.RecommendNext(ctx, "u1", "algebra", -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, res.NodeIDs)
	assert.Equal(t, res.NodeIDs, p.RecommendedNextNodes)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.MarkCompleted(ctx, "u1", "algebra", "a")
	require.NoError(t, err)

	require.NoError(t, f.svc.Reset(ctx, "u1", "algebra"))
	p, err := f.svc.GetProgress(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Empty(t, p.CompletedNodes)

	// Completing again after a reset starts a new record.
	_, err = f.svc.MarkCompleted(ctx, "u1", "algebra", "a")
	require.NoError(t, err)
}

// racingRepo lets another writer save between our read and our write once.
type racingRepo struct {
	store.ProgressRepo
	once  sync.Once
	other progress.Progress
}

func (r *racingRepo) Save(ctx context.Context, p progress.Progress, expected int64) (int64, error) {
	var err error
	r.once.Do(func() {
		_, err = r.ProgressRepo.Save(ctx, r.other, expected)
	})
	if err != nil {
		return 0, err
	}
	return r.ProgressRepo.Save(ctx, p, expected)
}

func TestMarkCompleted_MergesOnConflict(t *testing.T) {
	st, err := store.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	other := progress.New("u1", "algebra")
	other.CompletedNodes = []string{"d"}
	other.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &racingRepo{ProgressRepo: st.ProgressRepo(), other: other}

	reg := NewRegistry()
	require.NoError(t, reg.Register(testCourse(t, "1.0.0")))
	m := metrics.NewCollector("test")
	svc := New(reg, repo, st.EventRepo(), WithMetrics(m))

	ctx := context.Background()
	p, err := svc.MarkCompleted(ctx, "u1", "algebra", "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "d"}, p.CompletedNodes)
	assert.Equal(t, []string{"b", "c"}, p.RecommendedNextNodes)

	rec, err := st.ProgressRepo().Get(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
	assert.ElementsMatch(t, []string{"a", "d"}, rec.Progress.CompletedNodes)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreConflicts))
}

func TestMarkCompleted_MergesWithRemovedPath(t *testing.T) {
	st, err := store.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	other := progress.New("u1", "algebra")
	other.CompletedNodes = []string{"d"}
	other.CurrentPathID = "retired"
	other.PathProgress = &progress.PathProgress{PathID: "retired", CompletedNodes: []string{}, StartedAt: now, LastAccessedAt: now}
	other.UpdatedAt = now.Add(time.Hour)
	repo := &racingRepo{ProgressRepo: st.ProgressRepo(), other: other}

	reg := NewRegistry()
	require.NoError(t, reg.Register(testCourse(t, "1.0.0")))
	svc := New(reg, repo, st.EventRepo(), WithClock(func() time.Time { return now }))

	ctx := context.Background()
	p, err := svc.MarkCompleted(ctx, "u1", "algebra", "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "d"}, p.CompletedNodes)
	assert.Equal(t, "retired", p.CurrentPathID)
	assert.Equal(t, []string{"b", "c"}, p.RecommendedNextNodes)

	rec, err := st.ProgressRepo().Get(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "d"}, rec.Progress.CompletedNodes)

	sum, err := svc.Summarize(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.PathPercent)
	assert.Contains(t, sum.Diagnostics, recommend.Diagnostic{Kind: recommend.DiagIgnoredUnknownPath, ID: "retired"})
}

func TestMarkCompleted_ConcurrentSameLearner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	nodes := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	errs := make(chan error, len(nodes))
	for _, id := range nodes {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := f.svc.MarkCompleted(ctx, "u1", "algebra", id); err != nil {
				errs <- fmt.Errorf("%s: %w", id, err)
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	p, err := f.svc.GetProgress(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.ElementsMatch(t, nodes, p.CompletedNodes)
	assert.Empty(t, p.RecommendedNextNodes)
}

func TestApplyCourse_RefusesOlderVersion(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.ApplyCourse(testCourse(t, "1.1.0")))
	c, err := f.svc.Courses().Get("algebra")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", c.Version)

	err = f.svc.ApplyCourse(testCourse(t, "1.0.5"))
	assert.True(t, errors.Is(err, ErrStaleVersion))
	c, err = f.svc.Courses().Get("algebra")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", c.Version)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ContentReloads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ContentReloads.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CoursesLoaded))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	c := testCourse(t, "1.0.0")
	require.NoError(t, reg.Register(c))
	assert.Error(t, reg.Register(c))
	assert.Len(t, reg.List(), 1)

	_, err := reg.Get("missing")
	assert.True(t, errors.Is(err, graph.ErrNotFound))
}
