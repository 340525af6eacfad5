package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/progress"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestOpen_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pathwise.db")
	require.NoError(t, EnsureDir(path))

	s, err := Open(path)
	require.NoError(t, err)
	var mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	require.NoError(t, s.Close())

	// Reopening runs the migrations again.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func sampleProgress() progress.Progress {
	p := progress.New("u1", "sat-math")
	p.CompletedNodes = []string{"alg-linear-equations"}
	p.CurrentPathID = "sat-math-fast-track"
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p.PathProgress = &progress.PathProgress{
		PathID:           "sat-math-fast-track",
		CurrentNodeIndex: 1,
		CompletedNodes:   []string{"alg-linear-equations"},
		StartedAt:        at,
		LastAccessedAt:   at,
	}
	p.UpdatedAt = at
	return p
}

func TestProgressRepo_SaveAndGet(t *testing.T) {
	repo := openTestStore(t).ProgressRepo()
	ctx := context.Background()

	rec, err := repo.Get(ctx, "u1", "sat-math")
	require.NoError(t, err)
	assert.Nil(t, rec, "expected no record before the first save")

	p := sampleProgress()
	v, err := repo.Save(ctx, p, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	rec, err = repo.Get(ctx, "u1", "sat-math")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, p.CompletedNodes, rec.Progress.CompletedNodes)
	assert.Equal(t, "sat-math-fast-track", rec.Progress.CurrentPathID)
	require.NotNil(t, rec.Progress.PathProgress)
	assert.Equal(t, 1, rec.Progress.PathProgress.CurrentNodeIndex)
	assert.True(t, rec.Progress.PathProgress.StartedAt.Equal(p.PathProgress.StartedAt))
}

func TestProgressRepo_VersionConflict(t *testing.T) {
	repo := openTestStore(t).ProgressRepo()
	ctx := context.Background()
	p := sampleProgress()

	v1, err := repo.Save(ctx, p, 0)
	require.NoError(t, err)

	// A second writer that also thinks the record is new.
	_, err = repo.Save(ctx, p, 0)
	assert.True(t, errors.Is(err, ErrConflict))

	p.CompletedNodes = append(p.CompletedNodes, "alg-systems")
	v2, err := repo.Save(ctx, p, v1)
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)

	// Stale version.
	_, err = repo.Save(ctx, p, v1)
	assert.True(t, errors.Is(err, ErrConflict))

	rec, err := repo.Get(ctx, "u1", "sat-math")
	require.NoError(t, err)
	assert.Equal(t, v2, rec.Version)
	assert.Equal(t, []string{"alg-linear-equations", "alg-systems"}, rec.Progress.CompletedNodes)
}

func TestProgressRepo_DeleteAndList(t *testing.T) {
	repo := openTestStore(t).ProgressRepo()
	ctx := context.Background()

	a := progress.New("u1", "sat-math")
	b := progress.New("u1", "act-science")
	c := progress.New("u2", "sat-math")
	for _, p := range []progress.Progress{a, b, c} {
		_, err := repo.Save(ctx, p, 0)
		require.NoError(t, err)
	}

	recs, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "act-science", recs[0].Progress.CourseID)
	assert.Equal(t, "sat-math", recs[1].Progress.CourseID)

	require.NoError(t, repo.Delete(ctx, "u1", "sat-math"))
	require.NoError(t, repo.Delete(ctx, "u1", "sat-math"))
	rec, err := repo.Get(ctx, "u1", "sat-math")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// A deleted record starts over at version 0.
	_, err = repo.Save(ctx, a, 0)
	require.NoError(t, err)
}

func TestEventRepo_Completions(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"n1", "n2", "n3"} {
		ev, err := repo.AppendCompletion(ctx, "u1", "sat-math", progress.StateTransition{
			NodeID: id,
			PathID: "p",
			From:   graph.StateAvailable,
			To:     graph.StateCompleted,
			At:     at.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), ev.Sequence)
		assert.NotEmpty(t, ev.ID)
	}
	_, err := repo.AppendCompletion(ctx, "u2", "sat-math", progress.StateTransition{
		NodeID: "n1", From: graph.StateLocked, To: graph.StateCompleted, At: at,
	})
	require.NoError(t, err)

	evs, err := repo.Completions(ctx, "u1", "sat-math", QueryOpts{})
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, "n1", evs[0].NodeID)
	assert.Equal(t, graph.StateAvailable, evs[0].From)
	assert.True(t, evs[2].At.Equal(at.Add(2*time.Minute)))

	evs, err = repo.Completions(ctx, "u1", "sat-math", QueryOpts{After: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "n2", evs[0].NodeID)

	evs, err = repo.Completions(ctx, "u2", "sat-math", QueryOpts{})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(4), evs[0].Sequence)
	assert.Equal(t, graph.StateLocked, evs[0].From)
}

func TestDefaultDBPath(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		want := filepath.Join(t.TempDir(), "x", "custom.db")
		t.Setenv("PATHWISE_DB", want)
		got, err := DefaultDBPath()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		_, err = os.Stat(filepath.Dir(want))
		assert.NoError(t, err)
	})

	t.Run("xdg data home", func(t *testing.T) {
		dataHome := t.TempDir()
		t.Setenv("PATHWISE_DB", "")
		t.Setenv("XDG_DATA_HOME", dataHome)
		got, err := DefaultDBPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dataHome, "pathwise", "pathwise.db"), got)
	})
}
