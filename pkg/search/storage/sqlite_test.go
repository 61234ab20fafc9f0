//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewStore("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))
	t.Cleanup(func() { _ = Close(store) })

	s := snapshot(t, "run-1", time.Unix(100, 0).UTC())
	require.NoError(t, store.SaveArchive(ctx, s))
	s.Covered = append(s.Covered, "b2")
	s.Uncovered = nil
	require.NoError(t, store.SaveArchive(ctx, s))

	got, ok, err := store.GetArchive(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("stored snapshot differs (-want,+got):\n%s", diff)
	}

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Covered)
	assert.Equal(t, 3, runs[0].Objectives)
	assert.True(t, runs[0].CreatedAt.Equal(s.Run.CreatedAt))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	first := NewSQLiteStore(path)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.SaveArchive(ctx, snapshot(t, "run-1", time.Unix(100, 0).UTC())))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(path)
	require.NoError(t, second.Init(ctx))
	t.Cleanup(func() { _ = second.Close() })

	_, ok, err := second.GetArchive(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	_, err := store.ListRuns(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}
