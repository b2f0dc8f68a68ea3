package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intermap/internal/livechange"
	"intermap/internal/slogutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenPath(filepath.Join(t.TempDir(), "test.db"), slogutil.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResult(project string) *livechange.Result {
	return &livechange.Result{
		Project:  project,
		Baseline: "HEAD",
		Changes: []*livechange.ChangeRecord{{
			File:   "app.py",
			Status: livechange.StatusModified,
			Hunks:  []livechange.Hunk{{OldStart: 3, OldCount: 1, NewStart: 3, NewCount: 2}},
			SymbolsAffected: []livechange.Symbol{
				{Name: "top", Kind: "function", Line: 1},
			},
		}},
		TotalFiles:           1,
		TotalSymbolsAffected: 1,
	}
}

func TestSnapshotSaveAndGet(t *testing.T) {
	store := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	snap, err := store.Save(ctx, sampleResult("/proj"), livechange.ModeOptimized)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "/proj", snap.Project)
	assert.Equal(t, 1, snap.TotalFiles)

	got, err := store.Get(ctx, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, "app.py", got.Result.Changes[0].File)
	assert.Equal(t, "optimized", got.Mode)
}

func TestSnapshotGetUnknown(t *testing.T) {
	store := NewSnapshotStore(openTestDB(t))
	_, err := store.Get(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSnapshotListNewestFirst(t *testing.T) {
	store := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	first, err := store.Save(ctx, sampleResult("/proj"), livechange.ModeOptimized)
	require.NoError(t, err)
	second, err := store.Save(ctx, sampleResult("/proj"), livechange.ModeLegacy)
	require.NoError(t, err)
	_, err = store.Save(ctx, sampleResult("/other"), livechange.ModeOptimized)
	require.NoError(t, err)

	list, err := store.List(ctx, "/proj", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Nil(t, list[0].Result, "listings omit the payload")

	limited, err := store.List(ctx, "/proj", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSnapshotDeleteAndPrune(t *testing.T) {
	store := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		snap, err := store.Save(ctx, sampleResult("/proj"), livechange.ModeOptimized)
		require.NoError(t, err)
		ids = append(ids, snap.ID)
	}

	require.NoError(t, store.Delete(ctx, ids[0]))
	require.NoError(t, store.Delete(ctx, "unknown-id"))

	removed, err := store.Prune(ctx, "/proj", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := store.List(ctx, "/proj", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSnapshotExportImportRoundTrip(t *testing.T) {
	src := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	saved, err := src.Save(ctx, sampleResult("/proj"), livechange.ModeOptimized)
	require.NoError(t, err)
	_, err = src.Save(ctx, sampleResult("/other"), livechange.ModeLegacy)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Export(ctx, &buf, ""))

	dst := NewSnapshotStore(openTestDB(t))
	count, err := dst.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := dst.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "/proj", got.Project)
	assert.Equal(t, "app.py", got.Result.Changes[0].File)
}

func TestSnapshotExportFiltersProject(t *testing.T) {
	src := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	_, err := src.Save(ctx, sampleResult("/proj"), livechange.ModeOptimized)
	require.NoError(t, err)
	_, err = src.Save(ctx, sampleResult("/other"), livechange.ModeOptimized)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Export(ctx, &buf, "/proj"))

	dst := NewSnapshotStore(openTestDB(t))
	count, err := dst.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
