package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/reachgraph/internal/index"
)

func setupTestBadgerBackend(t *testing.T) (*BadgerBackend, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "badger")

	backend := NewBadgerBackend()
	require.NoError(t, backend.Initialize(dbPath, false))
	t.Cleanup(func() { _ = backend.Close() })

	return backend, dbPath
}

func TestBadgerBackend_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		backend := NewBadgerBackend()
		err := backend.Initialize(filepath.Join(t.TempDir(), "badger"), false)

		assert.NoError(t, err)
		assert.NotNil(t, backend.db)
		assert.True(t, backend.initialized)

		backend.Close()
	})

	t.Run("InvalidPath", func(t *testing.T) {
		t.Parallel()
		backend := NewBadgerBackend()
		err := backend.Initialize("/nonexistent/path/that/does/not/exist", false)

		assert.Error(t, err)
	})

	t.Run("NotInitialized", func(t *testing.T) {
		t.Parallel()
		backend := NewBadgerBackend()
		assert.Error(t, backend.SaveSnapshot(context.Background(), testSnapshot()))
		_, err := backend.LoadSnapshot(context.Background())
		assert.Error(t, err)
	})
}

func TestBadgerBackend_Snapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		backend, _ := setupTestBadgerBackend(t)
		_, err := backend.LoadSnapshot(ctx)
		assert.ErrorIs(t, err, ErrNoSnapshot)
		assert.Zero(t, backend.ClassCount())
	})

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()
		backend, _ := setupTestBadgerBackend(t)
		snap := testSnapshot()
		require.NoError(t, backend.SaveSnapshot(ctx, snap))
		assert.Equal(t, 3, backend.ClassCount())

		loaded, err := backend.LoadSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap.Module, loaded.Module)
		assert.True(t, snap.IndexedAt.Equal(loaded.IndexedAt))
		assert.ElementsMatch(t, snap.Classes, loaded.Classes)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		t.Parallel()
		backend, _ := setupTestBadgerBackend(t)
		require.NoError(t, backend.SaveSnapshot(ctx, testSnapshot()))

		smaller := testSnapshot()
		smaller.Classes = smaller.Classes[:1]
		require.NoError(t, backend.SaveSnapshot(ctx, smaller))
		assert.Equal(t, 1, backend.ClassCount())

		loaded, err := backend.LoadSnapshot(ctx)
		require.NoError(t, err)
		require.Len(t, loaded.Classes, 1)
		assert.Equal(t, "Order", loaded.Classes[0].Name)
	})

	t.Run("Reopen", func(t *testing.T) {
		t.Parallel()
		backend, path := setupTestBadgerBackend(t)
		require.NoError(t, backend.SaveSnapshot(ctx, testSnapshot()))
		require.NoError(t, backend.Close())

		reopened := NewBadgerBackend()
		require.NoError(t, reopened.Initialize(path, true))
		defer reopened.Close()

		assert.Equal(t, 3, reopened.ClassCount())
		assert.Error(t, reopened.SaveSnapshot(ctx, testSnapshot()), "read-only store rejects writes")
	})

	t.Run("Cancelled", func(t *testing.T) {
		t.Parallel()
		backend, _ := setupTestBadgerBackend(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, backend.SaveSnapshot(cctx, testSnapshot()), context.Canceled)
	})
}

func TestLoadSource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, _ := setupTestBadgerBackend(t)
	require.NoError(t, backend.SaveSnapshot(ctx, testSnapshot()))

	src, err := LoadSource(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, "example.com/shop", src.Name())
	assert.Equal(t, 2026, src.IndexedAt().Year())

	project, err := src.List(ctx, index.ScopeProject)
	require.NoError(t, err)
	assert.Len(t, project, 2)

	all, err := src.List(ctx, index.ScopeAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	order, err := src.Lookup(ctx, index.ClassRef{Path: "example.com/shop", Name: "Order"})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Len(t, order.Methods, 1)
	assert.Equal(t, "Price()", order.Methods[0].Calls[0].Target.Signature)

	t.Run("NoSnapshot", func(t *testing.T) {
		t.Parallel()
		_, err := LoadSource(ctx, NewMemoryBackend())
		assert.ErrorIs(t, err, ErrNoSnapshot)
	})
}
