package statestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	_, ok, err := store.Get(ctx, "packrat", "lockfileObserved")
	require.NoError(t, err)
	require.False(t, ok, "missing key must not be an error")

	require.NoError(t, store.Put(ctx, "packrat", "lockfileObserved", "ab12cd34"))

	got, ok, err := store.Get(ctx, "packrat", "lockfileObserved")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ab12cd34", got)

	// Replacement, not merge.
	require.NoError(t, store.Put(ctx, "packrat", "lockfileObserved", "ef56ab78"))
	got, ok, err = store.Get(ctx, "packrat", "lockfileObserved")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ef56ab78", got)
}

func TestSQLiteStore_NamespacesAreIsolated(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "packrat", "k", "v1"))
	require.NoError(t, store.Put(ctx, "other", "k", "v2"))

	got, ok, err := store.Get(ctx, "packrat", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", got)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "packrat", "libraryResolved", "12345678"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, ok, err := reopened.Get(ctx, "packrat", "libraryResolved")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "12345678", got)
}

func TestMockStore_TracksCalls(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "ns", "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Put(ctx, "ns", "k", "v"))

	got, ok, err := store.Get(ctx, "ns", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", got)

	calls := store.Calls()
	require.Equal(t, 2, calls.Get)
	require.Equal(t, 1, calls.Put)
}
