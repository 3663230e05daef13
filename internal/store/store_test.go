package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Ping(ctx))

	saved, err := s.Save(ctx, "prod", "toml", []byte("[server]\ndebug = true\n"))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestLatestAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.Save(ctx, "prod", "toml", []byte("v1"))
	require.NoError(t, err)
	_, err = s.Save(ctx, "staging", "yaml", []byte("s1"))
	require.NoError(t, err)
	second, err := s.Save(ctx, "prod", "toml", []byte("v2"))
	require.NoError(t, err)

	latest, err := s.Latest(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, []byte("v2"), latest.Data)

	list, err := s.List(ctx, "prod")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Nil(t, list[0].Data)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Latest(ctx, "none")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, 42), ErrNotFound)

	list, err := s.List(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	snap, err := s.Save(ctx, "prod", "yaml", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, snap.ID))
	_, err = s.Get(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Save(ctx, "prod", "toml", []byte("kept"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	latest, err := s.Latest(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), latest.Data)
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(ctx, "a", "toml", []byte("1"))
	require.NoError(t, err)
	list, err := s.List(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
