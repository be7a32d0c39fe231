package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract exercises the Store behaviors every backend must share.
func storeContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "conversations", `[{"id":"c1"}]`))
	v, err := s.Get(ctx, "conversations")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"c1"}]`, v)

	// overwrite
	require.NoError(t, s.Set(ctx, "conversations", "[]"))
	v, err = s.Get(ctx, "conversations")
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	require.NoError(t, s.Delete(ctx, "conversations"))
	_, err = s.Get(ctx, "conversations")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	assert.NoError(t, s.Delete(ctx, "never-set"))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "chalkboard.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	storeContract(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chalkboard.db")

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "teachers", `[{"id":"t1"}]`))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	v, err := s2.Get(ctx, "teachers")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"t1"}]`, v)
}
