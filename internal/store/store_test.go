package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutAll(ctx, []Entry{{Key: "conversations", Value: `[]`}}))
	v, err := s.Get(ctx, "conversations")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, s.PutAll(ctx, []Entry{
		{Key: "conversations", Value: `[{"id":"a"}]`},
		{Key: "activeConversationId", Value: "a"},
		{Key: "appointments", Value: `[]`},
	}))

	v, err = s.Get(ctx, "conversations")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, v)

	v, err = s.Get(ctx, "activeConversationId")
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	// Unicode survives the round trip.
	require.NoError(t, s.PutAll(ctx, []Entry{{Key: "note", Value: "dizimde ağrı var ✅"}}))
	v, err = s.Get(ctx, "note")
	require.NoError(t, err)
	assert.Equal(t, "dizimde ağrı var ✅", v)
}

func TestMemory(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	exerciseStore(t, s)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewFile(path)
	defer s.Close()
	exerciseStore(t, s)

	_, err := os.Stat(path)
	require.NoError(t, err, "state file should exist after writes")

	// A second handle on the same path sees the persisted data.
	v, err := NewFile(path).Get(context.Background(), "activeConversationId")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestFile_CorruptFileIsReplacedOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewFile(path)
	_, err := s.Get(context.Background(), "conversations")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutAll(context.Background(), []Entry{{Key: "conversations", Value: "[]"}}))
	v, err := s.Get(context.Background(), "conversations")
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.PutAll(ctx, []Entry{{Key: "activeConversationId", Value: "0192"}}))
	require.NoError(t, s.Close())

	s, err = NewSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "activeConversationId")
	require.NoError(t, err)
	assert.Equal(t, "0192", v)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Options{Backend: BackendFile, Path: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(ctx, Options{Backend: BackendPostgres})
	require.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendRedis})
	require.Error(t, err)

	_, err = Open(ctx, Options{Backend: "etcd"})
	require.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	assert.Equal(t, filepath.Join(home, "test/path"), expandHome("~/test/path"))
	assert.Equal(t, "/absolute/path", expandHome("/absolute/path"))
}
