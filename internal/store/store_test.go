package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "interactions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record("sess-1", KindUtterance, "nebula open the garage"))
	require.NoError(t, s.Record("sess-1", KindCommand, "open the garage"))
	require.NoError(t, s.Record("sess-1", KindResult, "Command finished."))

	recent, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Newest first.
	assert.Equal(t, KindResult, recent[0].Kind)
	assert.Equal(t, KindCommand, recent[1].Kind)
	assert.Equal(t, KindUtterance, recent[2].Kind)
	assert.Equal(t, "sess-1", recent[0].SessionID)
	assert.False(t, recent[0].CreatedAt.IsZero())
}

func TestRecentHonorsLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record("sess-1", KindChatUser, "hello"))
	}

	recent, err := s.Recent(2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestRecentEmpty(t *testing.T) {
	s := openTestStore(t)

	recent, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "interactions.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record("sess-1", KindSpoken, "hello"))
}
