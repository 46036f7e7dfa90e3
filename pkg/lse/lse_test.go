package lse

import (
	"fmt"
	"testing"

	"github.com/dd0wney/kvs/pkg/engine"
	"github.com/stretchr/testify/require"
)

func TestScenario1ReopenPreservesLatestValue(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "v1"))
	require.NoError(t, s.Set("k", "v2"))

	v, found, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v2", v)
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, found, err = s2.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v2", v)
}

func TestScenario2SetRemoveGetNotFoundThenRemoveFails(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Remove("k"))

	_, found, err := s.Get("k")
	require.NoError(t, err)
	require.False(t, found)

	err = s.Remove("k")
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestScenario3CompactionPreservesLiveKeysAndShrinksLog(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	const n = 4096
	for i := 0; i < n; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("key%d", i), "value"))
	}
	// Overwrite half the keys, so the log holds more records than live keys.
	for i := 0; i < n/2; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("key%d", i), "value"))
	}

	before := s.s.writer.Pos()
	require.NoError(t, s.Compact())
	require.Less(t, s.s.writer.Pos(), before)

	require.Len(t, s.s.index, n)
	for i := 0; i < n; i++ {
		v, found, err := s.Get(fmt.Sprintf("key%d", i))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "value", v)
	}
}

func TestGetMissingKeyIsNotFoundNotError(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get("absent")
	require.NoError(t, err)
	require.False(t, found)
}

func TestCloneSharesUnderlyingState(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	clone := s.Clone()
	require.NoError(t, clone.Set("k", "v"))

	v, found, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", v)
}

func TestIndexPointsAtSetRecordsOnly(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Remove("a"))

	s.s.indexMu.RLock()
	_, aPresent := s.s.index["a"]
	bOffset, bPresent := s.s.index["b"]
	s.s.indexMu.RUnlock()

	require.False(t, aPresent)
	require.True(t, bPresent)

	line, err := s.s.reader.ReadLineAt(bOffset)
	require.NoError(t, err)
	require.Contains(t, string(line), `"key":"b"`)
	require.Contains(t, string(line), `"cmd":"Set"`)
}
