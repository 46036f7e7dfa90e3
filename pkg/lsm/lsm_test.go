package lsm

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSetGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultOptions(dir))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", "v1"))
	require.NoError(t, s.Set("k", "v2"))

	v, found, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v2", v)
}

func TestStoreRemoveThenGetIsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultOptions(dir))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Remove("k"))

	_, found, err := s.Get("k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestStoreRemoveAbsentKeyIsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultOptions(dir))
	require.NoError(t, err)
	defer s.Close()

	err = s.Remove("absent")
	require.Error(t, err)
}

func TestStoreReopenPreservesLatestValue(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions(dir)

	s1, err := Open(opts)
	require.NoError(t, err)
	require.NoError(t, s1.Set("k", "v1"))
	require.NoError(t, s1.Set("k", "v2"))
	require.NoError(t, s1.Close())

	s2, err := Open(opts)
	require.NoError(t, err)
	defer s2.Close()

	v, found, err := s2.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v2", v)
}

func TestMemtableFlushProducesLevelTable(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions(dir)
	opts.WriteBufferSize = 64 // force a flush quickly

	s, err := Open(opts)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Set(keyOf(i), "value"))
	}
	require.NoError(t, s.flushMemtable())

	v, found, err := s.Get(keyOf(0))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "value", v)
}

func keyOf(i int) string {
	return "key" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestWriteTableAndOpenTableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entries := []tableEntry{
		{key: InternalKey{UserKey: "a", SequenceNum: 2}, valuePos: 0, valueLen: 3},
		{key: InternalKey{UserKey: "b", SequenceNum: 1}, valuePos: 3, valueLen: 3},
	}
	for i := range entries {
		entries[i].encoded = entries[i].key.Encode()
	}

	path := filepath.Join(dir, "000001.dbt")
	meta, err := WriteTable(path, 1, entries)
	require.NoError(t, err)
	require.Equal(t, int64(1), meta.Num)

	table, err := OpenTable(path, 1)
	require.NoError(t, err)

	pos, size, found := table.Get(NewLookupKey("a"))
	require.True(t, found)
	require.Equal(t, int64(0), pos)
	require.Equal(t, 3, size)

	_, _, found = table.Get(NewLookupKey("zzz"))
	require.False(t, found)
}
