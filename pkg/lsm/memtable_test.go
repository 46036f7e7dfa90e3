package lsm

import (
	"testing"

	"github.com/dd0wney/kvs/pkg/record"
	"github.com/stretchr/testify/require"
)

func TestMemTableGetReturnsNewestVersion(t *testing.T) {
	mt := NewMemTable(1 << 20)
	mt.Insert(InternalKey{UserKey: "k", SequenceNum: 1, Cmd: record.Set}, 0, 2)
	mt.Insert(InternalKey{UserKey: "k", SequenceNum: 2, Cmd: record.Set}, 10, 2)

	found, vp, ok := mt.Get(NewLookupKey("k"))
	require.True(t, ok)
	require.Equal(t, uint64(2), found.SequenceNum)
	require.Equal(t, int64(10), vp.pos)
}

func TestMemTableGetMissingKey(t *testing.T) {
	mt := NewMemTable(1 << 20)
	_, _, ok := mt.Get(NewLookupKey("absent"))
	require.False(t, ok)
}

func TestMemTableIteratorIsSorted(t *testing.T) {
	mt := NewMemTable(1 << 20)
	mt.Insert(InternalKey{UserKey: "b", SequenceNum: 1}, 0, 1)
	mt.Insert(InternalKey{UserKey: "a", SequenceNum: 1}, 1, 1)
	mt.Insert(InternalKey{UserKey: "a", SequenceNum: 2}, 2, 1)

	keys := mt.Iterator()
	require.Len(t, keys, 3)
	for i := 1; i < len(keys); i++ {
		require.True(t, Less(keys[i-1], keys[i]) || keys[i-1] == keys[i])
	}
	require.Equal(t, "a", keys[0].UserKey)
	require.Equal(t, uint64(2), keys[0].SequenceNum)
}

func TestMemTableIsFull(t *testing.T) {
	mt := NewMemTable(10)
	require.False(t, mt.IsFull())
	mt.Insert(InternalKey{UserKey: "longkeyname", SequenceNum: 1}, 0, 1)
	require.True(t, mt.IsFull())
}
