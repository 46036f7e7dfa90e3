package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ikey(userKey string, seq uint64) InternalKey {
	return InternalKey{UserKey: userKey, SequenceNum: seq}
}

func meta(num int64, smallest, largest string) *FileMetaData {
	return &FileMetaData{Num: num, Size: 1024, SmallestKey: ikey(smallest, 1), LargestKey: ikey(largest, 1)}
}

func TestFindFileBinarySearch(t *testing.T) {
	files := []*FileMetaData{meta(1, "a", "c"), meta(2, "d", "f"), meta(3, "g", "i")}

	require.Equal(t, 0, findFile(files, ikey("b", 1)))
	require.Equal(t, 1, findFile(files, ikey("e", 1)))
	require.Equal(t, 3, findFile(files, ikey("z", 1)))
}

func TestLogAndApplyMergesAndComputesScore(t *testing.T) {
	vs := NewVersionSet(t.TempDir(), DefaultMaxFileSize)

	edit := NewVersionEdit()
	for i := 0; i < int(kL0CompactionTrigger); i++ {
		edit.AddFile(0, meta(int64(i+1), "a", "b"))
	}
	require.NoError(t, vs.LogAndApply(edit))

	v := vs.Current()
	require.Len(t, v.Files[0], int(kL0CompactionTrigger))
	require.Equal(t, 0, v.CompactionLevel)
	require.InDelta(t, 1.0, v.CompactionScore, 0.001)
}

func TestLogAndApplyRemovesDeletedFiles(t *testing.T) {
	vs := NewVersionSet(t.TempDir(), DefaultMaxFileSize)

	edit := NewVersionEdit()
	edit.AddFile(1, meta(1, "a", "c"))
	edit.AddFile(1, meta(2, "d", "f"))
	require.NoError(t, vs.LogAndApply(edit))
	require.Len(t, vs.Current().Files[1], 2)

	edit2 := NewVersionEdit()
	edit2.RemoveFile(1, 1)
	require.NoError(t, vs.LogAndApply(edit2))
	require.Len(t, vs.Current().Files[1], 1)
	require.Equal(t, int64(2), vs.Current().Files[1][0].Num)
}

func TestOverlapInLevelZeroIsLinearScan(t *testing.T) {
	vs := NewVersionSet(t.TempDir(), DefaultMaxFileSize)
	edit := NewVersionEdit()
	edit.AddFile(0, meta(1, "m", "p"))
	require.NoError(t, vs.LogAndApply(edit))

	v := vs.Current()
	require.True(t, v.overlapInLevel(0, "n", "o"))
	require.False(t, v.overlapInLevel(0, "x", "z"))
}

func TestPickLevelForMemtableOutputStaysAtZeroOnOverlap(t *testing.T) {
	vs := NewVersionSet(t.TempDir(), DefaultMaxFileSize)
	edit := NewVersionEdit()
	edit.AddFile(1, meta(1, "m", "p"))
	require.NoError(t, vs.LogAndApply(edit))

	level := vs.Current().pickLevelForMemtableOutput("n", "o", DefaultMaxFileSize)
	require.Equal(t, 0, level)
}

func TestPickLevelForMemtableOutputSkipsAheadWhenClear(t *testing.T) {
	vs := NewVersionSet(t.TempDir(), DefaultMaxFileSize)
	level := vs.Current().pickLevelForMemtableOutput("a", "b", DefaultMaxFileSize)
	require.GreaterOrEqual(t, level, 1)
}
