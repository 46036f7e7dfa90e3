package lsm

import (
	"testing"

	"github.com/dd0wney/kvs/pkg/record"
	"github.com/stretchr/testify/require"
)

func TestInternalKeyOrderNewestFirst(t *testing.T) {
	older := InternalKey{UserKey: "k", SequenceNum: 1, Cmd: record.Set}
	newer := InternalKey{UserKey: "k", SequenceNum: 2, Cmd: record.Set}

	require.True(t, Less(newer, older))
	require.Equal(t, -1, Compare(newer, older))
}

func TestInternalKeyOrderByUserKeyFirst(t *testing.T) {
	a := InternalKey{UserKey: "a", SequenceNum: 100}
	b := InternalKey{UserKey: "b", SequenceNum: 1}

	require.True(t, Less(a, b))
}

func TestInternalKeyEncodeDecodeRoundTrip(t *testing.T) {
	k := InternalKey{UserKey: "hello", SequenceNum: 42, Cmd: record.Remove}
	encoded := k.Encode()

	got, err := DecodeInternalKey(encoded)
	require.NoError(t, err)
	require.Equal(t, k, got)
}

func TestEncodedKeysSortConsistentlyWithCompare(t *testing.T) {
	a := InternalKey{UserKey: "k", SequenceNum: 5, Cmd: record.Set}
	b := InternalKey{UserKey: "k", SequenceNum: 3, Cmd: record.Set}

	require.Equal(t, Compare(a, b), EncodeCompare(a.Encode(), b.Encode()))
}
