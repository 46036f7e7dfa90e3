package config

import (
	"errors"
	"testing"

	"github.com/dd0wney/kvs/pkg/engine"
	"github.com/stretchr/testify/require"
)

// TestEnsureEngine_FirstRunPersists covers scenario 5's setup half: opening
// a fresh directory with "kvs" records that choice.
func TestEnsureEngine_FirstRunPersists(t *testing.T) {
	dir := t.TempDir()

	got, err := EnsureEngine(dir, KVS)
	require.NoError(t, err)
	require.Equal(t, KVS, got)

	got, err = EnsureEngine(dir, KVS)
	require.NoError(t, err)
	require.Equal(t, KVS, got)
}

// TestEnsureEngine_MismatchFails is scenario 5: open(dir, "kvs"), close;
// open(dir, "sled") must fail with ErrEngineMismatch and leave dir
// untouched (the persisted file still says "kvs").
func TestEnsureEngine_MismatchFails(t *testing.T) {
	dir := t.TempDir()

	_, err := EnsureEngine(dir, KVS)
	require.NoError(t, err)

	_, err = EnsureEngine(dir, Sled)
	require.Error(t, err)
	require.True(t, errors.Is(err, engine.ErrEngineMismatch))

	// The directory's persisted choice is unchanged.
	got, err := EnsureEngine(dir, KVS)
	require.NoError(t, err)
	require.Equal(t, KVS, got)
}
