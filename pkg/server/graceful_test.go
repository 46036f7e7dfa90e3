package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dd0wney/kvs/pkg/lse"
	"github.com/dd0wney/kvs/pkg/pool"
)

func TestGracefulServer_ShutdownDrainsPool(t *testing.T) {
	dir := t.TempDir()
	store, err := lse.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := pool.NewSharedQueue(2)
	srv := New(ln, store, p, nil)
	gs := NewGracefulServer(srv, p)

	go gs.Start()
	time.Sleep(20 * time.Millisecond)

	require.False(t, gs.IsShuttingDown())
	require.NoError(t, gs.Shutdown(time.Second))
	require.True(t, gs.IsShuttingDown())

	// The pool was closed as part of Shutdown and rejects new work.
	require.False(t, p.Submit(func() {}))

	// Shutdown is idempotent.
	require.NoError(t, gs.Shutdown(time.Second))
}
