package server

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dd0wney/kvs/pkg/lse"
	"github.com/dd0wney/kvs/pkg/pool"
)

// send encodes req as one wire frame (4-byte big-endian total length
// including the prefix, then the JSON body), writes it, and returns the
// full response read to EOF.
func send(t *testing.T, addr string, req request) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(4+len(body)))
	_, err = conn.Write(lenBuf[:])
	require.NoError(t, err)
	_, err = conn.Write(body)
	require.NoError(t, err)

	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(resp)
}

// TestServer_SetGetAbsent is scenario 4: a framed Set request gets the
// literal success response, a subsequent Get of the same key returns the
// raw value, and a Get of an absent key returns the NO-such-key error text.
func TestServer_SetGetAbsent(t *testing.T) {
	dir := t.TempDir()
	store, err := lse.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := pool.NewSharedQueue(4)
	defer p.Close()

	srv := New(ln, store, p, nil)
	go srv.Serve()
	defer srv.Close()

	addr := ln.Addr().String()

	resp := send(t, addr, request{Cmd: cmdSet, Key: "k", Value: "v"})
	require.Equal(t, respSetOK, resp)

	resp = send(t, addr, request{Cmd: cmdGet, Key: "k"})
	require.Equal(t, "v", resp)

	resp = send(t, addr, request{Cmd: cmdGet, Key: "absent"})
	require.Equal(t, respNoKey, resp)
}

func TestServer_RemoveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := lse.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := pool.NewSharedQueue(2)
	defer p.Close()

	srv := New(ln, store, p, nil)
	go srv.Serve()
	defer srv.Close()

	addr := ln.Addr().String()

	send(t, addr, request{Cmd: cmdSet, Key: "k", Value: "v"})

	resp := send(t, addr, request{Cmd: cmdRemove, Key: "k"})
	require.Equal(t, respRemoveOK, resp)

	resp = send(t, addr, request{Cmd: cmdRemove, Key: "k"})
	require.Contains(t, resp, "ERROR")

	resp = send(t, addr, request{Cmd: cmdGet, Key: "k"})
	require.Equal(t, respNoKey, resp)
}

// TestServer_ManyConcurrentConnections exercises the work-stealing pool
// variant and checks that concurrent disjoint-key writes are all
// observable afterward.
func TestServer_ManyConcurrentConnections(t *testing.T) {
	dir := t.TempDir()
	store, err := lse.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := pool.NewWorkStealing(8)
	defer p.Close()

	srv := New(ln, store, p, nil)
	go srv.Serve()
	defer srv.Close()

	addr := ln.Addr().String()

	done := make(chan struct{})
	const n = 32
	for i := 0; i < n; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			key := fmt.Sprintf("k%d", i)
			send(t, addr, request{Cmd: cmdSet, Key: key, Value: "v"})
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < n; i++ {
		resp := send(t, addr, request{Cmd: cmdGet, Key: fmt.Sprintf("k%d", i)})
		require.Equal(t, "v", resp)
	}
}
