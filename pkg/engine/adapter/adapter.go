// Package adapter provides the "sled" engine choice behind engine.Engine:
// an in-process stand-in that satisfies the same contract a third-party
// embedded database adapter would, so the server and config-lock machinery
// always have a second backend to dispatch to.
package adapter

import (
	"sync"

	"github.com/dd0wney/kvs/pkg/engine"
)

// Store is the "sled" engine choice: a map-backed stand-in for whatever
// third-party embedded database a deployment wires in here.
type Store struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

var _ engine.Engine = (*Store)(nil)
var _ engine.Cloner = (*Store)(nil)

// Open returns a ready-to-use Store. The real adapter would open the
// third-party database at dir; this stand-in ignores dir beyond accepting
// it, since it keeps no on-disk state.
func Open(dir string) (*Store, error) {
	_ = dir
	return &Store{data: make(map[string]string)}, nil
}

// Set stores value for key, matching SledStore::set's insert-unconditionally
// semantics.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.ErrClosed
	}
	s.data[key] = value
	return nil
}

// Get returns the value for key, or found=false if absent.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, engine.ErrClosed
	}
	v, ok := s.data[key]
	return v, ok, nil
}

// Remove deletes key, returning engine.ErrNotFound if absent, matching
// SledStore::remove's existence check before delete.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.ErrClosed
	}
	if _, ok := s.data[key]; !ok {
		return &engine.Error{Op: "Remove", Key: key, Cause: engine.ErrNotFound}
	}
	delete(s.data, key)
	return nil
}

// Clone returns another handle over the same underlying map.
func (s *Store) Clone() engine.Engine {
	return s
}

// Close marks the store closed. The stand-in holds no file handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
