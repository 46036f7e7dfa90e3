// Package lse implements the log-structured engine, the built-in default
// storage engine. An append-only log of newline-delimited records backs an
// in-memory key -> offset index; online compaction rewrites the log to drop
// superseded records without ever blocking readers for longer than an O(1)
// rename-plus-map-swap.
package lse

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dd0wney/kvs/pkg/engine"
	"github.com/dd0wney/kvs/pkg/logio"
	"github.com/dd0wney/kvs/pkg/record"
)

// logFileName and compactionTempName are the only two files the engine's
// directory ever holds.
const (
	logFileName        = "log"
	compactionTempName = "log.temp"
)

// state is the shared, mutable core of an engine handle: one writer, one
// reader, and the in-memory index, each behind its own lock so reads and
// writes to different resources never contend. Every Store clone points at
// the same *state.
type state struct {
	dir string

	writerMu sync.Mutex // serializes: append, capture offset, flush, index update
	writer   *logio.Writer

	readerMu sync.Mutex // guards positioned reads
	reader   *logio.Reader

	indexMu sync.RWMutex // guards the key -> offset map
	index   map[string]int64

	closed atomicBool
}

// Store is a clonable shared handle over the log-structured engine. Clone
// returns another Store pointing at the same *state, never a copy of the
// index or log.
type Store struct {
	s *state
}

var _ engine.Engine = (*Store)(nil)
var _ engine.Cloner = (*Store)(nil)

// Open rebuilds the in-memory index by replaying dir/log from offset 0:
// Set inserts the record's start offset, Remove deletes the mapping. A
// malformed frame anywhere in the log fails the whole Open with
// engine.ErrCorrupt, since the index cannot be trusted if replay can't
// finish.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("lse: mkdir %s: %w", dir, err)
	}

	logPath := filepath.Join(dir, logFileName)
	wf, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("lse: open log: %w", err)
	}
	rf, err := os.Open(logPath)
	if err != nil {
		wf.Close()
		return nil, fmt.Errorf("lse: open log for read: %w", err)
	}

	index, size, err := replayLog(rf)
	if err != nil {
		wf.Close()
		rf.Close()
		return nil, err
	}

	st := &state{
		dir:    dir,
		writer: logio.NewWriter(wf, size),
		reader: logio.NewReader(rf),
		index:  index,
	}
	return &Store{s: st}, nil
}

// replayLog rebuilds the index from a freshly-opened read handle positioned
// at the start of the file, returning the index and the log's current size
// (the offset the writer should resume appending at).
func replayLog(f *os.File) (map[string]int64, int64, error) {
	index := make(map[string]int64)

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	br := newLineReader(f)
	for {
		line, start, ok, err := br.next()
		if err != nil {
			return nil, 0, fmt.Errorf("lse: replay: %w", err)
		}
		if !ok {
			break
		}
		rec, err := record.Unmarshal(line)
		if err != nil {
			return nil, 0, fmt.Errorf("lse: replay: %w", err)
		}
		switch rec.Cmd {
		case record.Set:
			index[rec.Key] = start
		case record.Remove:
			delete(index, rec.Key)
		}
	}

	return index, info.Size(), nil
}

// Set encodes {Set, key, value}, appends it to the log, and on a
// successful flush atomically replaces any existing mapping for key with
// the new record's start offset.
func (s *Store) Set(key, value string) error {
	st := s.s
	if st.closed.get() {
		return engine.ErrClosed
	}

	line, err := record.Marshal(record.Record{Cmd: record.Set, Key: key, Value: value})
	if err != nil {
		return &engine.Error{Op: "Set", Key: key, Cause: err}
	}

	st.writerMu.Lock()
	defer st.writerMu.Unlock()
	offset, err := st.writer.Append(line)
	if err != nil {
		return &engine.Error{Op: "Set", Key: key, Cause: err}
	}

	st.indexMu.Lock()
	st.index[key] = offset
	st.indexMu.Unlock()

	return nil
}

// Get looks up key in the index; if present, it positioned-reads the
// record at that offset. A Remove record found at the indexed offset is
// reported as not-found rather than surfaced as an inconsistency.
func (s *Store) Get(key string) (string, bool, error) {
	st := s.s
	if st.closed.get() {
		return "", false, engine.ErrClosed
	}

	st.indexMu.RLock()
	offset, ok := st.index[key]
	st.indexMu.RUnlock()
	if !ok {
		return "", false, nil
	}

	st.readerMu.Lock()
	line, err := st.reader.ReadLineAt(offset)
	st.readerMu.Unlock()
	if err != nil {
		return "", false, &engine.Error{Op: "Get", Key: key, Cause: engine.ErrCorrupt}
	}

	rec, err := record.Unmarshal(line)
	if err != nil {
		return "", false, &engine.Error{Op: "Get", Key: key, Cause: err}
	}
	if rec.Cmd != record.Set {
		return "", false, nil
	}
	return rec.Value, true, nil
}

// Remove fails with engine.ErrNotFound if key is absent. Otherwise it
// appends a Remove record and deletes the index entry.
func (s *Store) Remove(key string) error {
	st := s.s
	if st.closed.get() {
		return engine.ErrClosed
	}

	st.indexMu.RLock()
	_, ok := st.index[key]
	st.indexMu.RUnlock()
	if !ok {
		return &engine.Error{Op: "Remove", Key: key, Cause: engine.ErrNotFound}
	}

	line, err := record.Marshal(record.Record{Cmd: record.Remove, Key: key})
	if err != nil {
		return &engine.Error{Op: "Remove", Key: key, Cause: err}
	}

	st.writerMu.Lock()
	defer st.writerMu.Unlock()
	_, err = st.writer.Append(line)
	if err != nil {
		return &engine.Error{Op: "Remove", Key: key, Cause: err}
	}

	st.indexMu.Lock()
	delete(st.index, key)
	st.indexMu.Unlock()

	return nil
}

// Clone returns another handle over the same underlying state: log writer,
// reader, and index are all shared, never copied.
func (s *Store) Clone() engine.Engine {
	return &Store{s: s.s}
}

// Close marks the engine closed and releases the shared file handles. The
// handles are shared by every clone, so the first Close wins and later
// calls are no-ops.
func (s *Store) Close() error {
	st := s.s
	if !st.closed.setTrue() {
		return nil
	}
	st.writerMu.Lock()
	werr := st.writer.Close()
	st.writerMu.Unlock()

	st.readerMu.Lock()
	rerr := st.reader.Close()
	st.readerMu.Unlock()

	if werr != nil {
		return werr
	}
	return rerr
}
