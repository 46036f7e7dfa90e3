package lsm

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dd0wney/kvs/pkg/engine"
	"github.com/dd0wney/kvs/pkg/logio"
	"github.com/dd0wney/kvs/pkg/metrics"
	"github.com/dd0wney/kvs/pkg/record"
)

// Store is the LSM engine's shared handle. It fans writes out to a
// memtable plus two append-only logs (an operation log recording
// InternalKey -> value-log pointer, and a value log holding the bytes
// themselves), and fans reads through memtable -> immutable memtable ->
// the current version's level tables, in that order. The memtable swap is
// RWMutex-guarded; flush and compaction run on background workers fed over
// channels.
type Store struct {
	mu sync.RWMutex

	dir  string
	opts Options

	mem *MemTable
	imm *MemTable

	vset *VersionSet

	opLog    *opLogWriter
	valueLog *logio.Writer
	valueRd  *logio.Reader

	nextSeq uint64

	compacting    bool
	compactingCV  *sync.Cond
	flushTrigger  chan struct{}
	compactTrigger chan struct{}
	stop          chan struct{}
	wg            sync.WaitGroup

	closed bool
	Stats  Stats
}

// Open creates dir if needed, replays its operation log (InternalKey ->
// value-log-pointer frames) to rebuild the memtable, and starts the
// background flush/compaction workers.
func Open(opts Options) (*Store, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("lsm: mkdir %s: %w", opts.Dir, err)
	}

	opLogFile, err := os.OpenFile(filepath.Join(opts.Dir, "oplog"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("lsm: open oplog: %w", err)
	}
	valueLogFile, err := os.OpenFile(filepath.Join(opts.Dir, "vlog"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		opLogFile.Close()
		return nil, fmt.Errorf("lsm: open vlog: %w", err)
	}
	valueReadFile, err := os.Open(filepath.Join(opts.Dir, "vlog"))
	if err != nil {
		opLogFile.Close()
		valueLogFile.Close()
		return nil, fmt.Errorf("lsm: open vlog for read: %w", err)
	}

	s := &Store{
		dir:            opts.Dir,
		opts:           opts,
		mem:            NewMemTable(opts.WriteBufferSize),
		vset:           NewVersionSet(opts.Dir, opts.MaxFileSize),
		valueRd:        logio.NewReader(valueReadFile),
		flushTrigger:   make(chan struct{}, 1),
		compactTrigger: make(chan struct{}, 1),
		stop:           make(chan struct{}),
	}
	s.compactingCV = sync.NewCond(&s.mu)

	vlogInfo, err := valueLogFile.Stat()
	if err != nil {
		return nil, err
	}
	s.valueLog = logio.NewWriter(valueLogFile, vlogInfo.Size())

	opLogInfo, err := opLogFile.Stat()
	if err != nil {
		return nil, err
	}
	s.opLog = newOpLogWriter(opLogFile, opLogInfo.Size())

	var maxSeq uint64
	replayErr := replayOpLog(opLogFile, func(ik InternalKey, valuePos int64, valueLen int) error {
		s.mem.Insert(ik, valuePos, valueLen)
		if ik.SequenceNum > maxSeq {
			maxSeq = ik.SequenceNum
		}
		return nil
	})
	if replayErr != nil {
		return nil, replayErr
	}
	s.nextSeq = maxSeq + 1
	s.vset.SetLastSequence(maxSeq)

	s.wg.Add(1)
	go s.backgroundWorker()

	return s, nil
}

// Set appends value to the value log, records the InternalKey -> pointer
// frame in the operation log, and inserts into the active memtable,
// triggering a flush once the buffer threshold is crossed.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.ErrClosed
	}

	seq := s.nextSeq
	s.nextSeq++
	valuePos, err := s.valueLog.Append([]byte(value))
	if err != nil {
		return fmt.Errorf("lsm: set %q: %w", key, err)
	}
	ik := InternalKey{UserKey: key, SequenceNum: seq, Cmd: record.Set}
	if err := s.opLog.append(ik, valuePos, len(value)); err != nil {
		return fmt.Errorf("lsm: set %q: %w", key, err)
	}
	s.mem.Insert(ik, valuePos, len(value))
	s.vset.SetLastSequence(seq)
	s.Stats.Writes.Add(1)

	s.maybeTriggerFlushLocked()
	return nil
}

// Get returns the newest visible value for key, falling through memtable,
// immutable memtable, then the current version's level tables.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, engine.ErrClosed
	}
	s.Stats.Reads.Add(1)

	lookup := NewLookupKey(key)

	if _, vp, ok := s.mem.Get(lookup); ok {
		return s.resolveTombstone(vp.pos, vp.len)
	}
	if s.imm != nil {
		if _, vp, ok := s.imm.Get(lookup); ok {
			return s.resolveTombstone(vp.pos, vp.len)
		}
	}

	pos, size, found, err := s.vset.Current().Get(lookup)
	if err != nil {
		return "", false, fmt.Errorf("lsm: get %q: %w", key, err)
	}
	if !found {
		return "", false, nil
	}
	return s.resolveTombstone(pos, size)
}

// resolveTombstone reads the value at pos/size from the value log, or
// reports not-found for a Remove tombstone (pos == -1).
func (s *Store) resolveTombstone(pos int64, size int) (string, bool, error) {
	if pos < 0 {
		return "", false, nil
	}
	buf := make([]byte, size)
	n, err := s.valueRd.ReadExactAt(pos, buf)
	if err != nil {
		return "", false, fmt.Errorf("lsm: read value log at %d: %w", pos, err)
	}
	return string(buf[:n]), true, nil
}

// existsLocked reports whether key currently resolves to a live (non-
// tombstone) value. Caller must hold s.mu.
func (s *Store) existsLocked(key string) bool {
	lookup := NewLookupKey(key)
	if _, vp, ok := s.mem.Get(lookup); ok {
		return vp.pos >= 0
	}
	if s.imm != nil {
		if _, vp, ok := s.imm.Get(lookup); ok {
			return vp.pos >= 0
		}
	}
	pos, _, found, err := s.vset.Current().Get(lookup)
	if err != nil || !found {
		return false
	}
	return pos >= 0
}

// Remove appends a tombstone for key if it is currently visible, returning
// engine.ErrNotFound otherwise.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.ErrClosed
	}

	if !s.existsLocked(key) {
		return engine.ErrNotFound
	}

	seq := s.nextSeq
	s.nextSeq++
	ik := InternalKey{UserKey: key, SequenceNum: seq, Cmd: record.Remove}
	if err := s.opLog.append(ik, -1, 0); err != nil {
		return fmt.Errorf("lsm: remove %q: %w", key, err)
	}
	s.mem.Insert(ik, -1, 0)
	s.vset.SetLastSequence(seq)
	return nil
}

// Close flushes any buffered data, stops the background worker, and closes
// the underlying logs.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()

	var firstErr error
	if err := s.opLog.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.valueLog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.valueRd.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Clone returns another handle sharing this store's state, satisfying
// engine.Cloner the way the LSE engine does.
func (s *Store) Clone() engine.Engine { return s }

func (s *Store) maybeTriggerFlushLocked() {
	if !s.mem.IsFull() {
		return
	}
	select {
	case s.flushTrigger <- struct{}{}:
	default:
	}
}

func (s *Store) backgroundWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-s.flushTrigger:
			if err := s.flushMemtable(); err != nil {
				log.Printf("lsm: flush failed: %v", err)
			}
			select {
			case s.compactTrigger <- struct{}{}:
			default:
			}
		case <-s.compactTrigger:
			if err := s.runOneCompaction(); err != nil {
				log.Printf("lsm: compaction failed: %v", err)
			}
		}
	}
}

// flushMemtable seals the active memtable and writes its contents to a new
// level table, choosing the output level via pickLevelForMemtableOutput so
// data that does not overlap existing levels can skip L0 (see version.go).
func (s *Store) flushMemtable() error {
	s.mu.Lock()
	if s.mem.Size() == 0 {
		s.mu.Unlock()
		return nil
	}
	s.imm = s.mem
	s.mem = NewMemTable(s.opts.WriteBufferSize)
	imm := s.imm
	s.mu.Unlock()

	keys := imm.Iterator()
	entries := make([]tableEntry, 0, len(keys))
	for _, k := range keys {
		vp := imm.Lookup(k)
		entries = append(entries, tableEntry{key: k, encoded: k.Encode(), valuePos: vp.pos, valueLen: vp.len})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	level := s.vset.Current().pickLevelForMemtableOutput(entries[0].key.UserKey, entries[len(entries)-1].key.UserKey, s.opts.MaxFileSize)

	num := s.vset.NewFileNumber()
	meta, err := WriteTable(tablePath(s.dir, num), num, entries)
	if err != nil {
		return err
	}

	edit := NewVersionEdit()
	edit.AddFile(level, meta)
	if err := s.vset.LogAndApply(edit); err != nil {
		return err
	}

	s.imm = nil
	s.Stats.Flushes.Add(1)
	metrics.DefaultRegistry().RecordFlush()
	s.refreshStorageMetricsLocked()
	return nil
}

// refreshStorageMetricsLocked pushes the current store-wide counters into
// the shared metrics registry. Callers must hold s.mu.
func (s *Store) refreshStorageMetricsLocked() {
	cur := s.vset.Current()
	total := 0
	for _, level := range cur.Files {
		total += len(level)
	}
	metrics.DefaultRegistry().SetStorageStats(0, 0, s.mem.Size(), total, len(cur.Files[0]))
}

// runOneCompaction performs at most one compaction pass. A flag plus
// condition variable enforce that no two compactions ever run
// concurrently; late arrivals wait instead of starting a second pass.
func (s *Store) runOneCompaction() error {
	s.mu.Lock()
	for s.compacting {
		s.compactingCV.Wait()
	}
	s.compacting = true
	c := s.vset.PickCompaction()
	if c == nil {
		s.compacting = false
		s.compactingCV.Broadcast()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.compacting = false
		s.compactingCV.Broadcast()
		s.mu.Unlock()
	}()

	start := time.Now()

	if c.IsTrivialMove() {
		meta := c.inputs[0][0]
		edit := NewVersionEdit()
		edit.AddFile(c.Level+1, meta)
		edit.RemoveFile(c.Level, meta.Num)
		s.mu.Lock()
		err := s.vset.LogAndApply(edit)
		s.refreshStorageMetricsLocked()
		s.mu.Unlock()
		if err == nil {
			s.Stats.Compactions.Add(1)
			metrics.DefaultRegistry().RecordCompaction("trivial_move", time.Since(start))
		}
		return err
	}

	if err := c.Run(s.vset, s.dir); err != nil {
		return err
	}

	s.mu.Lock()
	err := s.vset.LogAndApply(c.Edit)
	if err == nil {
		deleted := make(map[int64]bool)
		for level, nums := range c.Edit.DeletedFiles {
			_ = level
			for num := range nums {
				deleted[num] = true
			}
		}
		s.vset.DeleteObsoleteFiles(deleted)
	}
	s.refreshStorageMetricsLocked()
	s.mu.Unlock()

	if err == nil {
		s.Stats.Compactions.Add(1)
		metrics.DefaultRegistry().RecordCompaction("leveled", time.Since(start))
	}
	return err
}
