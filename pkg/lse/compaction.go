package lse

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dd0wney/kvs/pkg/engine"
	"github.com/dd0wney/kvs/pkg/logio"
	"github.com/dd0wney/kvs/pkg/metrics"
	"github.com/dd0wney/kvs/pkg/record"
)

// Compact rewrites the log, keeping only the live Set record for each
// currently-indexed key, and atomically replaces the log and the index
// with the result.
//
// The writer mutex is held for the whole operation, not just around the
// rename and map swap. A narrower critical section loses any Set that
// lands between the copy snapshot and the rename: that write would append
// to the soon-to-be-orphaned old log file and then vanish when the stale
// rebuilt index overwrites it. Reads are unaffected; Get never touches
// writerMu.
func (s *Store) Compact() error {
	st := s.s
	if st.closed.get() {
		return engine.ErrClosed
	}

	start := time.Now()
	defer func() {
		metrics.DefaultRegistry().RecordCompaction("lse", time.Since(start))
	}()

	st.writerMu.Lock()
	defer st.writerMu.Unlock()

	st.indexMu.RLock()
	snapshot := make(map[string]int64, len(st.index))
	for k, v := range st.index {
		snapshot[k] = v
	}
	st.indexMu.RUnlock()

	tempPath := filepath.Join(st.dir, compactionTempName)
	tf, err := os.OpenFile(tempPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &engine.Error{Op: "Compact", Cause: err}
	}
	tw := logio.NewWriter(tf, 0)

	newIndex := make(map[string]int64, len(snapshot))
	for key, offset := range snapshot {
		st.readerMu.Lock()
		line, err := st.reader.ReadLineAt(offset)
		st.readerMu.Unlock()
		if err != nil {
			tf.Close()
			os.Remove(tempPath)
			return &engine.Error{Op: "Compact", Key: key, Cause: engine.ErrCorrupt}
		}

		rec, err := record.Unmarshal(line)
		if err != nil {
			tf.Close()
			os.Remove(tempPath)
			return &engine.Error{Op: "Compact", Key: key, Cause: err}
		}
		if rec.Cmd != record.Set {
			continue
		}

		encoded, err := record.Marshal(rec)
		if err != nil {
			tf.Close()
			os.Remove(tempPath)
			return &engine.Error{Op: "Compact", Key: key, Cause: err}
		}
		newOffset, err := tw.Append(encoded)
		if err != nil {
			tf.Close()
			os.Remove(tempPath)
			return &engine.Error{Op: "Compact", Key: key, Cause: err}
		}
		newIndex[key] = newOffset
	}

	if err := tw.Sync(); err != nil {
		tf.Close()
		os.Remove(tempPath)
		return &engine.Error{Op: "Compact", Cause: err}
	}
	if err := tw.Close(); err != nil {
		os.Remove(tempPath)
		return &engine.Error{Op: "Compact", Cause: err}
	}

	logPath := filepath.Join(st.dir, logFileName)
	if err := os.Rename(tempPath, logPath); err != nil {
		tf.Close()
		os.Remove(tempPath)
		return &engine.Error{Op: "Compact", Cause: fmt.Errorf("rename: %w", err)}
	}

	newWf, err := os.OpenFile(logPath, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return &engine.Error{Op: "Compact", Cause: err}
	}
	newRf, err := os.Open(logPath)
	if err != nil {
		newWf.Close()
		return &engine.Error{Op: "Compact", Cause: err}
	}
	info, err := newWf.Stat()
	if err != nil {
		newWf.Close()
		newRf.Close()
		return &engine.Error{Op: "Compact", Cause: err}
	}

	oldWriter, oldReader := st.writer, st.reader

	st.writer = logio.NewWriter(newWf, info.Size())
	st.readerMu.Lock()
	st.reader = logio.NewReader(newRf)
	st.readerMu.Unlock()

	st.indexMu.Lock()
	st.index = newIndex
	st.indexMu.Unlock()

	oldWriter.Close()
	oldReader.Close()

	metrics.DefaultRegistry().SetStorageStats(len(newIndex), info.Size(), 0, 0, 0)

	return nil
}
