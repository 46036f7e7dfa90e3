package lsm

import "sync/atomic"

// Options configures an LSM store.
type Options struct {
	Dir              string
	MaxFileSize      int64 // target size of one level table
	WriteBufferSize  int   // memtable flush threshold, in bytes
}

// DefaultOptions returns the default tuning for dir: 2MB tables, a 4MB
// write buffer.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:             dir,
		MaxFileSize:     DefaultMaxFileSize,
		WriteBufferSize: 4 * 1024 * 1024,
	}
}

// Stats tracks store-wide counters surfaced through pkg/metrics. The
// high-frequency fields are plain atomics so the write path never takes a
// lock to bump them.
type Stats struct {
	Writes      atomic.Int64
	Reads       atomic.Int64
	Flushes     atomic.Int64
	Compactions atomic.Int64
}

// Snapshot is a point-in-time copy of Stats plus the gauges pulled from the
// current version (table count, level-0 file count).
type Snapshot struct {
	Writes       int64
	Reads        int64
	Flushes      int64
	Compactions  int64
	SSTableCount int
	Level0Files  int
}
