package lsm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dd0wney/kvs/pkg/engine"
)

// tableEntry is one row of a level table: an encoded InternalKey pointing
// at a (value_pos, value_len) location in the value log. On-disk frame:
// [u64 key_len_le][key_bytes][i64 value_pos_le][u64 value_len_le].
type tableEntry struct {
	key      InternalKey
	encoded  []byte
	valuePos int64
	valueLen int
}

// SSTable is an opened, immutable, fully-buffered level table: a flat run
// of entry frames (no block index or footer) plus an in-memory Bloom
// filter rebuilt at Open for negative lookups, since entries are buffered
// in full anyway once opened.
type SSTable struct {
	num     int64
	entries []tableEntry
	bloom   *BloomFilter
}

// WriteTable writes entries (already in ascending InternalKey order) to
// path, returning the resulting FileMetaData. WriteTable flushes, fsyncs and
// closes the file before returning; it writes directly at path and does not
// rename into place.
func WriteTable(path string, num int64, entries []tableEntry) (*FileMetaData, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("lsm: refusing to write empty table %d", num)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("lsm: create table %d: %w", num, err)
	}
	bw := bufio.NewWriter(f)

	var lenbuf [8]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint64(lenbuf[:], uint64(len(e.encoded)))
		if _, err := bw.Write(lenbuf[:]); err != nil {
			f.Close()
			return nil, fmt.Errorf("lsm: write key_len: %w", err)
		}
		if _, err := bw.Write(e.encoded); err != nil {
			f.Close()
			return nil, fmt.Errorf("lsm: write key: %w", err)
		}
		binary.LittleEndian.PutUint64(lenbuf[:], uint64(e.valuePos))
		if _, err := bw.Write(lenbuf[:]); err != nil {
			f.Close()
			return nil, fmt.Errorf("lsm: write value_pos: %w", err)
		}
		binary.LittleEndian.PutUint64(lenbuf[:], uint64(e.valueLen))
		if _, err := bw.Write(lenbuf[:]); err != nil {
			f.Close()
			return nil, fmt.Errorf("lsm: write value_len: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("lsm: flush table %d: %w", num, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("lsm: fsync table %d: %w", num, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return &FileMetaData{
		Num:         num,
		Size:        info.Size(),
		SmallestKey: entries[0].key,
		LargestKey:  entries[len(entries)-1].key,
	}, nil
}

// OpenTable reads a level table fully into memory and rebuilds its Bloom
// filter. Tables are bounded by MaxFileSize, so buffering the whole file
// keeps lookups a binary search with no further I/O.
func OpenTable(path string, num int64) (*SSTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lsm: open table %d: %w", num, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var entries []tableEntry
	var lenbuf [8]byte
	for {
		if _, err := io.ReadFull(br, lenbuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("lsm: table %d: read key_len: %w", num, err)
		}
		keyLen := binary.LittleEndian.Uint64(lenbuf[:])
		encoded := make([]byte, keyLen)
		if _, err := io.ReadFull(br, encoded); err != nil {
			return nil, fmt.Errorf("lsm: table %d: %w: short key", num, ErrCorruptTable)
		}
		ik, err := DecodeInternalKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("lsm: table %d: %w: %v", num, ErrCorruptTable, err)
		}
		if _, err := io.ReadFull(br, lenbuf[:]); err != nil {
			return nil, fmt.Errorf("lsm: table %d: %w: short value_pos", num, ErrCorruptTable)
		}
		valuePos := int64(binary.LittleEndian.Uint64(lenbuf[:]))
		if _, err := io.ReadFull(br, lenbuf[:]); err != nil {
			return nil, fmt.Errorf("lsm: table %d: %w: short value_len", num, ErrCorruptTable)
		}
		valueLen := int(binary.LittleEndian.Uint64(lenbuf[:]))

		entries = append(entries, tableEntry{key: ik, encoded: encoded, valuePos: valuePos, valueLen: valueLen})
	}

	bloom := NewBloomFilter(len(entries), 0.01)
	for _, e := range entries {
		bloom.Add([]byte(e.key.UserKey))
	}

	return &SSTable{num: num, entries: entries, bloom: bloom}, nil
}

// ErrCorruptTable is returned when a level table's frame cannot be parsed.
// It wraps engine.ErrCorrupt.
var ErrCorruptTable = fmt.Errorf("lsm: corrupt level table: %w", engine.ErrCorrupt)

// Get looks up the newest entry at or before key for key.UserKey, the same
// "latest <= key" contract the memtable's Get implements.
func (t *SSTable) Get(key InternalKey) (valuePos int64, valueLen int, found bool) {
	if !t.bloom.MayContain([]byte(key.UserKey)) {
		return 0, 0, false
	}
	idx := sort.Search(len(t.entries), func(i int) bool { return !Less(t.entries[i].key, key) })
	if idx >= len(t.entries) || t.entries[idx].key.UserKey != key.UserKey {
		return 0, 0, false
	}
	e := t.entries[idx]
	return e.valuePos, e.valueLen, true
}

// Entries returns the table's entries in ascending InternalKey order, for
// merging during compaction.
func (t *SSTable) Entries() []tableEntry { return t.entries }
