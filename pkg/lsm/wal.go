package lsm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/dd0wney/kvs/pkg/logio"
	"github.com/dd0wney/kvs/pkg/pools"
)

// opLogWriter appends one frame per write to the operation log, in the
// same [key_len|key|value_pos|value_len] layout level tables use, since an
// operation-log entry needs exactly that information to rebuild the
// memtable on replay. The value itself lives only in the
// value log; separating the two is what lets compaction rewrite tables
// without ever touching already-written value bytes.
type opLogWriter struct {
	w *logio.Writer
}

func newOpLogWriter(f *os.File, startOffset int64) *opLogWriter {
	return &opLogWriter{w: logio.NewWriter(f, startOffset)}
}

func (o *opLogWriter) append(ik InternalKey, valuePos int64, valueLen int) error {
	encoded := ik.Encode()
	frame := pools.NewBufferBuilder(8 + len(encoded) + 16)
	defer frame.Release()
	frame.WriteUint64LE(uint64(len(encoded)))
	frame.Write(encoded)
	frame.WriteUint64LE(uint64(valuePos))
	frame.WriteUint64LE(uint64(valueLen))
	_, err := o.w.Append(frame.Bytes())
	return err
}

func (o *opLogWriter) close() error { return o.w.Close() }

// replayOpLog reads every frame from the operation log file in order,
// calling fn for each. It tolerates a clean EOF but reports ErrCorruptTable
// on a short trailing frame, mirroring the LSE's "completed writes are
// always whole frames" replay contract.
func replayOpLog(f *os.File, fn func(ik InternalKey, valuePos int64, valueLen int) error) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	br := bufio.NewReader(f)
	var lenbuf [8]byte
	for {
		if _, err := io.ReadFull(br, lenbuf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("lsm: oplog: %w", ErrCorruptTable)
		}
		keyLen := binary.LittleEndian.Uint64(lenbuf[:])
		encoded := make([]byte, keyLen)
		if _, err := io.ReadFull(br, encoded); err != nil {
			return fmt.Errorf("lsm: oplog: %w: short key", ErrCorruptTable)
		}
		ik, err := DecodeInternalKey(encoded)
		if err != nil {
			return fmt.Errorf("lsm: oplog: %w: %v", ErrCorruptTable, err)
		}
		if _, err := io.ReadFull(br, lenbuf[:]); err != nil {
			return fmt.Errorf("lsm: oplog: %w: short value_pos", ErrCorruptTable)
		}
		valuePos := int64(binary.LittleEndian.Uint64(lenbuf[:]))
		if _, err := io.ReadFull(br, lenbuf[:]); err != nil {
			return fmt.Errorf("lsm: oplog: %w: short value_len", ErrCorruptTable)
		}
		valueLen := int(binary.LittleEndian.Uint64(lenbuf[:]))

		if err := fn(ik, valuePos, valueLen); err != nil {
			return err
		}
	}
}
