// Package lsm implements the skeleton LSM variant: an in-memory memtable,
// immutable sorted level tables on disk, and a leveled compaction planner
// operating over a versioned file set. It is the second of the two engines
// the façade (pkg/engine) can dispatch to; the log-structured engine in
// pkg/lse is the one that actually ships.
package lsm

import (
	"encoding/binary"
	"fmt"

	"github.com/dd0wney/kvs/pkg/record"
)

// MaxSequenceNum bounds the sequence number space: sequence numbers live in
// [0, 2^56).
const MaxSequenceNum = (uint64(1) << 56) - 1

// InternalKey tags a user key with the sequence number it was written at and
// the command that produced it. The total order is user_key ascending, then
// sequence_num descending, so that of two entries sharing a user_key the one
// written more recently sorts first; a Seek key with the maximum sequence
// number therefore locates the latest version of a user key.
type InternalKey struct {
	UserKey     string
	SequenceNum uint64
	Cmd         record.Cmd
}

// NewLookupKey builds the InternalKey used to search for the newest version
// of userKey: maximum sequence number, Seek tag (never persisted).
func NewLookupKey(userKey string) InternalKey {
	return InternalKey{UserKey: userKey, SequenceNum: MaxSequenceNum, Cmd: record.Seek}
}

// Less reports whether a sorts before b under the InternalKey order.
func Less(a, b InternalKey) bool {
	if a.UserKey != b.UserKey {
		return a.UserKey < b.UserKey
	}
	return a.SequenceNum > b.SequenceNum
}

// Compare returns -1, 0, or 1 the way sort.Interface / bytes.Compare do.
func Compare(a, b InternalKey) int {
	if a.UserKey != b.UserKey {
		if a.UserKey < b.UserKey {
			return -1
		}
		return 1
	}
	switch {
	case a.SequenceNum > b.SequenceNum:
		return -1
	case a.SequenceNum < b.SequenceNum:
		return 1
	default:
		return 0
	}
}

// cmdTag/tagCmd fold a Cmd into a single on-disk byte, since record.Cmd is a
// string type but the trailer needs a fixed-width tag.
func cmdTag(c record.Cmd) byte {
	switch c {
	case record.Set:
		return 0
	case record.Remove:
		return 1
	default:
		return 2 // Seek
	}
}

func tagCmd(b byte) record.Cmd {
	switch b {
	case 0:
		return record.Set
	case 1:
		return record.Remove
	default:
		return record.Seek
	}
}

// Encode packs the internal key into the on-disk form a level table frame
// stores: user key bytes, then an 8-byte big-endian "sequence<<8|cmd"
// trailer. The encoded form does not sort in InternalKey order as raw
// bytes (sequence numbers order descending); readers always decode before
// comparing.
func (k InternalKey) Encode() []byte {
	buf := make([]byte, len(k.UserKey)+8)
	copy(buf, k.UserKey)
	trailer := (k.SequenceNum << 8) | uint64(cmdTag(k.Cmd))
	binary.BigEndian.PutUint64(buf[len(k.UserKey):], trailer)
	return buf
}

// DecodeInternalKey reverses Encode.
func DecodeInternalKey(b []byte) (InternalKey, error) {
	if len(b) < 8 {
		return InternalKey{}, fmt.Errorf("lsm: short internal key (%d bytes)", len(b))
	}
	trailer := binary.BigEndian.Uint64(b[len(b)-8:])
	return InternalKey{
		UserKey:     string(b[:len(b)-8]),
		SequenceNum: trailer >> 8,
		Cmd:         tagCmd(byte(trailer)),
	}, nil
}

// EncodeCompare orders two encoded internal keys by decoding them and
// applying Compare.
func EncodeCompare(a, b []byte) int {
	ak, _ := DecodeInternalKey(a)
	bk, _ := DecodeInternalKey(b)
	return Compare(ak, bk)
}
