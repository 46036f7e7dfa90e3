// Package engine defines the storage-engine contract shared by the
// log-structured engine, the LSM variant, and the third-party adapter, plus
// the error taxonomy all three report through.
package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers should use errors.Is against these rather than
// comparing *Error values directly.
var (
	// ErrNotFound is returned by Remove when the key is absent. Get never
	// returns this error; a missing key is reported as ("", false, nil).
	ErrNotFound = errors.New("kvs: key not found")

	// ErrCorrupt is returned when an on-disk frame is short or fails to
	// parse: a malformed log record or level-table entry. record.ErrCorrupt
	// and lsm.ErrCorruptTable both wrap it.
	ErrCorrupt = errors.New("kvs: corrupt on-disk data")

	// ErrEngineMismatch is returned at startup when a data directory's
	// persisted engine choice disagrees with the one requested.
	ErrEngineMismatch = errors.New("kvs: engine mismatch")

	// ErrClosed is returned by any operation performed after Close.
	ErrClosed = errors.New("kvs: engine closed")
)

// Error wraps a sentinel cause with the operation and key it occurred for,
// in the style of this codebase's storage-layer error type: named fields,
// one Error() format, Unwrap for errors.Is/As chains.
type Error struct {
	Op    string // operation: "Set", "Get", "Remove", "Compact", "Open", ...
	Key   string // key involved, if any
	Cause error  // one of the sentinel errors above, or an I/O error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("kvs: %s %q: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("kvs: %s: %v", e.Op, e.Cause)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}
