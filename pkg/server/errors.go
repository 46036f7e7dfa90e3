package server

import (
	"errors"

	"github.com/dd0wney/kvs/pkg/engine"
)

// engineErrorKind classifies err into a label for the error-kind metric;
// unrecognized errors are reported as "io" since the
// only engine errors not in the sentinel set are wrapped I/O failures.
func engineErrorKind(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrCorrupt):
		return "corrupt"
	case errors.Is(err, engine.ErrClosed):
		return "closed"
	default:
		return "io"
	}
}
