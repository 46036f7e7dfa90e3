// Package server implements the wire-framed TCP boundary: a length-prefixed
// JSON request decoded into a Set/Get/Remove call against an engine.Engine,
// and a plain-bytes textual response read by the client to EOF.
package server

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dd0wney/kvs/pkg/pools"
)

// cmd is the wire vocabulary for a request body. It shares "Set" and
// "Remove" with record.Cmd; "Get" exists only on the wire and is never
// persisted.
type cmd string

const (
	cmdSet    cmd = "Set"
	cmdGet    cmd = "Get"
	cmdRemove cmd = "Remove"
)

// request is the JSON request body: {"cmd":..., "key":..., "value":...}.
type request struct {
	Cmd   cmd    `json:"cmd"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response text matched byte-for-byte by clients.
const (
	respSetOK    = "Successful set operation"
	respRemoveOK = "Successful remove operation"
	respNoKey    = "ERROR: NO such key in storage"
)

func errResponse(msg string) string {
	return "ERROR: " + msg
}

// maxFrameLen bounds a single request frame so a corrupt or hostile length
// prefix can't make the server allocate an unbounded buffer.
const maxFrameLen = 64 << 20

// readFrame reads one length-prefixed frame: a 4-byte big-endian total
// length (the prefix itself plus the body) followed by the JSON body, and
// decodes it into a request.
func readFrame(r io.Reader) (request, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return request{}, err
	}
	total := binary.BigEndian.Uint32(lenBuf[:])
	if total < 4 || int64(total) > maxFrameLen {
		return request{}, fmt.Errorf("server: invalid frame length %d", total)
	}
	bodyLen := total - 4

	body := pools.GetBytesSized(int(bodyLen))
	defer pools.PutBytes(body)

	if _, err := io.ReadFull(r, body); err != nil {
		return request{}, fmt.Errorf("server: short frame body: %w", err)
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return request{}, fmt.Errorf("server: malformed request body: %w", err)
	}
	return req, nil
}
