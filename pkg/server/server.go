package server

import (
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/kvs/pkg/engine"
	"github.com/dd0wney/kvs/pkg/metrics"
	"github.com/dd0wney/kvs/pkg/pool"
)

// Server owns one listener and dispatches one job per accepted connection
// to a configured pool.Pool, cloning the engine handle for each job when
// the engine implements engine.Cloner. Whether a clone is a distinct handle
// depends on the engine: lse returns a new handle over shared state, while
// the adapter and lsm stores return themselves.
type Server struct {
	ln      net.Listener
	eng     engine.Engine
	pool    pool.Pool
	metrics *metrics.Registry
}

// New wraps an already-bound listener. eng must implement engine.Cloner if
// more than one connection will ever be served concurrently; Serve clones
// it once per accepted connection.
func New(ln net.Listener, eng engine.Engine, p pool.Pool, reg *metrics.Registry) *Server {
	return &Server{ln: ln, eng: eng, pool: p, metrics: reg}
}

// Serve runs the accept loop until Accept fails and returns that error.
// After Close, this is the listener's "use of closed network connection"
// error, never nil.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}

		connID := uuid.NewString()
		eng := s.cloneEngine()
		submitted := s.pool.Submit(func() {
			s.handleConn(connID, conn, eng)
		})
		if !submitted {
			conn.Close()
		}
	}
}

func (s *Server) cloneEngine() engine.Engine {
	if c, ok := s.eng.(engine.Cloner); ok {
		return c.Clone()
	}
	return s.eng
}

// Close stops the accept loop by closing the listener. In-flight jobs
// already submitted to the pool still run to completion; callers that want
// to wait for them should Close the pool afterward.
func (s *Server) Close() error {
	return s.ln.Close()
}

// handleConn decodes exactly one request from conn, dispatches it, and
// writes the response. The protocol allows one in-flight request per
// connection, so there is nothing to loop over beyond this single
// request/response pair.
func (s *Server) handleConn(connID string, conn net.Conn, eng engine.Engine) {
	defer conn.Close()

	req, err := readFrame(conn)
	if err != nil {
		log.Printf("server[%s]: read request: %v", connID, err)
		return
	}

	start := time.Now()
	op := string(req.Cmd)
	status := "ok"
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordEngineOp(op, status, time.Since(start))
		}
	}()

	switch req.Cmd {
	case cmdSet:
		if err := eng.Set(req.Key, req.Value); err != nil {
			status = "error"
			s.recordErr(op, err)
			writeText(conn, errResponse(err.Error()))
			return
		}
		writeText(conn, respSetOK)

	case cmdGet:
		value, found, err := eng.Get(req.Key)
		if err != nil {
			status = "error"
			s.recordErr(op, err)
			writeText(conn, errResponse(err.Error()))
			return
		}
		if !found {
			status = "not_found"
			writeText(conn, respNoKey)
			return
		}
		writeText(conn, value)

	case cmdRemove:
		if err := eng.Remove(req.Key); err != nil {
			status = "error"
			s.recordErr(op, err)
			writeText(conn, errResponse(err.Error()))
			return
		}
		writeText(conn, respRemoveOK)

	default:
		status = "error"
		writeText(conn, errResponse("unknown command"))
	}
}

func (s *Server) recordErr(op string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordEngineError(op, engineErrorKind(err))
}

func writeText(conn net.Conn, text string) {
	if _, err := conn.Write([]byte(text)); err != nil {
		log.Printf("server: write response: %v", err)
	}
}
