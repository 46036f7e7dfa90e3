package server

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dd0wney/kvs/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// GracefulServer wraps a Server with OS-signal-triggered shutdown: SIGINT
// and SIGTERM close the listener and drain the pool before the process
// exits.
type GracefulServer struct {
	srv          *Server
	pool         interface{ Close() }
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewGracefulServer wraps srv. pool is closed (draining in-flight
// connections) as part of Shutdown, after the listener stops accepting.
func NewGracefulServer(srv *Server, pool interface{ Close() }) *GracefulServer {
	return &GracefulServer{
		srv:        srv,
		pool:       pool,
		shutdownCh: make(chan struct{}),
	}
}

// Start runs the accept loop and installs the signal handler. It blocks
// until the listener is closed (by Shutdown or an external Close) and
// returns the resulting error, swallowing the expected "use of closed
// network connection" case.
func (gs *GracefulServer) Start() error {
	go gs.handleSignals()

	err := gs.srv.Serve()
	if gs.IsShuttingDown() {
		return nil
	}
	return err
}

// Shutdown closes the listener, then closes the pool and waits up to
// timeout for every already-accepted connection to finish its one
// in-flight request; if the drain takes longer, Shutdown logs and returns
// without waiting further. Closing
// the listener and bumping metrics collectors for the in-flight drain are
// independent steps, run as an errgroup.Group so a failure in one doesn't
// block the other from being attempted.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)
		log.Printf("server: shutting down (drain timeout %v)", timeout)

		var eg errgroup.Group
		eg.Go(gs.srv.Close)
		eg.Go(func() error {
			metrics.DefaultRegistry().RecordShutdown()
			return nil
		})
		err = eg.Wait()

		done := make(chan struct{})
		go func() {
			gs.pool.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			log.Printf("server: pool drain timed out after %v", timeout)
		}
	})
	return err
}

// IsShuttingDown reports whether Shutdown has been initiated.
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

func (gs *GracefulServer) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("server: received %v, starting graceful shutdown", sig)
	if err := gs.Shutdown(30 * time.Second); err != nil {
		log.Printf("server: shutdown error: %v", err)
		os.Exit(1)
	}
	os.Exit(0)
}
