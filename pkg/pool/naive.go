package pool

import (
	"log"
	"sync"

	"github.com/dd0wney/kvs/pkg/metrics"
)

// Naive spawns a fresh goroutine per job. It exists for testing: no queue,
// no fixed worker count, unbounded concurrency.
type Naive struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewNaive returns a ready-to-use naive pool.
func NewNaive() *Naive {
	return &Naive{}
}

// Submit starts f in its own goroutine, recovering any panic so one bad job
// never takes down the caller.
func (p *Naive) Submit(f func()) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer recoverJobPanic()
		f()
	}()
	return true
}

// Close waits for every started job to return; no new jobs are accepted
// after Close is called.
func (p *Naive) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

func recoverJobPanic() {
	if r := recover(); r != nil {
		log.Printf("pool: job panic recovered: %v", r)
		metrics.DefaultRegistry().RecordPoolPanic()
		metrics.DefaultRegistry().RecordPoolJob("panic")
		return
	}
	metrics.DefaultRegistry().RecordPoolJob("ok")
}

var _ Pool = (*Naive)(nil)
