package pool

import (
	"math"
	"sync"

	"github.com/dd0wney/kvs/pkg/metrics"
)

// MaxWorkers bounds the worker count a SharedQueue pool will accept so the
// 2x buffer-size calculation cannot overflow.
const MaxWorkers = math.MaxInt / 2

// SharedQueue runs jobs on a fixed number of worker goroutines pulling from
// one buffered channel: a classic multi-producer/multi-consumer pool.
type SharedQueue struct {
	jobs chan func()

	mu     sync.RWMutex // guards closed against a send-on-closed-channel race
	closed bool

	wg sync.WaitGroup
}

// NewSharedQueue starts workers goroutines (at least 1) pulling from a
// queue buffered to 2x the worker count.
func NewSharedQueue(workers int) *SharedQueue {
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	p := &SharedQueue{jobs: make(chan func(), workers*2)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *SharedQueue) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		runJob(job)
	}
}

// runJob executes job, recovering a panic so the worker loop keeps running
// and the pool retains its full worker count.
func runJob(job func()) {
	defer recoverJobPanic()
	job()
}

// Submit enqueues f. It returns false without blocking further if the pool
// is closed; otherwise the call may block until a worker is free to accept
// it, since the queue is bounded.
func (p *SharedQueue) Submit(f func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.jobs <- f
	metrics.DefaultRegistry().SetPoolQueueDepth(len(p.jobs))
	return true
}

// Close stops accepting new jobs, drains the queue, and waits for every
// worker to exit once the channel is closed and empty.
func (p *SharedQueue) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

var _ Pool = (*SharedQueue)(nil)
