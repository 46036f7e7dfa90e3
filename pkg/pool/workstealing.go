package pool

import (
	"sync"
	"sync/atomic"
)

// WorkStealing runs jobs on a fixed number of workers, each with its own
// local queue; an idle worker steals from another worker's queue instead of
// blocking on the shared channel SharedQueue uses. Submit round-robins
// across the local queues, so a burst landing on one worker's queue can be
// picked up by any other.
type WorkStealing struct {
	queues []*dequeue
	next   atomic.Uint64 // round-robins Submit across local queues

	cond   *sync.Cond
	mu     sync.Mutex
	closed bool

	wg sync.WaitGroup
}

// NewWorkStealing starts workers goroutines (at least 1), each owning one
// local queue.
func NewWorkStealing(workers int) *WorkStealing {
	if workers <= 0 {
		workers = 1
	}

	p := &WorkStealing{
		queues: make([]*dequeue, workers),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := range p.queues {
		p.queues[i] = newDequeue()
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit pushes f onto one local queue, chosen round-robin, and returns
// false without blocking if the pool is closed.
func (p *WorkStealing) Submit(f func()) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	idx := int(p.next.Add(1)-1) % len(p.queues)
	p.queues[idx].pushBack(f)

	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
	return true
}

// worker drains its own queue first, then steals from every other queue in
// turn before idling; it exits once the pool is closed and every queue (its
// own and everyone else's) is empty.
func (p *WorkStealing) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		if job, ok := own.popFront(); ok {
			runJob(job)
			continue
		}

		if job, ok := p.steal(id); ok {
			runJob(job)
			continue
		}

		p.mu.Lock()
		for !p.closed && p.allEmptyLocked() {
			p.cond.Wait()
		}
		done := p.closed && p.allEmptyLocked()
		p.mu.Unlock()
		if done {
			return
		}
	}
}

// steal looks at every other worker's queue once, round-robin starting
// just after id, and takes the first job it finds.
func (p *WorkStealing) steal(id int) (func(), bool) {
	n := len(p.queues)
	for i := 1; i < n; i++ {
		victim := (id + i) % n
		if job, ok := p.queues[victim].popBack(); ok {
			return job, true
		}
	}
	return nil, false
}

func (p *WorkStealing) allEmptyLocked() bool {
	for _, q := range p.queues {
		if !q.empty() {
			return false
		}
	}
	return true
}

// Close stops accepting new jobs, wakes every idle worker so it can drain
// remaining queued work, and waits for all workers to exit.
func (p *WorkStealing) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

var _ Pool = (*WorkStealing)(nil)

// dequeue is a mutex-guarded double-ended queue of jobs: the owner works
// its own queue front-to-back (FIFO), while a thief takes from the back, so
// the two ends of one queue are contended only when it is down to its last
// job.
type dequeue struct {
	mu    sync.Mutex
	items []func()
}

func newDequeue() *dequeue {
	return &dequeue{}
}

func (d *dequeue) pushBack(f func()) {
	d.mu.Lock()
	d.items = append(d.items, f)
	d.mu.Unlock()
}

func (d *dequeue) popFront() (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	f := d.items[0]
	d.items = d.items[1:]
	return f, true
}

func (d *dequeue) popBack() (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	last := len(d.items) - 1
	f := d.items[last]
	d.items = d.items[:last]
	return f, true
}

func (d *dequeue) empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items) == 0
}
