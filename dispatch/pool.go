package dispatch

import (
	"context"
	"sync"

	"github.com/wippyai/ydb-bridge/errors"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// Pool is a fixed set of worker goroutines for offloaded engine calls.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	size   int
}

// NewPool starts workers goroutines. workers <= 0 selects DefaultWorkers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{
		tasks: make(chan func(), workers*16),
		size:  workers,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

func (p *Pool) Size() int {
	return p.size
}

// Submit queues task. It blocks while the queue is full, until ctx is done.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.InvalidInput(errors.PhaseDispatch, "worker pool is closed")
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
