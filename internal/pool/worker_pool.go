// Package pool provides the bounded worker pool used to fan a batch of
// routing tasks out concurrently. This package is internal and should not
// be imported by external projects.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrPoolClosed is returned when submitting to a closed pool.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrPoolFull is returned when the task queue is full.
	ErrPoolFull = errors.New("pool is full")
)

// Work is one unit of pooled work. A panicking unit is recovered and
// counted as failed; it never takes a worker or a sibling down.
type Work func(ctx context.Context) error

// WorkerPool runs submitted work on a bounded set of goroutines. Workers
// are spawned lazily up to the configured maximum.
type WorkerPool struct {
	maxWorkers  int
	queue       chan workItem
	workerCount atomic.Int32
	closed      atomic.Bool
	wg          sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

type workItem struct {
	work Work
	ctx  context.Context
}

// New creates a worker pool with the given worker bound and queue size.
func New(maxWorkers, queueSize int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = maxWorkers
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		queue:      make(chan workItem, queueSize),
	}
}

// Submit queues work for execution. It never blocks: a full queue is
// reported as ErrPoolFull so the caller can decide how to degrade.
func (p *WorkerPool) Submit(ctx context.Context, work Work) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	select {
	case p.queue <- workItem{work: work, ctx: ctx}:
		p.ensureWorker()
		return nil
	default:
		return ErrPoolFull
	}
}

func (p *WorkerPool) ensureWorker() {
	for {
		current := p.workerCount.Load()
		if current >= int32(p.maxWorkers) {
			return
		}
		if p.workerCount.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.worker()
			return
		}
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	defer p.workerCount.Add(-1)

	for item := range p.queue {
		if err := p.run(item); err != nil {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}
	}
}

func (p *WorkerPool) run(item workItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("pooled work panicked")
		}
	}()
	return item.work(item.ctx)
}

// Close closes the pool and waits for in-flight work to finish.
func (p *WorkerPool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.queue)
	p.wg.Wait()
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Stats returns pool statistics.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Workers:   int(p.workerCount.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}
