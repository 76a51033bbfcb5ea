package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task is one unit of work executed by a pool worker.
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool draining a buffered task channel.
//
// Workers process one task at a time; total external call concurrency equals
// the pool size. Submission never blocks the caller: when the buffer is full
// the task is rejected and the caller is expected to rely on the durable job
// rows being re-claimed on the next runner tick.
type Pool struct {
	logger *zap.Logger
	tasks  chan Task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	submitted atomic.Uint64
	processed atomic.Uint64
	rejected  atomic.Uint64
}

// NewPool creates a pool with the given worker count and buffer depth.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	depth := cfg.Depth
	if depth <= 0 {
		depth = 64
	}
	p := &Pool{
		logger: logger,
		tasks:  make(chan Task, depth),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			task(p.ctx)
			p.processed.Add(1)
		}
	}
}

// Submit hands a task to the pool. It returns false if the pool is stopped or
// the buffer is full.
func (p *Pool) Submit(task Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}
	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		return true
	default:
		p.rejected.Add(1)
		p.logger.Warn("worker pool saturated, task rejected")
		return false
	}
}

// Stop cancels all workers and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Metrics returns submission counters for observability.
func (p *Pool) Metrics() (submitted, processed, rejected uint64) {
	return p.submitted.Load(), p.processed.Load(), p.rejected.Load()
}
