package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wondrousdigital/gateway/pkg/observability"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown
	ErrPoolClosed = errors.New("worker pool shut down")

	// ErrQueueFull is returned by Submit when no queue slot is free
	ErrQueueFull = errors.New("worker pool queue full")
)

// Task is a unit of work run with a per-task deadline
type Task func(ctx context.Context) error

// WorkerPool runs tasks on a fixed set of workers fed by a bounded queue.
// Submit never blocks. Task errors and panics are logged, not returned.
type WorkerPool struct {
	taskName string
	timeout  time.Duration
	logger   *observability.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Task

	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	failures atomic.Int64
	dropped  atomic.Int64
}

// NewWorkerPool starts workers goroutines draining a queue of queueSize tasks.
// Each task runs under timeout, derived from ctx.
//
//	pool := async.NewWorkerPool(ctx, logger, 2, 1024, "audit", 5*time.Second)
//	defer pool.Shutdown(5 * time.Second)
func NewWorkerPool(ctx context.Context, logger *observability.Logger, workers, queueSize int, taskName string, timeout time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &WorkerPool{
		taskName: taskName,
		timeout:  timeout,
		logger:   logger.WithField("pool", taskName),
		queue:    make(chan Task, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues fn. It returns ErrQueueFull instead of waiting for a slot.
func (p *WorkerPool) Submit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- fn:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits up to timeout for the queue to
// drain. Tasks still running after timeout have their context cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool %s shutdown timed out after %v", p.taskName, timeout)
		}
		p.cancel()
	})
	return err
}

// Failures is the number of tasks that returned an error or panicked
func (p *WorkerPool) Failures() int64 {
	return p.failures.Load()
}

// Dropped is the number of tasks rejected with ErrQueueFull
func (p *WorkerPool) Dropped() int64 {
	return p.dropped.Load()
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for fn := range p.queue {
		p.run(fn)
	}
}

func (p *WorkerPool) run(fn Task) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.failures.Add(1)
			observability.LogRecovered(p.logger, p.taskName, r)
		}
	}()

	if err := fn(ctx); err != nil {
		p.failures.Add(1)
		p.logger.WithError(err).Warn("Background task failed")
	}
}
