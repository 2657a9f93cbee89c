package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wondrousdigital/gateway/pkg/async"
)

// MultiLogger fans each event out to several loggers
type MultiLogger struct {
	loggers []Logger
	pool    *async.WorkerPool
	drain   time.Duration
}

// NewMultiLogger creates a synchronous fan-out logger
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// WithPool moves writes onto pool. When the queue is full the event is
// written inline. Close drains the pool for up to drain; once the pool is
// closed Log returns async.ErrPoolClosed.
func (m *MultiLogger) WithPool(pool *async.WorkerPool, drain time.Duration) *MultiLogger {
	m.pool = pool
	m.drain = drain
	return m
}

// Log writes event to every logger. Synchronous writes try every logger
// and return the first failure.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	if m.pool != nil {
		detached := context.WithoutCancel(ctx)
		err := m.pool.Submit(func(taskCtx context.Context) error {
			return m.logAll(taskCtx, event)
		})
		if err == nil || errors.Is(err, async.ErrPoolClosed) {
			return err
		}
		return m.logAll(detached, event)
	}
	return m.logAll(ctx, event)
}

func (m *MultiLogger) logAll(ctx context.Context, event *Event) error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close drains pending writes and closes every logger. When the drain times
// out the loggers are left open because workers may still be writing.
func (m *MultiLogger) Close() error {
	if m.pool != nil {
		if err := m.pool.Shutdown(m.drain); err != nil {
			return fmt.Errorf("audit loggers left open: %w", err)
		}
	}

	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close logger: %w", err))
		}
	}
	return errors.Join(errs...)
}
