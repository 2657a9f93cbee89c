// Package async runs background work off the request path.
//
// WorkerPool is a fixed set of workers behind a bounded queue. Submit never
// blocks: a full queue is reported as ErrQueueFull so callers can fall back
// to doing the work inline. Task panics are recovered and logged.
//
//	pool := async.NewWorkerPool(ctx, logger, 2, 1024, "audit", 5*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	if err := pool.Submit(func(ctx context.Context) error {
//		return sink.Log(ctx, event)
//	}); err != nil {
//		_ = sink.Log(ctx, event)
//	}
//
// The audit trail uses it so file writes never delay a response.
package async
