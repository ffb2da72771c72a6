package mediator

import (
	"context"
	"sync/atomic"
)

// Worker is the dedicated execution context of one execution group. Its
// goroutine is locked to one OS thread for the mediator's lifetime, so every
// message dispatched to the group runs on the same thread.
type Worker struct {
	// ID is unique per worker and stable for the mediator's lifetime
	ID string
	// Group is the execution group served by this worker (1..N)
	Group int

	mediatorID string
	processed  atomic.Uint64
}

// Processed returns how many messages of its group this worker handled
func (w *Worker) Processed() uint64 {
	return w.processed.Load()
}

type workerKey struct{}

func withWorker(ctx context.Context, w *Worker) context.Context {
	return context.WithValue(ctx, workerKey{}, w)
}

// WorkerFromContext returns the worker running the current handler
func WorkerFromContext(ctx context.Context) (*Worker, bool) {
	w, ok := ctx.Value(workerKey{}).(*Worker)
	return w, ok
}
