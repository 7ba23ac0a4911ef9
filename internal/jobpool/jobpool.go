// Package jobpool bounds the number of concurrently executing shell
// commands (spec.md §4.6). It wraps golang.org/x/sync/semaphore the same
// way the teacher's build scheduler bounds its worker goroutines, but
// exposes acquire/release as a scoped pair rather than a fixed-size worker
// loop, since the driver's task bodies are not pinned to a worker slot.
package jobpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool is a counting semaphore bounding concurrent command executions
// (spec.md I5). The zero value is not usable; construct with New.
type Pool struct {
	sem *semaphore.Weighted
}

// New returns a Pool with the given capacity. A capacity of zero or less
// defaults to runtime.NumCPU(), matching spec.md §4.6's default.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(capacity))}
}

// Acquire blocks until a permit is available or ctx is canceled.
func (p *Pool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release returns a permit to the pool. Callers must pair every successful
// Acquire with exactly one Release.
func (p *Pool) Release() {
	p.sem.Release(1)
}
