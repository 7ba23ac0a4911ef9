// Package tasktable implements the build-task table (spec.md §4.1): a
// memoized, per-target-identity completion handle shared by every
// dependent that requests the same target. It realizes spec.md I1 (at most
// one handle per id, never replaced) and the open question in spec.md §9
// about not holding the table lock across a suspension: Register takes the
// exclusive lock only long enough to check-and-insert, then releases it
// before the spawned task body runs or before returning the existing
// handle to a racing caller.
//
// This is the Go-idiomatic form of the teacher's own `building
// map[string]*buildResult` / `done chan struct{}` singleflight pattern
// (see the teacher's package-build scheduler), generalized from per-rule
// dedup to per-target-identity dedup with failure reasons attached.
package tasktable

import "sync"

// Handle is a shareable, awaitable value representing the in-progress or
// terminal state of one target's build (spec.md GLOSSARY "Handle"). Many
// goroutines may call Wait concurrently; all observe the same terminal
// error.
type Handle struct {
	done chan struct{}
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// finish transitions the handle to its terminal state exactly once.
func (h *Handle) finish(err error) {
	h.err = err
	close(h.done)
}

// Wait blocks until the handle reaches a terminal state and returns its
// error (nil on success). It is idempotent: calling it any number of times,
// from any number of goroutines, returns the same result.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Done returns a channel closed when the handle reaches a terminal state,
// for callers that need to select against it alongside other events (e.g.
// context cancellation).
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the handle's terminal error without blocking. Callers must
// only call it after observing Done() closed.
func (h *Handle) Err() error {
	return h.err
}

// Table memoizes one Handle per target identity for the lifetime of a run.
type Table struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// New returns an empty Table.
func New() *Table {
	return &Table{handles: make(map[string]*Handle)}
}

// Register returns the existing handle for id if one was already
// registered (by this call or a racing one); otherwise it creates a new
// pending Handle, stores it, releases the table lock, and then spawns run
// in its own goroutine to eventually complete the handle. The exclusive
// lock is held only for the check-and-insert, never across the goroutine
// spawn or any wait on another handle (spec.md's lock-discipline note).
func (t *Table) Register(id string, run func() error) *Handle {
	t.mu.Lock()
	if h, ok := t.handles[id]; ok {
		t.mu.Unlock()
		return h
	}
	h := newHandle()
	t.handles[id] = h
	t.mu.Unlock()

	go func() { h.finish(run()) }()

	return h
}

// Snapshot returns a cloned list of all handles currently registered, for
// bulk awaiting at the top level. It takes only the shared read lock and
// is safe to call concurrently with Register (spec.md §4.1).
func (t *Table) Snapshot() []*Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Handle, 0, len(t.handles))
	for _, h := range t.handles {
		out = append(out, h)
	}
	return out
}
