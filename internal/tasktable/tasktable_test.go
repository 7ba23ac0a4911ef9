package tasktable

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// TestRegisterDedup covers spec.md P2: no target's command is invoked more
// than once per run, regardless of how many dependents race to register
// it.
func TestRegisterDedup(t *testing.T) {
	tbl := New()
	var runs int32

	const racers = 50
	var wg sync.WaitGroup
	handles := make([]*Handle, racers)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start.Wait()
			handles[i] = tbl.Register("a", func() error {
				atomic.AddInt32(&runs, 1)
				return nil
			})
		}(i)
	}
	start.Done()
	wg.Wait()

	for _, h := range handles {
		if err := h.Wait(); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}

	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}
	for i := 1; i < racers; i++ {
		if handles[i] != handles[0] {
			t.Fatalf("handle %d differs from handle 0; want all racers to share one handle", i)
		}
	}
}

// TestHandleFailureObservedByAllAwaiters covers the spec.md §4.1 failure
// semantics: a handle's failure is observable, identically, by every
// awaiter.
func TestHandleFailureObservedByAllAwaiters(t *testing.T) {
	tbl := New()
	wantErr := errors.New("boom")
	h := tbl.Register("b", func() error { return wantErr })

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.Wait()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, wantErr) {
			t.Fatalf("awaiter %d got %v, want %v", i, err, wantErr)
		}
	}
}

// TestSnapshotConcurrentWithRegister covers spec.md §4.1: Snapshot is
// read-only and safe to call concurrently with Register.
func TestSnapshotConcurrentWithRegister(t *testing.T) {
	tbl := New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			tbl.Snapshot()
		}
	}()
	for i := 0; i < 1000; i++ {
		id := string(rune('a' + i%26))
		tbl.Register(id, func() error { return nil })
	}
	<-done

	if got := len(tbl.Snapshot()); got == 0 {
		t.Fatalf("Snapshot returned no handles after registration")
	}
}
