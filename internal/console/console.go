// Package console serializes writes to the two build output streams so
// that one target's stdout/stderr is never interleaved with another's
// (spec.md §4.5), the same line-coherence guarantee the teacher's batch
// scheduler gives its status lines in internal/batch/batch.go, generalized
// from a fixed status-line grid to an exclusive scoped lock any target may
// hold for the duration of its output.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Console holds the pair of output streams and the lock that makes a
// single target's writes to them contiguous.
type Console struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer

	// isTerminal records whether stderr is attached to a terminal; Banner
	// reads it to decide whether to emit an ANSI clear-line prefix. Detected with mattn/go-isatty, listed in the
	// teacher's own go.mod but unexercised in its retrieved sources.
	isTerminal bool
}

// New returns a Console writing to the given streams.
func New(stdout, stderr io.Writer) *Console {
	isTerminal := false
	if f, ok := stderr.(*os.File); ok {
		isTerminal = isatty.IsTerminal(f.Fd())
	}
	return &Console{stdout: stdout, stderr: stderr, isTerminal: isTerminal}
}

// Hold acquires the console's exclusive lock and returns a Session bound to
// it. The caller must call Session.Close to release the lock. While held,
// the holder may write to either stream without another target's output
// interleaving (spec.md's ordering guarantee for console writes).
func (c *Console) Hold() *Session {
	c.mu.Lock()
	return &Session{c: c}
}

// Session is a single target's exclusive hold on the console.
type Session struct {
	c *Console
}

// Stdout returns the writer for the target's standard output.
func (s *Session) Stdout() io.Writer { return s.c.stdout }

// Stderr returns the writer for the target's standard error.
func (s *Session) Stderr() io.Writer { return s.c.stderr }

// Banner writes a single descriptive line (a command's shell text or
// description) to stderr. When the console is attached to a terminal, it
// is preceded by an ANSI clear-line sequence so a banner left over from a
// previous, now-shorter write can't leave stale characters behind — the
// same overwrite-stale-characters idea as the teacher's
// batch.scheduler.refreshStatus, collapsed to a single line since targets
// here don't share a status grid.
func (s *Session) Banner(line string) {
	if s.c.isTerminal {
		fmt.Fprint(s.c.stderr, "\033[K")
	}
	fmt.Fprintln(s.c.stderr, line)
}

// Close releases the console lock. It is safe to call exactly once per
// Session returned by Hold.
func (s *Session) Close() {
	s.c.mu.Unlock()
}
