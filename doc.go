// Package taskmill provides process-wide plumbing shared by every taskmill
// command: interrupt-aware contexts and exit-time cleanup hooks. The build
// driver itself lives in internal/driver; this package only holds the
// ambient bits every long-running CLI in this tree needs.
package taskmill
