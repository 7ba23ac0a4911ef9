package main

import (
	"fmt"
	"os"

	"github.com/distr1/taskmill"
	"github.com/distr1/taskmill/internal/trace"
)

// enableTrace points internal/trace's sink at path, registering a
// best-effort close on exit (mirrors the teacher's -ctracefile handling in
// cmd/distri/distri.go).
func enableTrace(path string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "taskmill: tracefile: %v\n", err)
		return
	}
	trace.Sink(f)
	taskmill.RegisterAtExit(func() error {
		return f.Close()
	})
}
