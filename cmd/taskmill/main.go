// Command taskmill drives a declarative build configuration to completion.
//
// Verb dispatch and flag handling follow the teacher's cmd/distri/distri.go
// convention: a package-level flag set, a map[string]func(args) error of
// verbs, and a "help" pseudo-verb, rather than a third-party CLI framework
// (the teacher doesn't reach for one either — see DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/distr1/taskmill"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "path to store a CPU profile at")
	memprofile = flag.String("memprofile", "", "path to store a memory profile at")
	tracefile  = flag.String("tracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")
)

type verbFunc func(ctx context.Context, args []string) error

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	verbs := map[string]verbFunc{
		"build": cmdBuild,
		"graph": cmdGraph,
	}

	args := flag.Args()
	verb := "build"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		fmt.Fprintf(os.Stderr, "taskmill [-flags] <command> [-flags] <args>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "\tbuild  - build the configuration's default outputs\n")
		fmt.Fprintf(os.Stderr, "\tgraph  - load a configuration and report its target count\n")
		return 2
	}

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: taskmill <command> [options]\n")
		return 2
	}

	ctx, canc := taskmill.InterruptibleContext()
	defer canc()

	if *tracefile != "" {
		enableTrace(*tracefile)
	}

	runErr := v(ctx, args)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	if err := taskmill.RunAtExit(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if runErr != nil {
		return 1
	}
	return 0
}
