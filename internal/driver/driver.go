// Package driver implements the build driver (spec.md §4.2, §4.6): the
// recursive task body that materializes the dependency graph lazily,
// coordinates at-most-one execution per target, applies the staleness
// decision, integrates dynamic modules, and persists fingerprints.
//
// The phase ordering is grounded directly on
// original_source/src/run.rs's spawn_build_future (A explicit deps, B
// dynamic module, C dynamic deps, D staleness, E execution, F commit); the
// Go realization (goroutines, golang.org/x/sync/errgroup for first-error
// propagation, a job-pool semaphore acquired only around the shell command)
// follows the teacher's internal/batch/batch.go scheduler idiom.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/distr1/taskmill"
	"github.com/distr1/taskmill/internal/config"
	"github.com/distr1/taskmill/internal/console"
	"github.com/distr1/taskmill/internal/dynamicmod"
	"github.com/distr1/taskmill/internal/fingerprint"
	"github.com/distr1/taskmill/internal/graph"
	"github.com/distr1/taskmill/internal/jobpool"
	"github.com/distr1/taskmill/internal/tasktable"
	"github.com/distr1/taskmill/internal/trace"
	"golang.org/x/sync/errgroup"
)

// Context is the per-run bundle (spec.md §9 "Global mutable state"):
// configuration, graph registry, task table, database handle, console, and
// permit pool. It is created at run start and discarded at run end; there
// is no state outside it beyond the process-wide taskmill.RegisterAtExit
// hook that Run registers for the database checkpoint.
type Context struct {
	ctx context.Context

	configuration *config.Configuration
	graph         *graph.Registry
	tasks         *tasktable.Table
	db            *fingerprint.DB
	console       *console.Console
	jobs          *jobpool.Pool
	log           *log.Logger
	debug         bool
}

// Options configures a Run beyond the required configuration.
type Options struct {
	// BuildDir holds the fingerprint database and its checkpoint marker.
	BuildDir string
	// JobLimit bounds concurrent command executions; zero defaults to
	// runtime.NumCPU() (spec.md §4.6).
	JobLimit int
	// Debug, when true, prints each command's shell text ahead of its
	// captured output, once the command has exited (spec.md §4.2 Phase E).
	Debug bool
	// Stdout and Stderr default to os.Stdout/os.Stderr when nil.
	Stdout, Stderr *os.File
}

// Run is the driver entry contract (spec.md §6): it builds every default
// output in cfg and returns the first observed failure, or nil on success.
func Run(ctx context.Context, cfg *config.Configuration, opts Options) error {
	db, err := fingerprint.Open(opts.BuildDir)
	if err != nil {
		return persistenceErr("", err)
	}
	defer db.Close()
	// Stamp a checkpoint marker on every clean process exit, not just a
	// clean Run return, so an operator inspecting the build directory
	// after a later crash can still see the last run that got this far.
	taskmill.RegisterAtExit(db.Checkpoint)

	reg, err := graph.New(cfg)
	if err != nil {
		return structuralErr("", err)
	}

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	c := &Context{
		ctx:           ctx,
		configuration: cfg,
		graph:         reg,
		tasks:         tasktable.New(),
		db:            db,
		console:       console.New(stdout, stderr),
		jobs:          jobpool.New(opts.JobLimit),
		log:           log.New(stderr, "taskmill: ", 0),
		debug:         opts.Debug,
	}

	for _, name := range cfg.DefaultOutputs {
		target, ok := cfg.Outputs[name]
		if !ok {
			return usageErr(name, "default output not found")
		}
		c.registerTarget(target)
	}

	// Snapshot after registering the defaults, not inline in the loop
	// above, so we don't hold (or need) any lock while awaiting — this is
	// the driver's resolution of spec.md §9's open question about
	// avoiding a read-lock held across a suspension.
	return waitAll(c.tasks.Snapshot())
}

// registerTarget registers (if not already registered) the task body for
// target and returns its handle.
func (c *Context) registerTarget(target *config.Target) *tasktable.Handle {
	return c.tasks.Register(target.ID, func() error { return c.buildTarget(target) })
}

// registerInput registers the producer of input if one is configured,
// otherwise registers a trivial handle that resolves by checking the
// source file exists (spec.md §4.2 Phase A).
func (c *Context) registerInput(input string) *tasktable.Handle {
	if target, ok := c.configuration.Outputs[input]; ok {
		return c.registerTarget(target)
	}
	return c.tasks.Register(input, func() error {
		if _, err := os.Stat(input); err != nil {
			return fsErr("", input, err)
		}
		return nil
	})
}

// waitAll awaits every handle and returns the first error observed, in
// completion order, while letting every handle run to its own terminal
// state regardless (spec.md §5 "Cancellation and timeouts").
func waitAll(handles []*tasktable.Handle) error {
	var eg errgroup.Group
	for _, h := range handles {
		h := h
		eg.Go(h.Wait)
	}
	return eg.Wait()
}

// buildTarget is the recursive task body (spec.md §4.2).
func (c *Context) buildTarget(target *config.Target) error {
	ev := trace.Event("build "+target.ID, 0)
	defer ev.Done()

	// Phase A — explicit dependencies.
	inputs := make([]string, 0, len(target.Inputs)+len(target.OrderOnlyInputs))
	inputs = append(inputs, target.Inputs...)
	inputs = append(inputs, target.OrderOnlyInputs...)
	handles := make([]*tasktable.Handle, 0, len(inputs))
	for _, in := range inputs {
		handles = append(handles, c.registerInput(in))
	}
	if err := waitAll(handles); err != nil {
		return fmt.Errorf("building %q: %w", target.ID, err)
	}

	// Phase B — dynamic module.
	var dynamicInputs []string
	if target.DynamicModule != "" {
		fragment, err := dynamicmod.Compile(target.DynamicModule)
		if err != nil {
			return fsErr(target.ID, target.DynamicModule, err)
		}
		if err := c.graph.Insert(fragment); err != nil {
			return structuralErr(target.ID, err)
		}
		found := false
		for _, out := range target.Outputs {
			if dep, ok := fragment.Outputs[out]; ok {
				dynamicInputs = dep.Inputs
				found = true
				break
			}
		}
		if !found {
			return usageErr(target.ID, "dynamic dependency not found")
		}
	}

	// Phase C — dynamic dependencies.
	dynHandles := make([]*tasktable.Handle, 0, len(dynamicInputs))
	for _, in := range dynamicInputs {
		depTarget, ok := c.configuration.Outputs[in]
		if !ok {
			return usageErr(target.ID, "dynamic dependency not found: "+in)
		}
		dynHandles = append(dynHandles, c.registerTarget(depTarget))
	}
	if err := waitAll(dynHandles); err != nil {
		return fmt.Errorf("building %q: %w", target.ID, err)
	}

	// Phase D — staleness decision.
	timestamps := make([]time.Time, 0, len(target.Inputs)+len(dynamicInputs))
	for _, in := range append(append([]string{}, target.Inputs...), dynamicInputs...) {
		ts, err := modTime(in)
		if err != nil {
			return fsErr(target.ID, in, err)
		}
		timestamps = append(timestamps, ts)
	}

	command := ""
	if target.Rule != nil {
		command = target.Rule.Command
	}
	computed := fingerprint.Hash(target.Rule != nil, command, timestamps)

	stored, ok, err := c.db.Get(target.ID)
	if err != nil {
		return persistenceErr(target.ID, err)
	}

	upToDate := ok && stored == computed
	if upToDate {
		for _, out := range append(append([]string{}, target.Outputs...), target.ImplicitOutputs...) {
			if _, err := os.Stat(out); err != nil {
				upToDate = false
				break
			}
		}
	}
	if upToDate {
		return nil
	}

	// Phase E — execution.
	if target.Rule != nil {
		if err := c.runRule(target); err != nil {
			return err
		}
	}

	// Phase F — commit.
	if err := c.db.Set(target.ID, computed); err != nil {
		return persistenceErr(target.ID, err)
	}

	return nil
}

func modTime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// runRule executes the target's command under the job permit pool and
// writes its captured output under the console's exclusive lock (spec.md
// §4.2 Phase E).
func (c *Context) runRule(target *config.Target) error {
	if err := c.jobs.Acquire(c.ctx); err != nil {
		return &Error{Kind: KindExecution, Target: target.ID, Command: target.Rule.Command, Err: err, Reason: "job permit not acquired"}
	}

	ev := trace.Event("exec "+target.ID, 0)
	cmd := exec.CommandContext(c.ctx, "sh", "-e", "-c", target.Rule.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	ev.Done()

	c.jobs.Release()

	sess := c.console.Hold()
	if c.debug {
		sess.Banner(target.Rule.Command)
	}
	if target.Rule.Description != "" {
		sess.Banner(target.Rule.Description)
	}
	sess.Stdout().Write(stdout.Bytes())
	sess.Stderr().Write(stderr.Bytes())
	sess.Close()

	if runErr != nil {
		var code *int
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			n := exitErr.ExitCode()
			code = &n
		}
		return execErr(target.ID, target.Rule.Command, code)
	}
	return nil
}
