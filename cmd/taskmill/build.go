package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/distr1/taskmill/internal/config"
	"github.com/distr1/taskmill/internal/configfile"
	"github.com/distr1/taskmill/internal/driver"
	"github.com/distr1/taskmill/internal/env"
)

const buildHelp = `taskmill build [-flags]

Build the default outputs of a build.yaml configuration.

Example:
  % taskmill build -f build.yaml -j 8
`

func cmdBuild(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("build", flag.ExitOnError)
	fset.Usage = func() { fmt.Println(buildHelp) }
	file := fset.String("f", "build.yaml", "path to the build configuration")
	dir := fset.String("C", env.BuildRoot, "build directory (holds the fingerprint database)")
	jobs := fset.Int("j", 0, "maximum number of concurrent commands (0 = runtime.NumCPU())")
	debug := fset.Bool("debug", false, "print each command's shell text ahead of its output")
	dryRun := fset.Bool("n", false, "print the default outputs and their commands without building")
	fset.Parse(args)

	cfg, err := configfile.Load(*file)
	if err != nil {
		return err
	}

	if *dryRun {
		return printPlan(cfg)
	}

	return driver.Run(ctx, cfg, driver.Options{
		BuildDir: *dir,
		JobLimit: *jobs,
		Debug:    *debug,
	})
}

// printPlan implements -n: it reports the default outputs without invoking
// phase E, the dry-run convention borrowed from mk (spec.md §10).
func printPlan(cfg *config.Configuration) error {
	for _, name := range cfg.DefaultOutputs {
		target, ok := cfg.Outputs[name]
		if !ok {
			return fmt.Errorf("default output %q not found", name)
		}
		if target.Rule != nil {
			fmt.Printf("%s: %s\n", target.ID, target.Rule.Command)
		} else {
			fmt.Printf("%s: (no rule)\n", target.ID)
		}
	}
	return nil
}
