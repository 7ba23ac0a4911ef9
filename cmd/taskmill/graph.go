package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/distr1/taskmill/internal/configfile"
	"github.com/distr1/taskmill/internal/graph"
)

const graphHelp = `taskmill graph [-flags]

Load a build configuration and report its registered target count and
default outputs, without running anything. Useful for diagnosing
configuration problems without a full build.
`

func cmdGraph(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("graph", flag.ExitOnError)
	fset.Usage = func() { fmt.Println(graphHelp) }
	file := fset.String("f", "build.yaml", "path to the build configuration")
	fset.Parse(args)

	cfg, err := configfile.Load(*file)
	if err != nil {
		return err
	}

	reg, err := graph.New(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("%d targets registered\n", reg.Len())
	fmt.Printf("%d default outputs:\n", len(cfg.DefaultOutputs))
	for _, out := range cfg.DefaultOutputs {
		fmt.Printf("  %s\n", out)
	}
	return nil
}
