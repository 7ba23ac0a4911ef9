// Package configfile implements the configuration parser/intermediate-
// representation builder named as an external collaborator in spec.md
// §1/§6: it loads a Configuration (a mapping from output name to the
// target that produces it, plus the default outputs) from a YAML build
// file, using gopkg.in/yaml.v3, the same library jbctechsolutions-
// skillrunner uses for its own rule files.
//
// Graph validation (cycle and duplicate-output detection) is explicitly
// out of the parser's scope per spec.md §1; that happens when the loaded
// Configuration is handed to internal/graph.New.
package configfile

import (
	"fmt"
	"os"

	"github.com/distr1/taskmill/internal/config"
	"gopkg.in/yaml.v3"
)

// document is the on-disk build file shape:
//
//	default: [all]
//	targets:
//	  all:
//	    inputs: [bin/app]
//	  bin/app:
//	    rule:
//	      command: "go build -o bin/app ./cmd/app"
//	      description: "building bin/app"
//	    inputs: [main.go]
//	    order_only_inputs: [bin/.dir-stamp]
//	    implicit_outputs: [bin/app.debug]
//	    dynamic_module: bin/app.dyndep
type document struct {
	Default []string                  `yaml:"default"`
	Targets map[string]documentTarget `yaml:"targets"`
}

type documentTarget struct {
	Rule *struct {
		Command     string `yaml:"command"`
		Description string `yaml:"description"`
	} `yaml:"rule"`
	Inputs           []string `yaml:"inputs"`
	OrderOnlyInputs  []string `yaml:"order_only_inputs"`
	Outputs          []string `yaml:"outputs"`
	ImplicitOutputs  []string `yaml:"implicit_outputs"`
	DynamicModule    string   `yaml:"dynamic_module"`
}

// Load reads and parses the build file at path into a config.Configuration.
// A target whose map entry lists no "outputs" gets its own key in the
// targets map as its sole output; this matches the common case where a
// target's identity and its sole output coincide. When "outputs" is
// listed, the key is the target's ID only and is not added as an output.
func Load(path string) (*config.Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configfile: read %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("configfile: parse %s: %w", path, err)
	}

	cfg := &config.Configuration{
		Outputs:        make(map[string]*config.Target),
		DefaultOutputs: doc.Default,
	}

	for id, dt := range doc.Targets {
		target := &config.Target{
			ID:              id,
			Inputs:          dt.Inputs,
			OrderOnlyInputs: dt.OrderOnlyInputs,
			Outputs:         dt.Outputs,
			ImplicitOutputs: dt.ImplicitOutputs,
			DynamicModule:   dt.DynamicModule,
		}
		if dt.Rule != nil {
			target.Rule = &config.Rule{
				Command:     dt.Rule.Command,
				Description: dt.Rule.Description,
			}
		}
		if len(target.Outputs) == 0 {
			target.Outputs = []string{id}
		}
		for _, out := range target.Outputs {
			cfg.Outputs[out] = target
		}
	}

	return cfg, nil
}
