// Package dynamicmod implements the dynamic-module parser/compiler named
// as an external collaborator in spec.md §1/§6: given a file discovered at
// build time, it parses and compiles it into a config.Fragment listing
// additional inputs per output (spec.md §3 "Dynamic module").
//
// The spec intentionally keeps this collaborator's contract thin (§6: "a
// fragment with an outputs mapping of the same shape"), so the format here
// is a small YAML document rather than a bespoke grammar, parsed with
// gopkg.in/yaml.v3 — the corpus's own choice of YAML library, used
// throughout jbctechsolutions-skillrunner's rule and workflow files.
package dynamicmod

import (
	"fmt"
	"os"

	"github.com/distr1/taskmill/internal/config"
	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of a dynamic module:
//
//	outputs:
//	  out/generated.o:
//	    inputs: [out/generated.h]
type document struct {
	Outputs map[string]struct {
		Inputs []string `yaml:"inputs"`
	} `yaml:"outputs"`
}

// Compile reads, parses, and compiles the dynamic module at path into a
// config.Fragment. Each entry becomes a config.Target whose ID equals its
// output name; these targets are never built themselves — the driver only
// ever reads their Inputs (spec.md §4.2 Phase B) — but giving them a
// proper ID lets the graph registry treat them like any other node for
// cycle detection.
func Compile(path string) (*config.Fragment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dynamicmod: read %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("dynamicmod: parse %s: %w", path, err)
	}
	fragment := &config.Fragment{Outputs: make(map[string]*config.Target, len(doc.Outputs))}
	for out, entry := range doc.Outputs {
		fragment.Outputs[out] = &config.Target{
			ID:     out,
			Inputs: entry.Inputs,
		}
	}
	return fragment, nil
}
