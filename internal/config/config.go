// Package config defines the in-memory shape of a build: targets, the
// configuration that maps outputs to the targets that produce them, and the
// dynamic-module fragments discovered at build time. The types here are the
// Go realization of spec.md §3 (Data Model); they are produced by the
// configfile and dynamicmod packages and consumed by the driver and graph
// registry.
package config

// Rule is the command-and-description pair attached to a target, per
// spec.md's GLOSSARY. A Target with a nil Rule is a pure dependency
// grouping node: it never spawns a shell command (spec.md P5).
type Rule struct {
	Command     string
	Description string
}

// Target is a node in the dependency graph, optionally carrying a Rule that
// produces Outputs and ImplicitOutputs from Inputs and OrderOnlyInputs.
// Targets are immutable once constructed; every field is read-only from the
// driver's perspective.
type Target struct {
	// ID is the target's stable identity string, used as the fingerprint
	// database key and the build-task table key.
	ID string

	// Rule is nil for grouping-only targets.
	Rule *Rule

	// Inputs are explicit inputs: their timestamps contribute to the
	// fingerprint (spec.md §3).
	Inputs []string

	// OrderOnlyInputs must be up to date before the command runs but do
	// not contribute to the fingerprint.
	OrderOnlyInputs []string

	// Outputs and ImplicitOutputs are checked for existence during the
	// staleness decision (spec.md §4.2 Phase D).
	Outputs         []string
	ImplicitOutputs []string

	// DynamicModule, if non-empty, names a file that is parsed and
	// compiled into a Fragment during Phase B.
	DynamicModule string
}

// Configuration is the external configuration: a mapping from output name
// to the target that produces it, plus the set of outputs to build by
// default. Dynamic fragments are resolved against this mapping, never
// mutated into it (spec.md §3).
type Configuration struct {
	Outputs        map[string]*Target
	DefaultOutputs []string
}

// Fragment is what a dynamic module compiles to: a small configuration
// fragment listing additional inputs per output (spec.md §3 "Dynamic
// module"). Structurally identical to Configuration minus DefaultOutputs.
type Fragment struct {
	Outputs map[string]*Target
}
