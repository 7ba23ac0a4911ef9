package driver_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/distr1/taskmill/internal/config"
	"github.com/distr1/taskmill/internal/driver"
	"github.com/google/go-cmp/cmp"
)

// countingRule returns a Rule whose command appends one line to counter
// each time it runs, and creates output (if non-empty). This lets tests
// assert "ran N times" without parsing shell output.
func countingRule(t *testing.T, counter, output string) *config.Rule {
	t.Helper()
	cmd := fmt.Sprintf("echo run >> %s", shellQuote(counter))
	if output != "" {
		cmd += fmt.Sprintf(" && echo built > %s", shellQuote(output))
	}
	return &config.Rule{Command: cmd}
}

func shellQuote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

func runCount(t *testing.T, counter string) int {
	t.Helper()
	b, err := os.ReadFile(counter)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return len(strings.Split(strings.TrimSpace(string(b)), "\n"))
}

// Scenario 1: single target, no inputs (spec.md §8.1).
func TestSingleTargetNoInputs(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	counter := filepath.Join(dir, "counter")

	cfg := &config.Configuration{
		Outputs: map[string]*config.Target{
			out: {ID: out, Rule: countingRule(t, counter, out), Outputs: []string{out}},
		},
		DefaultOutputs: []string{out},
	}

	opts := driver.Options{BuildDir: filepath.Join(dir, "build")}

	if err := driver.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := runCount(t, counter); got != 1 {
		t.Fatalf("first run: command ran %d times, want 1", got)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing after first run: %v", err)
	}

	if err := driver.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := runCount(t, counter); got != 1 {
		t.Fatalf("second run: command ran %d times, want still 1 (up to date)", got)
	}
}

// Scenario 2: linear chain a <- b <- c (spec.md §8.2).
func TestLinearChain(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	counterA := filepath.Join(dir, "counter.a")
	counterB := filepath.Join(dir, "counter.b")
	counterC := filepath.Join(dir, "counter.c")

	// a has no inputs; like b and c it gets a counting rule, so it has a
	// timestamped output for b to depend on.
	cfg := &config.Configuration{
		Outputs: map[string]*config.Target{
			a: {ID: a, Rule: countingRule(t, counterA, a), Outputs: []string{a}},
			b: {ID: b, Rule: countingRule(t, counterB, b), Inputs: []string{a}, Outputs: []string{b}},
			c: {ID: c, Rule: countingRule(t, counterC, c), Inputs: []string{b}, Outputs: []string{c}},
		},
		DefaultOutputs: []string{c},
	}
	opts := driver.Options{BuildDir: filepath.Join(dir, "build")}

	if err := driver.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	for name, counter := range map[string]string{"a": counterA, "b": counterB, "c": counterC} {
		if got := runCount(t, counter); got != 1 {
			t.Fatalf("first run: %s ran %d times, want 1", name, got)
		}
	}

	// Deleting c's output forces exactly c to rerun (fingerprint still
	// matches, but the up-to-date check also requires outputs to exist).
	if err := os.Remove(c); err != nil {
		t.Fatalf("removing c: %v", err)
	}
	if err := driver.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := runCount(t, counterA); got != 1 {
		t.Fatalf("second run: a ran %d times, want still 1", got)
	}
	if got := runCount(t, counterB); got != 1 {
		t.Fatalf("second run: b ran %d times, want still 1", got)
	}
	if got := runCount(t, counterC); got != 2 {
		t.Fatalf("second run: c ran %d times, want 2", got)
	}
}

// Scenario 3: diamond fan-in, d depends on b and c, both depend on a
// (spec.md §8.3). a's task must run exactly once even though two
// dependents race to register it.
func TestDiamondFanIn(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	d := filepath.Join(dir, "d")
	counterA := filepath.Join(dir, "counter.a")

	cfg := &config.Configuration{
		Outputs: map[string]*config.Target{
			a: {ID: a, Rule: countingRule(t, counterA, a), Outputs: []string{a}},
			b: {ID: b, Rule: &config.Rule{Command: fmt.Sprintf("echo built > %s", shellQuote(b))}, Inputs: []string{a}, Outputs: []string{b}},
			c: {ID: c, Rule: &config.Rule{Command: fmt.Sprintf("echo built > %s", shellQuote(c))}, Inputs: []string{a}, Outputs: []string{c}},
			d: {ID: d, Rule: &config.Rule{Command: fmt.Sprintf("echo built > %s", shellQuote(d))}, Inputs: []string{b, c}, Outputs: []string{d}},
		},
		DefaultOutputs: []string{d},
	}
	opts := driver.Options{BuildDir: filepath.Join(dir, "build")}

	if err := driver.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := runCount(t, counterA); got != 1 {
		t.Fatalf("a ran %d times, want exactly 1", got)
	}
	if _, err := os.Stat(d); err != nil {
		t.Fatalf("d missing: %v", err)
	}
}

// Scenario 4: missing source file (spec.md §8.4).
func TestMissingSourceFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.x")
	out := filepath.Join(dir, "out")

	cfg := &config.Configuration{
		Outputs: map[string]*config.Target{
			out: {ID: out, Rule: &config.Rule{Command: "true"}, Inputs: []string{src}, Outputs: []string{out}},
		},
		DefaultOutputs: []string{out},
	}
	opts := driver.Options{BuildDir: filepath.Join(dir, "build")}

	err := driver.Run(context.Background(), cfg, opts)
	if err == nil {
		t.Fatal("Run: want error for missing source file, got nil")
	}
	if _, statErr := os.Stat(out); statErr == nil {
		t.Fatal("out should not have been built when its source is missing")
	}
}

// Scenario 6: failing command (spec.md §8.6).
func TestFailingCommand(t *testing.T) {
	dir := t.TempDir()
	independent := filepath.Join(dir, "independent")
	failing := filepath.Join(dir, "failing")

	cfg := &config.Configuration{
		Outputs: map[string]*config.Target{
			independent: {ID: independent, Rule: &config.Rule{Command: fmt.Sprintf("echo built > %s", shellQuote(independent))}, Outputs: []string{independent}},
			failing:     {ID: failing, Rule: &config.Rule{Command: "exit 2"}, Outputs: []string{failing}},
		},
		DefaultOutputs: []string{independent, failing},
	}
	opts := driver.Options{BuildDir: filepath.Join(dir, "build")}

	err := driver.Run(context.Background(), cfg, opts)
	if err == nil {
		t.Fatal("Run: want error from failing command, got nil")
	}

	derr, ok := errorAs(err)
	if !ok {
		t.Fatalf("Run error = %v, want *driver.Error", err)
	}
	if derr.Kind != driver.KindExecution {
		t.Fatalf("Kind = %v, want KindExecution", derr.Kind)
	}
	if derr.Code == nil || *derr.Code != 2 {
		t.Fatalf("Code = %v, want 2", derr.Code)
	}

	// The independent target, having already finished successfully,
	// remains built and recorded.
	if _, statErr := os.Stat(independent); statErr != nil {
		t.Fatalf("independent target missing: %v", statErr)
	}
	if _, statErr := os.Stat(failing); statErr == nil {
		t.Fatal("failing target's output should not exist")
	}
}

func errorAs(err error) (*driver.Error, bool) {
	var derr *driver.Error
	for err != nil {
		if e, ok := err.(*driver.Error); ok {
			derr = e
			return derr, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// TestOrderOnlyInputDoesNotForceRerun covers spec.md P6/L-style round trip:
// touching only an order-only input's timestamp does not cause the
// dependent to rerun.
func TestOrderOnlyInputDoesNotForceRerun(t *testing.T) {
	dir := t.TempDir()
	stamp := filepath.Join(dir, "stamp")
	out := filepath.Join(dir, "out")
	counter := filepath.Join(dir, "counter")

	if err := os.WriteFile(stamp, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing stamp: %v", err)
	}

	cfg := &config.Configuration{
		Outputs: map[string]*config.Target{
			out: {
				ID:              out,
				Rule:            countingRule(t, counter, out),
				OrderOnlyInputs: []string{stamp},
				Outputs:         []string{out},
			},
		},
		DefaultOutputs: []string{out},
	}
	opts := driver.Options{BuildDir: filepath.Join(dir, "build")}

	if err := driver.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := runCount(t, counter); got != 1 {
		t.Fatalf("first run ran %d times, want 1", got)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(stamp, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := driver.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := runCount(t, counter); got != 1 {
		t.Fatalf("second run ran %d times, want still 1 (order-only touch must not force rerun)", got)
	}
}

// TestDefaultOutputNotFound covers the usage error surfaced when a
// configuration's default output isn't actually registered.
func TestDefaultOutputNotFound(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Configuration{
		Outputs:        map[string]*config.Target{},
		DefaultOutputs: []string{"missing"},
	}
	opts := driver.Options{BuildDir: dir}

	err := driver.Run(context.Background(), cfg, opts)
	if err == nil {
		t.Fatal("Run: want error, got nil")
	}
	derr, ok := errorAs(err)
	if !ok || derr.Kind != driver.KindUsage {
		t.Fatalf("Run error = %v, want KindUsage", err)
	}
	if diff := cmp.Diff("missing", derr.Target); diff != "" {
		t.Fatalf("Target mismatch (-want +got):\n%s", diff)
	}
}
