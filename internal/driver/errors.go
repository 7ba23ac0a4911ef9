package driver

import "golang.org/x/xerrors"

// Kind classifies a driver failure per spec.md §7's error classes.
type Kind int

const (
	// KindUsage covers a default output not listed in the configuration,
	// or a dynamic dependency not found in the base configuration.
	KindUsage Kind = iota
	// KindFilesystem covers stat/read failures, including a missing
	// source file discovered during Phase A's existence check.
	KindFilesystem
	// KindExecution covers a non-zero command exit, or a command that never
	// started because its job permit could not be acquired (the run's
	// context was canceled).
	KindExecution
	// KindStructural covers a graph cycle or duplicate output introduced
	// by a dynamic fragment.
	KindStructural
	// KindPersistence covers fingerprint database read/write failures.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindFilesystem:
		return "filesystem"
	case KindExecution:
		return "execution"
	case KindStructural:
		return "structural"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is the tagged sum value every driver failure surfaces as (spec.md
// §7), carrying enough context for human diagnosis: the target id, an
// optional path, an optional command, and an optional exit code.
type Error struct {
	Kind    Kind
	Target  string
	Path    string
	Command string
	Code    *int
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Target != "" {
		msg = e.Target + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func usageErr(target, reason string) error {
	return &Error{Kind: KindUsage, Target: target, Reason: reason}
}

func fsErr(target, path string, err error) error {
	return &Error{Kind: KindFilesystem, Target: target, Path: path, Err: err,
		Reason: xerrors.Errorf("stat %s: %w", path, err).Error()}
}

func execErr(target, command string, code *int) error {
	reason := "command exit"
	return &Error{Kind: KindExecution, Target: target, Command: command, Code: code, Reason: reason}
}

func structuralErr(target string, err error) error {
	return &Error{Kind: KindStructural, Target: target, Err: err, Reason: "graph validation error"}
}

func persistenceErr(target string, err error) error {
	return &Error{Kind: KindPersistence, Target: target, Err: err, Reason: "database error"}
}
