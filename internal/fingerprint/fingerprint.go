// Package fingerprint implements the durable fingerprint database (spec.md
// §3 "Fingerprint", §4.4): a mapping from target id to the 64-bit
// fingerprint of its last successful execution, that must survive process
// exit and tolerate concurrent writers within one process.
//
// It is grounded on two teacher patterns: the fnv-based digest in the
// teacher's internal/build.Ctx.Digest (a 64-bit, order-sensitive hash of a
// command plus its dependency state), and the SQLite repository pattern in
// jbctechsolutions-skillrunner/internal/infrastructure/storage (one
// *sql.DB, one table, INSERT ... ON CONFLICT for idempotent writes).
// SQLite's WAL journal gives the crash-atomicity spec.md demands without
// any bespoke journaling code.
package fingerprint

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	id    TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// DB is the opened fingerprint database for one build directory.
type DB struct {
	sql  *sql.DB
	path string
}

// Open opens (creating if absent) the fingerprint database rooted at dir.
// The returned DB is safe for concurrent Get/Set from multiple goroutines
// in this process (spec.md: "Concurrent set calls are permitted").
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	path := filepath.Join(dir, "fingerprints.sqlite3")
	// WAL mode lets one writer and many readers proceed without blocking
	// on every transaction, and its journal survives a crash mid-write
	// without corrupting previously committed rows.
	sqlDB, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("fingerprint: open %s: %w", path, err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("fingerprint: schema: %w", err)
	}
	return &DB{sql: sqlDB, path: path}, nil
}

// Close closes the underlying database handle.
func (db *DB) Close() error { return db.sql.Close() }

// Get returns the stored fingerprint for id, and whether one was found.
func (db *DB) Get(id string) (value uint64, ok bool, err error) {
	row := db.sql.QueryRow(`SELECT value FROM fingerprints WHERE id = ?`, id)
	var raw int64
	switch err := row.Scan(&raw); err {
	case nil:
		return uint64(raw), true, nil
	case sql.ErrNoRows:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("fingerprint: get %q: %w", id, err)
	}
}

// Set records the fingerprint for id. The driver calls it only after a
// target's command completed successfully, or, for a target with no rule,
// once its inputs are built and its stored fingerprint is stale (spec.md I3).
func (db *DB) Set(id string, value uint64) error {
	_, err := db.sql.Exec(
		`INSERT INTO fingerprints (id, value) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET value = excluded.value`,
		id, int64(value))
	if err != nil {
		return fmt.Errorf("fingerprint: set %q: %w", id, err)
	}
	return nil
}

// Checkpoint writes a small marker file recording when the database was
// last known to be consistent, using renameio for an atomic rename-based
// write (the same technique the teacher's internal/build uses for its
// package metadata files). It is meant to be registered with
// taskmill.RegisterAtExit so every clean shutdown leaves a checkpoint
// behind for operators inspecting the build directory.
func (db *DB) Checkpoint() error {
	marker := db.path + ".checkpoint"
	return renameio.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644)
}

// Hash computes the spec.md §3/§9 fingerprint: a discriminator byte plus
// the command string for a target with a rule, or a single sentinel byte
// for a rule-less grouping target, followed by the little-endian
// seconds+nanoseconds encoding of each timestamp, in the given order.
// This mirrors original_source/src/run.rs's hash_build, which hashes
// Option<&String> rather than the command alone — Rust's derived Hash
// for Option writes its discriminant before the payload, so None
// (no rule) and Some("") (a rule with an empty command) never collide.
// Command and timestamps are combined with a single running FNV-1a
// 64-bit hash so the result is deterministic across runs and platforms
// for identical inputs.
func Hash(hasRule bool, command string, timestamps []time.Time) uint64 {
	h := fnv.New64a()
	if hasRule {
		h.Write([]byte{1})
		h.Write([]byte(command))
	} else {
		h.Write([]byte{0})
	}
	var buf [16]byte
	for _, ts := range timestamps {
		binary.LittleEndian.PutUint64(buf[0:8], uint64(ts.Unix()))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(ts.Nanosecond()))
		h.Write(buf[:])
	}
	return h.Sum64()
}
