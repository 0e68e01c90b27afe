// Package statestore persists per-scope autonomy state as one JSON file per
// scope, replaced atomically on every mutation. Cross-invocation safety comes
// from a per-scope flock with a bounded acquisition timeout; only the lock
// holder for a scope may replace that scope's state file.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// StateDir holds the global state file under the base directory.
	StateDir = "state"

	// DomainStateDir holds per-domain state files under StateDir.
	DomainStateDir = "domains"

	// GlobalStateFile is the global scope's state file name.
	GlobalStateFile = "global.json"
)

// Scope identifies a unit of serialized mutation: a single domain, or the
// global scope when Domain is empty.
type Scope struct {
	Domain string
}

// GlobalScope returns the global scope.
func GlobalScope() Scope {
	return Scope{}
}

// DomainScope returns the scope for a domain.
func DomainScope(domain string) Scope {
	return Scope{Domain: domain}
}

// IsGlobal reports whether this is the global scope.
func (s Scope) IsGlobal() bool {
	return s.Domain == ""
}

// String returns "global" or the domain name.
func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return s.Domain
}

// State is the persisted snapshot for one scope. For the global scope the
// lock fields are always zero; GlobalState carries no lock.
//
// EvaluatedThrough is the count of ledger records covered by the last
// evaluation of this scope. It makes re-evaluation of an unchanged window a
// no-op; it is bookkeeping, not part of the transition contract.
type State struct {
	DomainID         string    `json:"domain_id,omitempty"`
	CurrentLevel     int       `json:"current_level"`
	Locked           bool      `json:"locked,omitempty"`
	LockReason       string    `json:"lock_reason,omitempty"`
	LastTransitionAt time.Time `json:"last_transition_at"`
	EvaluatedThrough int       `json:"evaluated_through,omitempty"`
}

// Clone returns a copy of the state.
func (st *State) Clone() *State {
	c := *st
	return &c
}

// Store reads and atomically replaces per-scope state files.
type Store struct {
	baseDir     string
	lockTimeout time.Duration
}

// New creates a state store rooted at baseDir. lockTimeout bounds how long
// AcquireLock waits for a scope's mutation lock.
func New(baseDir string, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{baseDir: baseDir, lockTimeout: lockTimeout}
}

// Path returns the state file path for a scope.
func (s *Store) Path(scope Scope) string {
	if scope.IsGlobal() {
		return filepath.Join(s.baseDir, StateDir, GlobalStateFile)
	}
	return filepath.Join(s.baseDir, StateDir, DomainStateDir, scope.Domain+".json")
}

// Read loads a scope's state. A missing file returns ErrNotFound; the caller
// decides whether lazy creation applies. A file that exists but cannot be
// parsed fails closed with ErrCorrupt: a level is never inferred from
// corrupted input.
func (s *Store) Read(scope Scope) (*State, error) {
	path := s.Path(scope)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return &st, nil
}

// Init returns the lazily-created default state for a scope: level 0,
// unlocked. It is not persisted until the first write.
func Init(scope Scope) *State {
	return &State{DomainID: scope.Domain}
}

// Write atomically replaces a scope's state file using a temp-then-rename so
// a crash mid-write can never leave a partially written file; the last
// successfully renamed file is the durable truth. The caller must hold the
// scope's mutation lock.
func (s *Store) Write(scope Scope, st *State) error {
	path := s.Path(scope)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath) //nolint:errcheck // cleanup in error path
		}
	}()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	success = true
	return nil
}

// Domains lists every domain with a persisted state file, sorted by name.
func (s *Store) Domains() ([]string, error) {
	dir := filepath.Join(s.baseDir, StateDir, DomainStateDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var domains []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		domains = append(domains, name[:len(name)-len(".json")])
	}
	return domains, nil
}
