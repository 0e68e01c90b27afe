// Package audit appends a before/after transcript for every state mutation,
// automatic or operator-issued. The entry field set and ordering are a
// compatibility contract: external incident-response tooling consumes the
// log and the rendered transcript verbatim.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// AuditDir holds the audit log under the base directory.
	AuditDir = "audit"

	// AuditFile is the audit log file name.
	AuditFile = "audit.jsonl"
)

// Entry is one immutable audit record. Field order matters: the JSON keys
// and the transcript lines appear exactly in this sequence.
type Entry struct {
	Command     string    `json:"command"`
	LevelBefore int       `json:"level_before"`
	LevelAfter  int       `json:"level_after"`
	LockBefore  bool      `json:"lock_before"`
	LockAfter   bool      `json:"lock_after"`
	Reason      string    `json:"reason"`
	StatePath   string    `json:"state_path"`
	Timestamp   time.Time `json:"timestamp"`
}

// Transcript renders the entry as the fixed-order block operators paste
// into incident logs.
func (e Entry) Transcript() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command:      %s\n", e.Command)
	fmt.Fprintf(&b, "level_before: %d\n", e.LevelBefore)
	fmt.Fprintf(&b, "level_after:  %d\n", e.LevelAfter)
	fmt.Fprintf(&b, "lock_before:  %t\n", e.LockBefore)
	fmt.Fprintf(&b, "lock_after:   %t\n", e.LockAfter)
	fmt.Fprintf(&b, "reason:       %s\n", e.Reason)
	fmt.Fprintf(&b, "state_path:   %s\n", e.StatePath)
	fmt.Fprintf(&b, "timestamp:    %s\n", e.Timestamp.UTC().Format(time.RFC3339))
	return b.String()
}

// Trail is the append-only audit log.
type Trail struct {
	path string
}

// NewTrail creates a trail writing under baseDir.
func NewTrail(baseDir string) *Trail {
	return &Trail{path: filepath.Join(baseDir, AuditDir, AuditFile)}
}

// Path returns the audit log path.
func (t *Trail) Path() string {
	return t.path
}

// Record appends one entry. Entries are never modified after creation.
func (t *Trail) Record(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // sync already called, close best-effort
	}()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return f.Sync()
}

// List returns every entry in append order. Reads never block writers.
func (t *Trail) List() (entries []Entry, err error) {
	f, err := os.Open(t.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorrupt, t.path, lineNo, err)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
