// Package alerts writes immutable breach alerts to a dedicated append-only
// log. Each alert carries a remediation action rendered into a ready-to-run
// command; clearing or acknowledging alerts is an external operation that
// never mutates prior entries.
package alerts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/gardenops/cli/internal/policy"
)

const (
	// AlertsDir holds the alert log under the base directory.
	AlertsDir = "alerts"

	// AlertsFile is the alert log file name.
	AlertsFile = "alerts.jsonl"
)

// Action is the typed remediation for a breach. The display command is
// derived by Command, keeping policy decisions decoupled from the
// runbook-facing string format.
type Action string

const (
	// ActionGlobalDemote recommends a forced global demotion.
	ActionGlobalDemote Action = "global-demote"

	// ActionDomainLock recommends a domain-scoped demotion with lock.
	ActionDomainLock Action = "domain-lock"
)

// Command renders the remediation command an operator should run.
func (a Action) Command(domain string) string {
	switch a {
	case ActionGlobalDemote:
		return "garden autonomy demote"
	case ActionDomainLock:
		return fmt.Sprintf("garden demote --domain %s --lock", domain)
	}
	return ""
}

// ActionForBreach maps a breach kind to its remediation action.
func ActionForBreach(kind string) (Action, error) {
	switch kind {
	case policy.BreachGlobalRegret:
		return ActionGlobalDemote, nil
	case policy.BreachDomainRegret:
		return ActionDomainLock, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBreach, kind)
}

// Entry is one immutable alert. Field shapes match what incident-response
// tooling reads from the log.
type Entry struct {
	ID                 string        `json:"id"`
	Scope              string        `json:"scope"`
	Domain             string        `json:"domain,omitempty"`
	MetricBreach       policy.Breach `json:"metric_breach"`
	RecommendedCommand string        `json:"recommended_command"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Emitter appends alerts for breach-driven transitions.
type Emitter struct {
	path string
	now  func() time.Time
}

// NewEmitter creates an emitter writing under baseDir.
func NewEmitter(baseDir string) *Emitter {
	return &Emitter{
		path: filepath.Join(baseDir, AlertsDir, AlertsFile),
		now:  time.Now,
	}
}

// Path returns the alert log path.
func (e *Emitter) Path() string {
	return e.path
}

// Emit appends one alert derived from a breach-driven transition.
func (e *Emitter) Emit(tr *policy.Transition) (*Entry, error) {
	if tr.Breach == nil {
		return nil, ErrNoBreach
	}
	action, err := ActionForBreach(tr.Breach.Kind)
	if err != nil {
		return nil, err
	}

	scope := "global"
	if !tr.Scope.IsGlobal() {
		scope = "domain"
	}
	entry := &Entry{
		ID:                 uuid.New().String(),
		Scope:              scope,
		Domain:             tr.Scope.Domain,
		MetricBreach:       *tr.Breach,
		RecommendedCommand: action.Command(tr.Scope.Domain),
		CreatedAt:          e.now().UTC(),
	}

	if err := appendJSONL(e.path, entry); err != nil {
		return nil, fmt.Errorf("append alert: %w", err)
	}
	return entry, nil
}

// List returns every alert in append order. Reads never block writers.
func (e *Emitter) List() (entries []Entry, err error) {
	f, err := os.Open(e.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open alert log: %w", err)
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
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorrupt, e.path, lineNo, err)
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

func appendJSONL(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // sync already called, close best-effort
	}()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}
