// Package ledger persists graded decision outcomes as append-only JSONL,
// one file per domain. Records are immutable once appended; downstream
// windowed statistics are computed from ordered reads of these files.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// LedgerDir holds per-domain decision ledgers under the base directory.
	LedgerDir = "ledger"
)

// domainNamePattern constrains domain names so they are always safe to use
// as file names.
var domainNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Outcome classifies a graded decision.
type Outcome string

const (
	// OutcomeCorrect marks a decision later judged correct.
	OutcomeCorrect Outcome = "correct"

	// OutcomeRegret marks a decision later judged incorrect.
	OutcomeRegret Outcome = "regret"
)

// ParseOutcome normalizes an outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeCorrect:
		return OutcomeCorrect, nil
	case OutcomeRegret:
		return OutcomeRegret, nil
	}
	return "", fmt.Errorf("%w: %q (want correct or regret)", ErrInvalidOutcome, s)
}

// ValidDomainName reports whether a domain name is acceptable as a ledger key.
func ValidDomainName(domain string) bool {
	return domainNamePattern.MatchString(domain)
}

// Record is a single graded decision outcome. Immutable once appended.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	Domain      string    `json:"domain"`
	Outcome     Outcome   `json:"outcome"`
	LevelAtTime int       `json:"level_at_time"`
}

// Window is an ordered slice of records for a requested trailing size.
// Complete is false when fewer records exist than were requested; callers
// must treat an incomplete window as insufficient data, never as a score.
type Window struct {
	Records   []Record
	Requested int
	Complete  bool
}

// Store reads and appends per-domain decision ledgers.
type Store struct {
	baseDir string
}

// New creates a ledger store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Path returns the ledger file path for a domain.
func (s *Store) Path(domain string) string {
	return filepath.Join(s.baseDir, LedgerDir, domain+".jsonl")
}

// Append writes a record to its domain ledger. The caller is expected to
// hold the domain's scope lock; appends for distinct domains never contend.
func (s *Store) Append(rec Record) error {
	if !ValidDomainName(rec.Domain) {
		return fmt.Errorf("%w: %q", ErrInvalidDomainName, rec.Domain)
	}
	if rec.Outcome != OutcomeCorrect && rec.Outcome != OutcomeRegret {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, rec.Outcome)
	}
	if rec.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}

	path := s.Path(rec.Domain)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // sync already called, close best-effort
	}()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return f.Sync()
}

// ReadDomain returns every record for a domain in insertion order.
// A missing ledger yields an empty slice; an unparsable line fails closed
// with ErrCorrupt rather than being skipped.
func (s *Store) ReadDomain(domain string) (records []Record, err error) {
	if !ValidDomainName(domain) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomainName, domain)
	}

	path := s.Path(domain)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorrupt, path, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, nil
}

// ReadAll returns records across every domain, ordered by timestamp.
func (s *Store) ReadAll() ([]Record, error) {
	domains, err := s.Domains()
	if err != nil {
		return nil, err
	}

	var all []Record
	for _, domain := range domains {
		records, err := s.ReadDomain(domain)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all, nil
}

// Domains lists every domain with a ledger file, sorted by name.
func (s *Store) Domains() ([]string, error) {
	dir := filepath.Join(s.baseDir, LedgerDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger directory: %w", err)
	}

	var domains []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		domains = append(domains, strings.TrimSuffix(e.Name(), ".jsonl"))
	}
	sort.Strings(domains)
	return domains, nil
}

// Trailing returns the last n records for a domain.
func (s *Store) Trailing(domain string, n int) (*Window, error) {
	records, err := s.ReadDomain(domain)
	if err != nil {
		return nil, err
	}
	return trailingWindow(records, n), nil
}

// TrailingAll returns the last n records across all domains.
func (s *Store) TrailingAll(n int) (*Window, error) {
	records, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	return trailingWindow(records, n), nil
}

// Range returns all records with from <= timestamp < to, ordered by timestamp.
func (s *Store) Range(from, to time.Time) ([]Record, error) {
	all, err := s.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, rec := range all {
		if rec.Timestamp.Before(from) || !rec.Timestamp.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// TrailingOf windows already-read records, for callers that also need the
// full record list.
func TrailingOf(records []Record, n int) *Window {
	return trailingWindow(records, n)
}

func trailingWindow(records []Record, n int) *Window {
	w := &Window{Requested: n}
	if len(records) < n {
		w.Records = records
		return w
	}
	w.Records = records[len(records)-n:]
	w.Complete = true
	return w
}
