package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to append n records with the given outcomes in order.
func appendRecords(t *testing.T, s *Store, domain string, outcomes []Outcome) {
	t.Helper()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, o := range outcomes {
		rec := Record{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Domain:      domain,
			Outcome:     o,
			LevelAtTime: 1,
		}
		if err := s.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func TestAppendReadRoundtrip(t *testing.T) {
	s := New(t.TempDir())
	appendRecords(t, s, "payments", []Outcome{OutcomeCorrect, OutcomeRegret, OutcomeCorrect})

	records, err := s.ReadDomain("payments")
	if err != nil {
		t.Fatalf("ReadDomain: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[1].Outcome != OutcomeRegret {
		t.Errorf("expected second record regret, got %q", records[1].Outcome)
	}
	if !records[0].Timestamp.Before(records[1].Timestamp) {
		t.Error("records not in insertion order")
	}
}

func TestReadDomainMissingIsEmpty(t *testing.T) {
	s := New(t.TempDir())
	records, err := s.ReadDomain("nope")
	if err != nil {
		t.Fatalf("ReadDomain: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestTrailingIncompleteWindow(t *testing.T) {
	s := New(t.TempDir())
	appendRecords(t, s, "payments", []Outcome{OutcomeCorrect, OutcomeCorrect})

	w, err := s.Trailing("payments", 20)
	if err != nil {
		t.Fatalf("Trailing: %v", err)
	}
	if w.Complete {
		t.Error("expected incomplete window with 2 of 20 records")
	}
	if len(w.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(w.Records))
	}
}

func TestTrailingCompleteWindowKeepsLastN(t *testing.T) {
	s := New(t.TempDir())
	outcomes := make([]Outcome, 25)
	for i := range outcomes {
		outcomes[i] = OutcomeCorrect
	}
	outcomes[24] = OutcomeRegret // newest
	appendRecords(t, s, "payments", outcomes)

	w, err := s.Trailing("payments", 20)
	if err != nil {
		t.Fatalf("Trailing: %v", err)
	}
	if !w.Complete {
		t.Fatal("expected complete window")
	}
	if len(w.Records) != 20 {
		t.Fatalf("expected 20 records, got %d", len(w.Records))
	}
	if w.Records[19].Outcome != OutcomeRegret {
		t.Error("trailing window did not keep the newest records")
	}
}

func TestCorruptLedgerFailsClosed(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	appendRecords(t, s, "payments", []Outcome{OutcomeCorrect})

	f, err := os.OpenFile(s.Path("payments"), os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	if _, err := s.ReadDomain("payments"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestDomainsAndReadAllMerged(t *testing.T) {
	s := New(t.TempDir())
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Interleave timestamps across two domains.
	for i := 0; i < 4; i++ {
		domain := "alpha"
		if i%2 == 1 {
			domain = "beta"
		}
		rec := Record{Timestamp: base.Add(time.Duration(i) * time.Hour), Domain: domain, Outcome: OutcomeCorrect}
		if err := s.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	domains, err := s.Domains()
	if err != nil {
		t.Fatalf("Domains: %v", err)
	}
	if len(domains) != 2 || domains[0] != "alpha" || domains[1] != "beta" {
		t.Fatalf("unexpected domains: %v", domains)
	}

	all, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 merged records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatal("merged records out of timestamp order")
		}
	}
}

func TestRangeHalfOpen(t *testing.T) {
	s := New(t.TempDir())
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) // matches appendRecords
	appendRecords(t, s, "alpha", []Outcome{OutcomeCorrect, OutcomeCorrect, OutcomeCorrect})

	from := base.Add(1 * time.Minute) // timestamps are base, base+1m, base+2m
	to := base.Add(2 * time.Minute)
	got, err := s.Range(from, to)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record in [from, to), got %d", len(got))
	}
}

func TestAppendValidation(t *testing.T) {
	s := New(t.TempDir())
	now := time.Now().UTC()

	cases := []struct {
		name string
		rec  Record
		want error
	}{
		{"bad domain", Record{Timestamp: now, Domain: "Bad/Name", Outcome: OutcomeCorrect}, ErrInvalidDomainName},
		{"bad outcome", Record{Timestamp: now, Domain: "ok", Outcome: "maybe"}, ErrInvalidOutcome},
		{"zero timestamp", Record{Domain: "ok", Outcome: OutcomeCorrect}, ErrZeroTimestamp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Append(tc.rec); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseOutcome(t *testing.T) {
	if o, err := ParseOutcome(" Correct "); err != nil || o != OutcomeCorrect {
		t.Errorf("ParseOutcome(correct) = %q, %v", o, err)
	}
	if _, err := ParseOutcome("mistake"); !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("expected ErrInvalidOutcome, got %v", err)
	}
}

func TestDomainFilesDoNotContend(t *testing.T) {
	s := New(t.TempDir())
	appendRecords(t, s, "alpha", []Outcome{OutcomeCorrect})
	appendRecords(t, s, "beta", []Outcome{OutcomeRegret})

	if s.Path("alpha") == s.Path("beta") {
		t.Fatal("domains share a ledger file")
	}
	if filepath.Dir(s.Path("alpha")) != filepath.Dir(s.Path("beta")) {
		t.Fatal("ledgers not colocated under the ledger dir")
	}
}
