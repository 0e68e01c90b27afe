// Package regret computes windowed correctness statistics over decision
// records. Everything here is pure: functions take already-read records and
// never touch storage, so they are safe to call without any lock held.
package regret

import (
	"fmt"
	"time"

	"github.com/gardenops/cli/internal/ledger"
)

// Metrics summarizes a trailing window of graded decisions.
// When Insufficient is true the window was not fully populated and the
// numeric fields carry no verdict: absence of data is not evidence of failure.
type Metrics struct {
	RegretRate   float64
	Accuracy     float64
	SampleSize   int
	Insufficient bool
}

// FromWindow computes regret/accuracy over a trailing window.
func FromWindow(w *ledger.Window) Metrics {
	if !w.Complete {
		return Metrics{SampleSize: len(w.Records), Insufficient: true}
	}
	return fromRecords(w.Records)
}

func fromRecords(records []ledger.Record) Metrics {
	m := Metrics{SampleSize: len(records)}
	if m.SampleSize == 0 {
		m.Insufficient = true
		return m
	}

	regrets := 0
	for _, rec := range records {
		if rec.Outcome == ledger.OutcomeRegret {
			regrets++
		}
	}
	m.RegretRate = float64(regrets) / float64(m.SampleSize)
	m.Accuracy = 1 - m.RegretRate
	return m
}

// Comparison selects how a period-over-period regret increase is measured.
type Comparison string

const (
	// ComparisonAbsolute measures the increase in percentage points:
	// current_rate - previous_rate.
	ComparisonAbsolute Comparison = "absolute"

	// ComparisonRelative measures the fractional increase over the previous
	// rate: (current_rate - previous_rate) / previous_rate. Undefined when
	// the previous rate is zero.
	ComparisonRelative Comparison = "relative"
)

// ParseComparison normalizes a comparison mode string.
func ParseComparison(s string) (Comparison, error) {
	switch Comparison(s) {
	case ComparisonAbsolute, "":
		return ComparisonAbsolute, nil
	case ComparisonRelative:
		return ComparisonRelative, nil
	}
	return "", fmt.Errorf("%w: %q (want absolute or relative)", ErrInvalidComparison, s)
}

// PeriodDelta is the result of comparing the current period's regret rate
// against the previous period's.
type PeriodDelta struct {
	CurrentRate     float64
	PreviousRate    float64
	CurrentSamples  int
	PreviousSamples int

	// Increase is the regret increase per the chosen comparison mode.
	// Negative values mean regret fell.
	Increase float64

	Mode Comparison
}

// PeriodOverPeriod compares regret in [now-period, now) against
// [now-2*period, now-period). The previous period must contain at least
// minSamples records or the comparison is ambiguous (ErrAmbiguousPeriod):
// without a well-defined prior period there is no demotion signal, only an
// explicit refusal to produce one.
func PeriodOverPeriod(records []ledger.Record, now time.Time, period time.Duration, mode Comparison, minSamples int) (*PeriodDelta, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: non-positive period %s", ErrAmbiguousPeriod, period)
	}
	if minSamples < 1 {
		minSamples = 1
	}

	currentStart := now.Add(-period)
	previousStart := now.Add(-2 * period)

	var current, previous []ledger.Record
	for _, rec := range records {
		switch {
		case !rec.Timestamp.Before(currentStart) && rec.Timestamp.Before(now):
			current = append(current, rec)
		case !rec.Timestamp.Before(previousStart) && rec.Timestamp.Before(currentStart):
			previous = append(previous, rec)
		}
	}

	if len(previous) < minSamples {
		return nil, fmt.Errorf("%w: previous period has %d of %d required samples",
			ErrAmbiguousPeriod, len(previous), minSamples)
	}

	delta := &PeriodDelta{
		CurrentRate:     rate(current),
		PreviousRate:    rate(previous),
		CurrentSamples:  len(current),
		PreviousSamples: len(previous),
		Mode:            mode,
	}

	switch mode {
	case ComparisonRelative:
		if delta.PreviousRate == 0 {
			return nil, fmt.Errorf("%w: relative comparison against zero previous regret", ErrAmbiguousPeriod)
		}
		delta.Increase = (delta.CurrentRate - delta.PreviousRate) / delta.PreviousRate
	default:
		delta.Increase = delta.CurrentRate - delta.PreviousRate
	}
	return delta, nil
}

func rate(records []ledger.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	regrets := 0
	for _, rec := range records {
		if rec.Outcome == ledger.OutcomeRegret {
			regrets++
		}
	}
	return float64(regrets) / float64(len(records))
}
