package regret

import "errors"

// Sentinel errors for the regret package.
var (
	// ErrAmbiguousPeriod is returned when a period-over-period comparison
	// cannot establish a well-defined previous period. Callers must treat
	// this as "no demotion", never as a silent pass.
	ErrAmbiguousPeriod = errors.New("ambiguous comparison period")

	// ErrInvalidComparison is returned for an unrecognized comparison mode.
	ErrInvalidComparison = errors.New("invalid comparison mode")
)
