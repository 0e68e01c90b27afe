package alerts

import "errors"

// Sentinel errors for the alerts package.
var (
	// ErrNoBreach is returned when an alert is requested for a transition
	// that was not breach-driven.
	ErrNoBreach = errors.New("transition carries no breach")

	// ErrUnknownBreach is returned for a breach kind with no mapped
	// remediation action.
	ErrUnknownBreach = errors.New("unknown breach kind")

	// ErrCorrupt is returned when the alert log cannot be parsed.
	ErrCorrupt = errors.New("alert log corrupt")
)
