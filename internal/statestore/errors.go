package statestore

import "errors"

// Sentinel errors for the statestore package.
var (
	// ErrNotFound is returned when a scope has no persisted state yet.
	ErrNotFound = errors.New("state not found")

	// ErrCorrupt is returned when a state file exists but cannot be parsed.
	// Fail closed: no level is ever defaulted from corrupted input.
	ErrCorrupt = errors.New("state corrupt")

	// ErrLockContention is returned when a scope's mutation lock cannot be
	// acquired within the bounded timeout. Retryable: evaluation is an
	// idempotent batch, safe to rerun from scratch.
	ErrLockContention = errors.New("scope lock contention")
)
