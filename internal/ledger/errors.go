package ledger

import "errors"

// Sentinel errors for the ledger package. Using sentinels instead of ad-hoc
// fmt.Errorf allows callers to match with errors.Is for reliable error handling.
var (
	// ErrCorrupt is returned when a ledger file cannot be parsed. Readers
	// fail closed on the first bad line; nothing is inferred from a ledger
	// that cannot be read in full.
	ErrCorrupt = errors.New("ledger corrupt")

	// ErrInvalidDomainName is returned when a domain name is unsafe as a
	// ledger key.
	ErrInvalidDomainName = errors.New("invalid domain name")

	// ErrInvalidOutcome is returned for an outcome outside correct/regret.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrZeroTimestamp is returned when a record is appended without a timestamp.
	ErrZeroTimestamp = errors.New("record timestamp is required")
)
