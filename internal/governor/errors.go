package governor

import "errors"

// ErrUnknownDomain is returned when an operation names a domain with no
// ledger and no persisted state.
var ErrUnknownDomain = errors.New("unknown domain")
