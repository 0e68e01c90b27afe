package audit

import "errors"

// ErrCorrupt is returned when the audit log cannot be parsed.
var ErrCorrupt = errors.New("audit log corrupt")
