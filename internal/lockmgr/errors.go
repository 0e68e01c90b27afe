package lockmgr

import "errors"

// ErrNotLocked is returned when an unlock targets a domain that is not locked.
var ErrNotLocked = errors.New("domain is not locked")
