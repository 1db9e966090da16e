package models

import "errors"

// Store-level sentinels. Every store implementation returns these so callers can tell the
// expected outcomes apart from infrastructure failures.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDatesUnavailable = errors.New("requested dates are unavailable")
	ErrStatusChanged    = errors.New("booking status changed concurrently")
	ErrDuplicateEvent   = errors.New("event already processed")
)
