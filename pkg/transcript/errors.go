package transcript

import "errors"

// Errors returned by this package.
var (
	// ErrUnknownLedger is returned when a Ledger value outside the
	// declared range is used.
	ErrUnknownLedger = errors.New("transcript: unknown ledger")
)
