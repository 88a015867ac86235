// Package spdmerr provides the shared error-kind taxonomy used across the
// SPDM endpoint packages. Every package still declares its own sentinel
// errors; this package lets callers classify any of them without importing
// the package that defined it.
package spdmerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way the underlying protocol distinguishes
// them: a caller can react to a Kind without knowing which package raised
// the sentinel error behind it.
type Kind int

const (
	// Unknown is the zero value; KindOf returns it for errors not wrapped
	// with a Kind.
	Unknown Kind = iota

	// InvalidParameter marks a caller-supplied argument that is malformed
	// or out of range.
	InvalidParameter

	// Unsupported marks a request for a capability, algorithm, or data
	// item the local endpoint does not support.
	Unsupported

	// BufferOverflow marks an attempt to grow a bounded buffer (a
	// transcript ledger, a certificate chain) past its fixed capacity.
	BufferOverflow

	// AccessDenied marks a write to a data item the host is not permitted
	// to change at the current connection state.
	AccessDenied

	// DeviceError marks a protocol-sequencing violation: a verb arrived
	// out of order, a peer message was malformed, or the local state
	// machine rejected a transition.
	DeviceError

	// SecurityViolation marks a failed signature, HMAC, or AEAD check.
	SecurityViolation

	// NotReady marks an operation that depends on work the endpoint has
	// not finished yet (e.g. a slow certificate lookup); the caller
	// should retry later.
	NotReady

	// SessionFull marks an attempt to establish a session when the
	// session registry is already at capacity.
	SessionFull

	// SessionDuplicate marks an attempt to assign a session ID that
	// collides with an active session.
	SessionDuplicate

	// SessionNotFound marks a lookup for a session ID that isn't active.
	SessionNotFound

	// SequenceExhausted marks a secured-message sequence number that has
	// reached its maximum and cannot be incremented again.
	SequenceExhausted
)

func (k Kind) String() string {
	switch k {
	case InvalidParameter:
		return "invalid_parameter"
	case Unsupported:
		return "unsupported"
	case BufferOverflow:
		return "buffer_overflow"
	case AccessDenied:
		return "access_denied"
	case DeviceError:
		return "device_error"
	case SecurityViolation:
		return "security_violation"
	case NotReady:
		return "not_ready"
	case SessionFull:
		return "session_full"
	case SessionDuplicate:
		return "session_duplicate"
	case SessionNotFound:
		return "session_not_found"
	case SequenceExhausted:
		return "sequence_exhausted"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return fmt.Sprintf("%s: %v", e.kind, e.err) }
func (e *kindError) Unwrap() error { return e.err }

// Wrap attaches kind to err. The result still unwraps to err, so
// errors.Is/errors.As against the original sentinel keeps working.
func (k Kind) Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: k, err: err}
}

// KindOf reports the Kind attached via Wrap, or Unknown if err was never
// wrapped.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Unknown
}
