// Package session implements the SPDM secure-session registry, key
// schedule, and secured-message AEAD codec.
package session

import (
	"errors"
	"fmt"
)

// Errors returned by this package.
var (
	// ErrTableFull is returned when no more sessions can be assigned.
	ErrTableFull = errors.New("session: session table full")

	// ErrDuplicateSession is returned when the composite 32-bit session id
	// formed by a new assignment collides with an active session.
	ErrDuplicateSession = errors.New("session: duplicate session id")

	// ErrNotFound is returned when a session lookup fails.
	ErrNotFound = errors.New("session: session not found")

	// ErrSequenceExhausted is returned when a session's sequence number
	// has reached its maximum and the session must be re-established.
	ErrSequenceExhausted = errors.New("session: sequence number exhausted")

	// ErrDecryptFailed is returned when AEAD authentication fails on a
	// received secured message.
	ErrDecryptFailed = errors.New("session: decryption failed")

	// ErrReplay is returned when a received sequence number is not
	// greater than the last one accepted. It unwraps to ErrDecryptFailed
	// so callers that only branch on decrypt failure see nothing more
	// specific than that.
	ErrReplay = fmt.Errorf("%w: replayed sequence number", ErrDecryptFailed)

	// ErrNotEstablished is returned when Encrypt/Decrypt is called before
	// any traffic keys are installed, or after the session is terminated.
	ErrNotEstablished = errors.New("session: session not yet established")

	// ErrInvalidRole is returned for a Role value outside RoleRequester/
	// RoleResponder.
	ErrInvalidRole = errors.New("session: invalid role")
)
