// Package requester implements the requester half of the SPDM
// authentication and session-establishment protocol: one exported method
// per verb, each following the same build → transcript-append → send →
// receive → transcript-append → verify → advance-state sequence spec.md
// §4.6 describes.
package requester

import "errors"

// Errors returned by this package.
var (
	// ErrUnexpectedResponse is returned when a response's header code does
	// not match what the verb expects.
	ErrUnexpectedResponse = errors.New("requester: unexpected response code")

	// ErrPeerError is returned when the responder replied with an SPDM
	// ERROR other than Busy or ResponseNotReady.
	ErrPeerError = errors.New("requester: peer returned an error")

	// ErrRetriesExhausted is returned when Busy/ResponseNotReady retries
	// run out without a successful response.
	ErrRetriesExhausted = errors.New("requester: retries exhausted")

	// ErrCapabilityNotSupported is returned when a verb is attempted
	// without the required capability flag negotiated on both sides.
	ErrCapabilityNotSupported = errors.New("requester: capability not negotiated")

	// ErrVerifyFailed is returned when a signature or digest check over a
	// peer response fails.
	ErrVerifyFailed = errors.New("requester: verification failed")

	// ErrNoSession is returned when SendReceiveData or EndSession is
	// called with a session id that isn't active.
	ErrNoSession = errors.New("requester: session not found")
)
