// Package responder implements the responder half of the SPDM
// authentication and session-establishment protocol: a ProcessRequest
// dispatcher plus one handler per verb, each running the inverse of the
// requester's build → transcript-append → send → receive → transcript-append
// → verify → advance-state sequence.
package responder

import "errors"

// Errors returned by this package.
var (
	// ErrUnexpectedRequest is returned when a decoded request's header code
	// does not match the handler dispatch selected for it.
	ErrUnexpectedRequest = errors.New("responder: unexpected request code")

	// ErrOutOfOrder is returned when a verb arrives before the verbs it
	// depends on have been received.
	ErrOutOfOrder = errors.New("responder: request received out of order")

	// ErrNoSession is returned when a session-scoped request (FINISH,
	// PSK_FINISH, a secured application message, END_SESSION) cannot be
	// correlated to an in-progress or established session.
	ErrNoSession = errors.New("responder: session not found")

	// ErrNoMeasurements is returned when GET_MEASUREMENTS or a measurement
	// summary hash is requested but no MeasurementBlocksFunc was
	// configured.
	ErrNoMeasurements = errors.New("responder: no measurement provider configured")

	// ErrNoPSK is returned when PSK_EXCHANGE is requested but no
	// PSKLookupFunc was configured, or the hint does not resolve.
	ErrNoPSK = errors.New("responder: no PSK available for the requested hint")

	// ErrAlgorithmMismatch is returned when NEGOTIATE_ALGORITHMS shares no
	// common bit with the local endpoint for a mandatory algorithm
	// category.
	ErrAlgorithmMismatch = errors.New("responder: no common algorithm with requester")

	// ErrNoAppHandler is returned when a secured application message
	// arrives but no AppHandlerFunc was configured.
	ErrNoAppHandler = errors.New("responder: no application handler configured")

	// ErrMutualAuthNotSupported is returned when a FINISH request carries
	// a mutual-auth signature but no encapsulated sub-dialogue ran to
	// completion to establish which certificate it should verify against.
	ErrMutualAuthNotSupported = errors.New("responder: mutual-auth FINISH without a completed encapsulated dialogue")
)
