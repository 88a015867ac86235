// Package establish implements the two session-establishment state
// machines SPDM defines: KEY_EXCHANGE/FINISH (asymmetric, DHE-based) and
// PSK_EXCHANGE/PSK_FINISH (pre-shared-key based). Both are driven from
// pkg/requester and pkg/responder, which own message transport; this
// package owns the cryptographic sequencing and the transcript-bound
// verify-data checks.
package establish

import "errors"

// Errors returned by this package.
var (
	// ErrWrongState is returned when a handshake method is called out of
	// its expected sequence.
	ErrWrongState = errors.New("establish: handshake method called out of sequence")

	// ErrVerifyDataMismatch is returned when a FINISH/PSK_FINISH
	// verify-data HMAC does not match what the transcript predicts.
	ErrVerifyDataMismatch = errors.New("establish: verify-data mismatch")

	// ErrNoCommonSecuredVersion is returned when the peers' opaque-data
	// version tables share no secured-message specification version.
	ErrNoCommonSecuredVersion = errors.New("establish: no common secured-message version")
)
