// Package encap implements the encapsulated request sub-dialogue an SPDM
// responder drives to authenticate the requester: a nested
// GET_DIGESTS → GET_CERTIFICATE → CHALLENGE exchange tunneled inside
// ENCAPSULATED_REQUEST/ENCAPSULATED_RESPONSE_ACK envelopes, with its own
// MutB/MutC transcript ledgers. The Driver runs on the responder (the
// side that initiated mutual auth); the Answerer runs on the requester
// (the side being authenticated). Both advance an explicit state enum
// rather than nesting blocking calls, so a half-finished dialogue is
// inspectable and cannot re-enter itself.
package encap

import "errors"

// Errors returned by this package.
var (
	// ErrWrongState is returned when a driver method is called outside
	// the dialogue step it belongs to.
	ErrWrongState = errors.New("encap: sub-dialogue method called out of sequence")

	// ErrUnexpectedMessage is returned when a nested message's code does
	// not match what the current dialogue step expects.
	ErrUnexpectedMessage = errors.New("encap: unexpected nested message code")

	// ErrNoCertificate is returned when the peer's DIGESTS response
	// advertises no provisioned slot to authenticate against.
	ErrNoCertificate = errors.New("encap: peer has no certificate slot provisioned")

	// ErrVerifyFailed is returned when the nested CHALLENGE_AUTH's
	// certificate-chain hash or signature does not verify.
	ErrVerifyFailed = errors.New("encap: mutual-auth verification failed")
)
