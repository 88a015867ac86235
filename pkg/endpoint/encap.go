package endpoint

// EncapState identifies where a responder is in the encapsulated
// (mutual-auth) sub-dialogue it runs against the requester.
type EncapState int

// Encapsulated sub-dialogue states.
const (
	EncapNotStarted EncapState = iota
	EncapNeedDigests
	EncapNeedCertificate
	EncapNeedChallenge
	EncapDone
)

// EncapContext tracks one in-progress encapsulated request sub-dialogue,
// including partial certificate-chain reassembly across fragmented
// GET_CERTIFICATE-style responses.
type EncapContext struct {
	State           EncapState
	RequestID       uint8
	CertFragmentIdx int
	CertChainBuffer []byte
}

// Reset returns the context to its idle state.
func (e *EncapContext) Reset() {
	*e = EncapContext{}
}
