package wire

import "encoding/binary"

// NonceSize is the fixed size of the random nonce exchanged in CHALLENGE
// and KEY_EXCHANGE.
const NonceSize = 32

// Challenge is the CHALLENGE request. Param1 is the slot id being
// challenged (or SlotNone); Param2 is the requested
// MeasurementSummaryHashType.
type Challenge struct {
	Header Header
	Nonce  [NonceSize]byte
}

// Encode returns the wire encoding of the request.
func (m Challenge) Encode() []byte {
	m.Header.Code = CodeChallenge
	out := m.Header.Encode(nil)
	out = append(out, m.Nonce[:]...)
	return out
}

// DecodeChallenge parses a CHALLENGE request.
func DecodeChallenge(b []byte) (Challenge, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return Challenge{}, err
	}
	if len(rest) < NonceSize {
		return Challenge{}, ErrTruncated
	}
	var m Challenge
	m.Header = h
	copy(m.Nonce[:], rest[:NonceSize])
	return m, nil
}

// ChallengeAuth is the CHALLENGE_AUTH response, in the field order
// SpdmResponderLibChallengeAuth.c assembles it: cert-chain hash, then the
// responder's nonce, the (possibly empty) measurement summary hash,
// opaque data, and finally the signature over the accumulated transcript.
type ChallengeAuth struct {
	Header                Header
	CertChainHash         []byte
	Nonce                 [NonceSize]byte
	MeasurementSummaryHash []byte
	OpaqueData            []byte
	Signature             []byte
}

// Encode returns the wire encoding of the response.
func (m ChallengeAuth) Encode() []byte {
	m.Header.Code = CodeChallengeAuth
	out := m.Header.Encode(nil)
	out = append(out, m.CertChainHash...)
	out = append(out, m.Nonce[:]...)
	out = append(out, m.MeasurementSummaryHash...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.OpaqueData)))
	out = append(out, m.OpaqueData...)
	out = append(out, m.Signature...)
	return out
}

// DecodeChallengeAuth parses a CHALLENGE_AUTH response. hashSize and
// summaryHashSize are the negotiated digest sizes (summaryHashSize is 0
// when the request's MeasurementSummaryHashType was
// MeasurementSummaryNone); sigSize is the negotiated signature size.
func DecodeChallengeAuth(b []byte, hashSize, summaryHashSize, sigSize int) (ChallengeAuth, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return ChallengeAuth{}, err
	}

	need := hashSize + NonceSize + summaryHashSize + 2
	if len(rest) < need {
		return ChallengeAuth{}, ErrTruncated
	}

	var m ChallengeAuth
	m.Header = h
	m.CertChainHash = rest[:hashSize]
	rest = rest[hashSize:]
	copy(m.Nonce[:], rest[:NonceSize])
	rest = rest[NonceSize:]
	m.MeasurementSummaryHash = rest[:summaryHashSize]
	rest = rest[summaryHashSize:]

	opaqueLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < opaqueLen+sigSize {
		return ChallengeAuth{}, ErrTruncated
	}
	m.OpaqueData = rest[:opaqueLen]
	rest = rest[opaqueLen:]
	m.Signature = rest[:sigSize]
	return m, nil
}
