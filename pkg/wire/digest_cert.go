package wire

import "encoding/binary"

// GetDigests is the GET_DIGESTS request. It carries no body beyond the
// header.
type GetDigests struct{ Header Header }

// Encode returns the wire encoding of the request.
func (m GetDigests) Encode() []byte {
	m.Header.Code = CodeGetDigests
	return m.Header.Encode(nil)
}

// DecodeGetDigests parses a GET_DIGESTS request.
func DecodeGetDigests(b []byte) (GetDigests, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return GetDigests{}, err
	}
	return GetDigests{Header: h}, nil
}

// Digests is the DIGESTS response: one certificate-chain digest per
// provisioned slot. Param2 of the header carries the slot-mask
// (bit i set means slot i is provisioned).
type Digests struct {
	Header  Header
	Digests [][]byte // one per set bit in Header.Param2, in ascending slot order
}

// Encode returns the wire encoding of the response.
func (m Digests) Encode() []byte {
	m.Header.Code = CodeDigests
	var mask uint8
	for i := range m.Digests {
		mask |= 1 << uint(i)
	}
	m.Header.Param2 = mask
	out := m.Header.Encode(nil)
	for _, d := range m.Digests {
		out = append(out, d...)
	}
	return out
}

// DecodeDigests parses a DIGESTS response. digestSize is the negotiated
// hash algorithm's output size.
func DecodeDigests(b []byte, digestSize int) (Digests, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return Digests{}, err
	}
	count := popcount8(h.Param2)
	if len(rest) < count*digestSize {
		return Digests{}, ErrTruncated
	}
	digests := make([][]byte, count)
	for i := 0; i < count; i++ {
		digests[i] = rest[i*digestSize : (i+1)*digestSize]
	}
	return Digests{Header: h, Digests: digests}, nil
}

func popcount8(b uint8) int {
	n := 0
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	return n
}

// GetCertificate is the GET_CERTIFICATE request. Param1 is the requested
// slot id; the offset/length pair supports fragmented retrieval of large
// chains.
type GetCertificate struct {
	Header Header
	Offset uint16
	Length uint16
}

// Encode returns the wire encoding of the request.
func (m GetCertificate) Encode() []byte {
	m.Header.Code = CodeGetCertificate
	out := m.Header.Encode(nil)
	out = binary.LittleEndian.AppendUint16(out, m.Offset)
	out = binary.LittleEndian.AppendUint16(out, m.Length)
	return out
}

// DecodeGetCertificate parses a GET_CERTIFICATE request.
func DecodeGetCertificate(b []byte) (GetCertificate, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return GetCertificate{}, err
	}
	if len(rest) < 4 {
		return GetCertificate{}, ErrTruncated
	}
	return GetCertificate{
		Header: h,
		Offset: binary.LittleEndian.Uint16(rest[0:2]),
		Length: binary.LittleEndian.Uint16(rest[2:4]),
	}, nil
}

// Certificate is the CERTIFICATE response: one fragment of the requested
// slot's DER certificate chain, plus the chain's total length.
type Certificate struct {
	Header          Header
	PortionLength   uint16
	RemainderLength uint16
	CertChain       []byte
}

// Encode returns the wire encoding of the response.
func (m Certificate) Encode() []byte {
	m.Header.Code = CodeCertificate
	out := m.Header.Encode(nil)
	out = binary.LittleEndian.AppendUint16(out, m.PortionLength)
	out = binary.LittleEndian.AppendUint16(out, m.RemainderLength)
	out = append(out, m.CertChain...)
	return out
}

// DecodeCertificate parses a CERTIFICATE response.
func DecodeCertificate(b []byte) (Certificate, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return Certificate{}, err
	}
	if len(rest) < 4 {
		return Certificate{}, ErrTruncated
	}
	portion := binary.LittleEndian.Uint16(rest[0:2])
	remainder := binary.LittleEndian.Uint16(rest[2:4])
	rest = rest[4:]
	if len(rest) < int(portion) {
		return Certificate{}, ErrTruncated
	}
	return Certificate{
		Header:          h,
		PortionLength:   portion,
		RemainderLength: remainder,
		CertChain:       rest[:portion],
	}, nil
}
