package wire

import "encoding/binary"

// CapabilityFlags mirrors SPDM_DEVICE_CAPABILITY.Flags: a bitmask of the
// optional protocol features an endpoint implements.
type CapabilityFlags uint32

// Capability flag bits (subset relevant to this module's scope).
const (
	CapCertCap           CapabilityFlags = 1 << 1
	CapChalCap           CapabilityFlags = 1 << 2
	CapMeasCap           CapabilityFlags = 1 << 3
	CapMeasFreshCap      CapabilityFlags = 1 << 4
	CapEncryptCap        CapabilityFlags = 1 << 5
	CapMacCap            CapabilityFlags = 1 << 6
	CapMutAuthCap        CapabilityFlags = 1 << 7
	CapKeyExCap          CapabilityFlags = 1 << 8
	CapPSKCap            CapabilityFlags = 1 << 9
	CapEncapCap          CapabilityFlags = 1 << 11
	CapHBeatCap          CapabilityFlags = 1 << 12
	CapKeyUpdCap         CapabilityFlags = 1 << 13
	CapHandshakeInClear  CapabilityFlags = 1 << 14
	CapPubKeyIDCap       CapabilityFlags = 1 << 15
)

// GetCapabilities is the GET_CAPABILITIES request.
type GetCapabilities struct {
	Header    Header
	CTExponent uint8
	Flags     CapabilityFlags
}

// Encode returns the wire encoding of the request.
func (m GetCapabilities) Encode() []byte {
	m.Header.Code = CodeGetCapabilities
	out := m.Header.Encode(nil)
	out = append(out, 0, 0, m.CTExponent, 0, 0, 0)
	out = binary.LittleEndian.AppendUint32(out, uint32(m.Flags))
	return out
}

// DecodeGetCapabilities parses a GET_CAPABILITIES request.
func DecodeGetCapabilities(b []byte) (GetCapabilities, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return GetCapabilities{}, err
	}
	if len(rest) < 10 {
		return GetCapabilities{}, ErrTruncated
	}
	return GetCapabilities{
		Header:     h,
		CTExponent: rest[2],
		Flags:      CapabilityFlags(binary.LittleEndian.Uint32(rest[6:10])),
	}, nil
}

// Capabilities is the CAPABILITIES response.
type Capabilities struct {
	Header     Header
	CTExponent uint8
	Flags      CapabilityFlags
}

// Encode returns the wire encoding of the response.
func (m Capabilities) Encode() []byte {
	m.Header.Code = CodeCapabilities
	out := m.Header.Encode(nil)
	out = append(out, 0, 0, m.CTExponent, 0, 0, 0)
	out = binary.LittleEndian.AppendUint32(out, uint32(m.Flags))
	return out
}

// DecodeCapabilities parses a CAPABILITIES response.
func DecodeCapabilities(b []byte) (Capabilities, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return Capabilities{}, err
	}
	if len(rest) < 10 {
		return Capabilities{}, ErrTruncated
	}
	return Capabilities{
		Header:     h,
		CTExponent: rest[2],
		Flags:      CapabilityFlags(binary.LittleEndian.Uint32(rest[6:10])),
	}, nil
}
