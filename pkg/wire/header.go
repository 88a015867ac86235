package wire

// Header is the fixed 4-byte SPDM message header carried by every request
// and response.
type Header struct {
	SPDMVersion uint8
	Code        Code
	Param1      uint8
	Param2      uint8
}

// HeaderSize is the encoded size of Header in bytes.
const HeaderSize = 4

// Encode appends the header to dst and returns the result.
func (h Header) Encode(dst []byte) []byte {
	return append(dst, h.SPDMVersion, uint8(h.Code), h.Param1, h.Param2)
}

// DecodeHeader reads a Header from the front of b.
func DecodeHeader(b []byte) (Header, []byte, error) {
	if len(b) < HeaderSize {
		return Header{}, nil, ErrTruncated
	}
	h := Header{
		SPDMVersion: b[0],
		Code:        Code(b[1]),
		Param1:      b[2],
		Param2:      b[3],
	}
	return h, b[HeaderSize:], nil
}
