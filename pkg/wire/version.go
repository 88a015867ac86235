package wire

import "encoding/binary"

// VersionEntry is one entry of the VERSION response's version number
// table.
type VersionEntry struct {
	// UpdateVersionNumber, Alpha, and MajorMinor together form the
	// 16-bit encoded version, stored here pre-split for readability.
	MajorMinor          uint8
	UpdateVersionNumber uint8
}

// GetVersion is the GET_VERSION request. It carries no body beyond the
// header.
type GetVersion struct{ Header Header }

// Encode returns the wire encoding of the request.
func (m GetVersion) Encode() []byte {
	m.Header.Code = CodeGetVersion
	return m.Header.Encode(nil)
}

// DecodeGetVersion parses a GET_VERSION request.
func DecodeGetVersion(b []byte) (GetVersion, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return GetVersion{}, err
	}
	return GetVersion{Header: h}, nil
}

// Version is the VERSION response: the list of SPDM versions the
// responder supports.
type Version struct {
	Header   Header
	Versions []VersionEntry
}

// Encode returns the wire encoding of the response.
func (m Version) Encode() []byte {
	m.Header.Code = CodeVersion
	out := m.Header.Encode(nil)
	out = append(out, 0) // reserved
	out = append(out, uint8(len(m.Versions)))
	for _, v := range m.Versions {
		var entry uint16 = uint16(v.UpdateVersionNumber) | uint16(v.MajorMinor)<<8
		out = binary.LittleEndian.AppendUint16(out, entry)
	}
	return out
}

// DecodeVersion parses a VERSION response.
func DecodeVersion(b []byte) (Version, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return Version{}, err
	}
	if len(rest) < 2 {
		return Version{}, ErrTruncated
	}
	count := int(rest[1])
	rest = rest[2:]
	if len(rest) < count*2 {
		return Version{}, ErrTruncated
	}
	versions := make([]VersionEntry, count)
	for i := 0; i < count; i++ {
		entry := binary.LittleEndian.Uint16(rest[i*2:])
		versions[i] = VersionEntry{
			UpdateVersionNumber: uint8(entry & 0xFF),
			MajorMinor:          uint8(entry >> 8),
		}
	}
	return Version{Header: h, Versions: versions}, nil
}
