package wire

import "encoding/binary"

// OpaqueSpecIDDMTF is the SpecId header of the general opaque data table
// ("DMTF" little-endian), the only table format this module emits or
// accepts inside KEY_EXCHANGE/PSK_EXCHANGE opaque fields.
const OpaqueSpecIDDMTF uint32 = 0x444D5446

// OpaqueTableVersion is the one-byte version of the general opaque data
// table format.
const OpaqueTableVersion uint8 = 0x01

// OpaqueRegistryDMTF is the registry id tagging an element as
// DMTF-defined secured-message data.
const OpaqueRegistryDMTF uint8 = 0x00

// SMDataID values for DMTF-registry opaque elements: the secured-message
// version negotiation carried piggyback on session establishment.
const (
	SMDataVersionSelection uint8 = 0x00
	SMDataSupportedVersion uint8 = 0x01
)

// Secured-message specification versions, in the 16-bit
// major/minor/update/alpha nibble encoding version numbers use on the
// wire.
const (
	SecuredMessageVersion10 uint16 = 0x1000
	SecuredMessageVersion11 uint16 = 0x1100
)

// OpaqueElement is one element of the general opaque data table.
type OpaqueElement struct {
	RegistryID uint8
	SMDataID   uint8
	Data       []byte
}

// OpaqueTable is the general opaque data table: a SpecId-tagged list of
// registry-scoped elements.
type OpaqueTable struct {
	Elements []OpaqueElement
}

// Encode returns the wire encoding of the table.
func (t OpaqueTable) Encode() []byte {
	out := binary.LittleEndian.AppendUint32(nil, OpaqueSpecIDDMTF)
	out = append(out, OpaqueTableVersion, uint8(len(t.Elements)))
	for _, e := range t.Elements {
		out = append(out, e.RegistryID, 0) // vendor id length 0: DMTF registry
		out = binary.LittleEndian.AppendUint16(out, uint16(1+len(e.Data)))
		out = append(out, e.SMDataID)
		out = append(out, e.Data...)
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
	}
	return out
}

// DecodeOpaqueTable parses a general opaque data table.
func DecodeOpaqueTable(b []byte) (OpaqueTable, error) {
	if len(b) < 6 {
		return OpaqueTable{}, ErrTruncated
	}
	if binary.LittleEndian.Uint32(b[0:4]) != OpaqueSpecIDDMTF || b[4] != OpaqueTableVersion {
		return OpaqueTable{}, ErrUnknownOpaqueFormat
	}
	count := int(b[5])
	rest := b[6:]

	var t OpaqueTable
	for i := 0; i < count; i++ {
		if len(rest) < 4 {
			return OpaqueTable{}, ErrTruncated
		}
		registry := rest[0]
		vendorLen := int(rest[1])
		dataLen := int(binary.LittleEndian.Uint16(rest[2:4]))
		rest = rest[4:]
		if len(rest) < vendorLen+dataLen || dataLen < 1 {
			return OpaqueTable{}, ErrTruncated
		}
		rest = rest[vendorLen:]
		t.Elements = append(t.Elements, OpaqueElement{
			RegistryID: registry,
			SMDataID:   rest[0],
			Data:       rest[1:dataLen],
		})
		rest = rest[dataLen:]
		// Skip the element's alignment padding.
		consumed := 4 + vendorLen + dataLen
		for pad := (4 - consumed%4) % 4; pad > 0 && len(rest) > 0; pad-- {
			rest = rest[1:]
		}
	}
	return t, nil
}

// OpaqueSupportedVersions builds the table a requester sends in
// KEY_EXCHANGE/PSK_EXCHANGE: the secured-message versions it can speak.
func OpaqueSupportedVersions(versions ...uint16) []byte {
	data := []byte{uint8(len(versions))}
	for _, v := range versions {
		data = binary.LittleEndian.AppendUint16(data, v)
	}
	return OpaqueTable{Elements: []OpaqueElement{{
		RegistryID: OpaqueRegistryDMTF,
		SMDataID:   SMDataSupportedVersion,
		Data:       data,
	}}}.Encode()
}

// OpaqueVersionSelection builds the table a responder returns: the single
// secured-message version it selected.
func OpaqueVersionSelection(version uint16) []byte {
	return OpaqueTable{Elements: []OpaqueElement{{
		RegistryID: OpaqueRegistryDMTF,
		SMDataID:   SMDataVersionSelection,
		Data:       binary.LittleEndian.AppendUint16(nil, version),
	}}}.Encode()
}

// SelectOpaqueVersion picks the highest version common to a received
// SUPPORTED_VERSION element and the versions this endpoint speaks.
// ok is false when the tables share no version (or none was offered).
func SelectOpaqueVersion(table OpaqueTable, speak []uint16) (uint16, bool) {
	var best uint16
	var found bool
	for _, e := range table.Elements {
		if e.RegistryID != OpaqueRegistryDMTF || e.SMDataID != SMDataSupportedVersion {
			continue
		}
		if len(e.Data) < 1 {
			continue
		}
		count := int(e.Data[0])
		offered := e.Data[1:]
		for i := 0; i < count && (i+1)*2 <= len(offered); i++ {
			v := binary.LittleEndian.Uint16(offered[i*2 : i*2+2])
			for _, s := range speak {
				if v == s && (!found || v > best) {
					best, found = v, true
				}
			}
		}
	}
	return best, found
}
