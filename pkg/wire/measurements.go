package wire

import "encoding/binary"

// GetMeasurements is the GET_MEASUREMENTS request. Param2 selects which
// measurement block(s) to return (0xFF means all); Param1 bit 0 requests a
// fresh signature.
type GetMeasurements struct {
	Header Header
	Nonce  [NonceSize]byte // present only when Param1 requests signing
}

// Encode returns the wire encoding of the request.
func (m GetMeasurements) Encode() []byte {
	m.Header.Code = CodeGetMeasurements
	out := m.Header.Encode(nil)
	if m.Header.Param1&0x01 != 0 {
		out = append(out, m.Nonce[:]...)
	}
	return out
}

// DecodeGetMeasurements parses a GET_MEASUREMENTS request.
func DecodeGetMeasurements(b []byte) (GetMeasurements, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return GetMeasurements{}, err
	}
	var m GetMeasurements
	m.Header = h
	if h.Param1&0x01 != 0 {
		if len(rest) < NonceSize {
			return GetMeasurements{}, ErrTruncated
		}
		copy(m.Nonce[:], rest[:NonceSize])
	}
	return m, nil
}

// DMTF measurement value type constants, carried in a MeasurementBlock's
// ValueType and masked by MeasurementValueTypeMask. CHALLENGE's
// MeasurementSummaryTCB case includes only blocks whose masked type is
// ImmutableROM.
const (
	MeasurementValueTypeMask          uint8 = 0x7F
	MeasurementValueTypeImmutableROM  uint8 = 0x00
	MeasurementValueTypeMutableFW     uint8 = 0x01
	MeasurementValueTypeHardwareConf  uint8 = 0x02
	MeasurementValueTypeFirmwareConf  uint8 = 0x03
)

// MeasurementBlock is one entry of the MEASUREMENTS response's record
// table. ValueType is the DMTF measurement value type byte (bit 7 marks a
// raw-bitstream value; the low 7 bits, masked by MeasurementValueTypeMask,
// select the type enum CHALLENGE's TCB-component summary masks on).
type MeasurementBlock struct {
	Index           uint8
	MeasurementSpec  uint8
	ValueType       uint8
	MeasurementHash []byte
}

// Measurements is the MEASUREMENTS response.
type Measurements struct {
	Header          Header
	Blocks          []MeasurementBlock
	Nonce           [NonceSize]byte
	OpaqueData      []byte
	Signature       []byte // present only when the request asked for signing
}

// Encode returns the wire encoding of the response.
func (m Measurements) Encode() []byte {
	m.Header.Code = CodeMeasurements
	m.Header.Param1 = uint8(len(m.Blocks))
	out := m.Header.Encode(nil)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(m.recordBytes())))
	out = append(out, m.recordBytes()...)
	out = append(out, m.Nonce[:]...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.OpaqueData)))
	out = append(out, m.OpaqueData...)
	out = append(out, m.Signature...)
	return out
}

func (m Measurements) recordBytes() []byte {
	var out []byte
	for _, blk := range m.Blocks {
		out = append(out, blk.Index, blk.MeasurementSpec, blk.ValueType)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(blk.MeasurementHash)))
		out = append(out, blk.MeasurementHash...)
	}
	return out
}

// DecodeMeasurements parses a MEASUREMENTS response. sigSize is 0 when the
// request did not ask for a fresh signature.
func DecodeMeasurements(b []byte, sigSize int) (Measurements, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return Measurements{}, err
	}
	if len(rest) < 4 {
		return Measurements{}, ErrTruncated
	}
	recordLen := int(binary.LittleEndian.Uint32(rest[:4]))
	rest = rest[4:]
	if len(rest) < recordLen {
		return Measurements{}, ErrTruncated
	}
	record := rest[:recordLen]
	rest = rest[recordLen:]

	var blocks []MeasurementBlock
	for len(record) > 0 {
		if len(record) < 5 {
			return Measurements{}, ErrTruncated
		}
		hashLen := int(binary.LittleEndian.Uint16(record[3:5]))
		if len(record) < 5+hashLen {
			return Measurements{}, ErrTruncated
		}
		blocks = append(blocks, MeasurementBlock{
			Index:           record[0],
			MeasurementSpec: record[1],
			ValueType:       record[2],
			MeasurementHash: record[5 : 5+hashLen],
		})
		record = record[5+hashLen:]
	}

	if len(rest) < NonceSize+2 {
		return Measurements{}, ErrTruncated
	}
	var m Measurements
	m.Header = h
	m.Blocks = blocks
	copy(m.Nonce[:], rest[:NonceSize])
	rest = rest[NonceSize:]
	opaqueLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < opaqueLen+sigSize {
		return Measurements{}, ErrTruncated
	}
	m.OpaqueData = rest[:opaqueLen]
	rest = rest[opaqueLen:]
	m.Signature = rest[:sigSize]
	return m, nil
}
