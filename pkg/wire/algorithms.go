package wire

import (
	"encoding/binary"

	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
)

// NegotiateAlgorithms is the NEGOTIATE_ALGORITHMS request: the requester's
// supported algorithm sets, one per category.
type NegotiateAlgorithms struct {
	Header              Header
	MeasurementHashAlgo spdmcrypto.MeasurementHashAlgo
	BaseAsymAlgo        spdmcrypto.BaseAsymAlgo
	BaseHashAlgo        spdmcrypto.BaseHashAlgo
	DHENamedGroup       spdmcrypto.DHENamedGroup
	AEADCipherSuite     spdmcrypto.AEADCipherSuite
	ReqBaseAsymAlgo     spdmcrypto.BaseAsymAlgo
	KeySchedule         spdmcrypto.KeyScheduleAlgo
}

// Encode returns the wire encoding of the request.
func (m NegotiateAlgorithms) Encode() []byte {
	m.Header.Code = CodeNegotiateAlgorithms
	out := m.Header.Encode(nil)
	out = binary.LittleEndian.AppendUint32(out, uint32(m.MeasurementHashAlgo))
	out = binary.LittleEndian.AppendUint32(out, uint32(m.BaseAsymAlgo))
	out = binary.LittleEndian.AppendUint32(out, uint32(m.BaseHashAlgo))
	out = binary.LittleEndian.AppendUint16(out, uint16(m.DHENamedGroup))
	out = binary.LittleEndian.AppendUint16(out, uint16(m.AEADCipherSuite))
	out = binary.LittleEndian.AppendUint16(out, uint16(m.ReqBaseAsymAlgo))
	out = binary.LittleEndian.AppendUint16(out, uint16(m.KeySchedule))
	return out
}

// DecodeNegotiateAlgorithms parses a NEGOTIATE_ALGORITHMS request.
func DecodeNegotiateAlgorithms(b []byte) (NegotiateAlgorithms, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return NegotiateAlgorithms{}, err
	}
	if len(rest) < 20 {
		return NegotiateAlgorithms{}, ErrTruncated
	}
	return NegotiateAlgorithms{
		Header:              h,
		MeasurementHashAlgo: spdmcrypto.MeasurementHashAlgo(binary.LittleEndian.Uint32(rest[0:4])),
		BaseAsymAlgo:        spdmcrypto.BaseAsymAlgo(binary.LittleEndian.Uint32(rest[4:8])),
		BaseHashAlgo:        spdmcrypto.BaseHashAlgo(binary.LittleEndian.Uint32(rest[8:12])),
		DHENamedGroup:       spdmcrypto.DHENamedGroup(binary.LittleEndian.Uint16(rest[12:14])),
		AEADCipherSuite:     spdmcrypto.AEADCipherSuite(binary.LittleEndian.Uint16(rest[14:16])),
		ReqBaseAsymAlgo:     spdmcrypto.BaseAsymAlgo(binary.LittleEndian.Uint16(rest[16:18])),
		KeySchedule:         spdmcrypto.KeyScheduleAlgo(binary.LittleEndian.Uint16(rest[18:20])),
	}, nil
}

// Algorithms is the ALGORITHMS response: the responder's selection, one
// value chosen from each of the requester's proposed sets.
type Algorithms struct {
	Header              Header
	MeasurementHashAlgo spdmcrypto.MeasurementHashAlgo
	BaseAsymSel         spdmcrypto.BaseAsymAlgo
	BaseHashSel         spdmcrypto.BaseHashAlgo
	DHENamedGroupSel    spdmcrypto.DHENamedGroup
	AEADCipherSuiteSel  spdmcrypto.AEADCipherSuite
	ReqBaseAsymSel      spdmcrypto.BaseAsymAlgo
	KeyScheduleSel      spdmcrypto.KeyScheduleAlgo
}

// Encode returns the wire encoding of the response.
func (m Algorithms) Encode() []byte {
	m.Header.Code = CodeAlgorithms
	out := m.Header.Encode(nil)
	out = binary.LittleEndian.AppendUint32(out, uint32(m.MeasurementHashAlgo))
	out = binary.LittleEndian.AppendUint32(out, uint32(m.BaseAsymSel))
	out = binary.LittleEndian.AppendUint32(out, uint32(m.BaseHashSel))
	out = binary.LittleEndian.AppendUint16(out, uint16(m.DHENamedGroupSel))
	out = binary.LittleEndian.AppendUint16(out, uint16(m.AEADCipherSuiteSel))
	out = binary.LittleEndian.AppendUint16(out, uint16(m.ReqBaseAsymSel))
	out = binary.LittleEndian.AppendUint16(out, uint16(m.KeyScheduleSel))
	return out
}

// DecodeAlgorithms parses an ALGORITHMS response.
func DecodeAlgorithms(b []byte) (Algorithms, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return Algorithms{}, err
	}
	if len(rest) < 20 {
		return Algorithms{}, ErrTruncated
	}
	return Algorithms{
		Header:              h,
		MeasurementHashAlgo: spdmcrypto.MeasurementHashAlgo(binary.LittleEndian.Uint32(rest[0:4])),
		BaseAsymSel:         spdmcrypto.BaseAsymAlgo(binary.LittleEndian.Uint32(rest[4:8])),
		BaseHashSel:         spdmcrypto.BaseHashAlgo(binary.LittleEndian.Uint32(rest[8:12])),
		DHENamedGroupSel:    spdmcrypto.DHENamedGroup(binary.LittleEndian.Uint16(rest[12:14])),
		AEADCipherSuiteSel:  spdmcrypto.AEADCipherSuite(binary.LittleEndian.Uint16(rest[14:16])),
		ReqBaseAsymSel:      spdmcrypto.BaseAsymAlgo(binary.LittleEndian.Uint16(rest[16:18])),
		KeyScheduleSel:      spdmcrypto.KeyScheduleAlgo(binary.LittleEndian.Uint16(rest[18:20])),
	}, nil
}
