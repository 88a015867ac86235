package wire

import "encoding/binary"

// PSKExchange is the PSK_EXCHANGE request that opens a pre-shared-key
// session establishment. Param1 carries the requested
// MeasurementSummaryHashType.
type PSKExchange struct {
	Header            Header
	ReqSessionID      uint16 // requester-chosen session-id half
	PSKHint           []byte
	RequesterContext  []byte
	OpaqueData        []byte
}

// Encode returns the wire encoding of the request.
func (m PSKExchange) Encode() []byte {
	m.Header.Code = CodePSKExchange
	out := m.Header.Encode(nil)
	out = binary.LittleEndian.AppendUint16(out, m.ReqSessionID)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.PSKHint)))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.RequesterContext)))
	out = append(out, m.PSKHint...)
	out = append(out, m.RequesterContext...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.OpaqueData)))
	out = append(out, m.OpaqueData...)
	return out
}

// DecodePSKExchange parses a PSK_EXCHANGE request.
func DecodePSKExchange(b []byte) (PSKExchange, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return PSKExchange{}, err
	}
	if len(rest) < 6 {
		return PSKExchange{}, ErrTruncated
	}
	var m PSKExchange
	m.Header = h
	m.ReqSessionID = binary.LittleEndian.Uint16(rest[0:2])
	hintLen := int(binary.LittleEndian.Uint16(rest[2:4]))
	ctxLen := int(binary.LittleEndian.Uint16(rest[4:6]))
	rest = rest[6:]
	if len(rest) < hintLen+ctxLen+2 {
		return PSKExchange{}, ErrTruncated
	}
	m.PSKHint = rest[:hintLen]
	rest = rest[hintLen:]
	m.RequesterContext = rest[:ctxLen]
	rest = rest[ctxLen:]

	opLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < opLen {
		return PSKExchange{}, ErrTruncated
	}
	m.OpaqueData = rest[:opLen]
	return m, nil
}

// PSKExchangeRsp is the PSK_EXCHANGE_RSP response.
type PSKExchangeRsp struct {
	Header              Header
	RspSessionID        uint16
	ResponderContext    []byte
	MeasurementSummaryHash []byte
	OpaqueData          []byte
	ResponderVerifyData []byte
}

// Encode returns the wire encoding of the response.
func (m PSKExchangeRsp) Encode() []byte {
	m.Header.Code = CodePSKExchangeRsp
	out := m.Header.Encode(nil)
	out = binary.LittleEndian.AppendUint16(out, m.RspSessionID)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.ResponderContext)))
	out = append(out, m.ResponderContext...)
	out = append(out, m.MeasurementSummaryHash...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.OpaqueData)))
	out = append(out, m.OpaqueData...)
	out = append(out, m.ResponderVerifyData...)
	return out
}

// DecodePSKExchangeRsp parses a PSK_EXCHANGE_RSP response.
func DecodePSKExchangeRsp(b []byte, summaryHashSize, verifyDataSize int) (PSKExchangeRsp, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return PSKExchangeRsp{}, err
	}
	if len(rest) < 4 {
		return PSKExchangeRsp{}, ErrTruncated
	}
	var m PSKExchangeRsp
	m.Header = h
	m.RspSessionID = binary.LittleEndian.Uint16(rest[0:2])
	ctxLen := int(binary.LittleEndian.Uint16(rest[2:4]))
	rest = rest[4:]
	if len(rest) < ctxLen+summaryHashSize+2 {
		return PSKExchangeRsp{}, ErrTruncated
	}
	m.ResponderContext = rest[:ctxLen]
	rest = rest[ctxLen:]
	m.MeasurementSummaryHash = rest[:summaryHashSize]
	rest = rest[summaryHashSize:]

	opLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < opLen+verifyDataSize {
		return PSKExchangeRsp{}, ErrTruncated
	}
	m.OpaqueData = rest[:opLen]
	rest = rest[opLen:]
	m.ResponderVerifyData = rest[:verifyDataSize]
	return m, nil
}
