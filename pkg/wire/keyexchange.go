package wire

import "encoding/binary"

// KeyExchange is the KEY_EXCHANGE request that opens an asymmetric session
// establishment. Param1 carries the requested MeasurementSummaryHashType;
// Param2 carries the slot id whose certificate binds the exchange.
type KeyExchange struct {
	Header       Header
	ReqSessionID uint16 // requester-chosen session-id half
	Random       [NonceSize]byte
	ExchangeData []byte // requester's encoded DHE public key
	OpaqueData   []byte
}

// Encode returns the wire encoding of the request.
func (m KeyExchange) Encode() []byte {
	m.Header.Code = CodeKeyExchange
	out := m.Header.Encode(nil)
	out = binary.LittleEndian.AppendUint16(out, m.ReqSessionID)
	out = append(out, m.Random[:]...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.ExchangeData)))
	out = append(out, m.ExchangeData...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.OpaqueData)))
	out = append(out, m.OpaqueData...)
	return out
}

// DecodeKeyExchange parses a KEY_EXCHANGE request.
func DecodeKeyExchange(b []byte) (KeyExchange, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return KeyExchange{}, err
	}
	if len(rest) < 2+NonceSize+2 {
		return KeyExchange{}, ErrTruncated
	}
	var m KeyExchange
	m.Header = h
	m.ReqSessionID = binary.LittleEndian.Uint16(rest[:2])
	rest = rest[2:]
	copy(m.Random[:], rest[:NonceSize])
	rest = rest[NonceSize:]

	exLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < exLen+2 {
		return KeyExchange{}, ErrTruncated
	}
	m.ExchangeData = rest[:exLen]
	rest = rest[exLen:]

	opLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < opLen {
		return KeyExchange{}, ErrTruncated
	}
	m.OpaqueData = rest[:opLen]
	return m, nil
}

// KeyExchangeRsp is the KEY_EXCHANGE_RSP response. RspSessionID is the
// responder-chosen session-id half; MutAuthRequested non-zero means the
// responder wants the encapsulated mutual-auth sub-dialogue run before
// FINISH. Signature binds the exchange to the certificate at SlotID: it is
// the responder's asymmetric signature over the transcript hash accumulated
// through OpaqueData, the only thing that keeps a DHE-capable-but-unkeyed
// peer from standing up a session.
type KeyExchangeRsp struct {
	Header            Header
	RspSessionID      uint16
	MutAuthRequested  uint8
	SlotID            uint8
	Random            [NonceSize]byte
	ExchangeData      []byte // responder's encoded DHE public key
	MeasurementSummaryHash []byte
	OpaqueData        []byte
	Signature            []byte
	ResponderVerifyData []byte // HMAC over TH1 with the handshake finished key
}

// Encode returns the wire encoding of the response.
func (m KeyExchangeRsp) Encode() []byte {
	m.Header.Code = CodeKeyExchangeRsp
	out := m.Header.Encode(nil)
	out = binary.LittleEndian.AppendUint16(out, m.RspSessionID)
	out = append(out, m.MutAuthRequested, m.SlotID)
	out = append(out, m.Random[:]...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.ExchangeData)))
	out = append(out, m.ExchangeData...)
	out = append(out, m.MeasurementSummaryHash...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.OpaqueData)))
	out = append(out, m.OpaqueData...)
	out = append(out, m.Signature...)
	out = append(out, m.ResponderVerifyData...)
	return out
}

// DecodeKeyExchangeRsp parses a KEY_EXCHANGE_RSP response. summaryHashSize,
// sigSize, and verifyDataSize are determined by the negotiated algorithms.
func DecodeKeyExchangeRsp(b []byte, summaryHashSize, sigSize, verifyDataSize int) (KeyExchangeRsp, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return KeyExchangeRsp{}, err
	}
	if len(rest) < 2+2+NonceSize+2 {
		return KeyExchangeRsp{}, ErrTruncated
	}
	var m KeyExchangeRsp
	m.Header = h
	m.RspSessionID = binary.LittleEndian.Uint16(rest[:2])
	rest = rest[2:]
	m.MutAuthRequested, m.SlotID = rest[0], rest[1]
	rest = rest[2:]
	copy(m.Random[:], rest[:NonceSize])
	rest = rest[NonceSize:]

	exLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < exLen+summaryHashSize+2 {
		return KeyExchangeRsp{}, ErrTruncated
	}
	m.ExchangeData = rest[:exLen]
	rest = rest[exLen:]
	m.MeasurementSummaryHash = rest[:summaryHashSize]
	rest = rest[summaryHashSize:]

	opLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < opLen+sigSize+verifyDataSize {
		return KeyExchangeRsp{}, ErrTruncated
	}
	m.OpaqueData = rest[:opLen]
	rest = rest[opLen:]
	m.Signature = rest[:sigSize]
	rest = rest[sigSize:]
	m.ResponderVerifyData = rest[:verifyDataSize]
	return m, nil
}
