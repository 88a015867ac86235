package wire

// EndSession is the END_SESSION request. Param1 bit 0 requests
// HANDSHAKE_IN_THE_CLEAR tear-down; this module always clears it.
type EndSession struct{ Header Header }

// Encode returns the wire encoding of the request.
func (m EndSession) Encode() []byte {
	m.Header.Code = CodeEndSession
	return m.Header.Encode(nil)
}

// DecodeEndSession parses an END_SESSION request.
func DecodeEndSession(b []byte) (EndSession, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return EndSession{}, err
	}
	return EndSession{Header: h}, nil
}

// EndSessionAck is the END_SESSION_ACK response.
type EndSessionAck struct{ Header Header }

// Encode returns the wire encoding of the response.
func (m EndSessionAck) Encode() []byte {
	m.Header.Code = CodeEndSessionAck
	return m.Header.Encode(nil)
}

// DecodeEndSessionAck parses an END_SESSION_ACK response.
func DecodeEndSessionAck(b []byte) (EndSessionAck, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return EndSessionAck{}, err
	}
	return EndSessionAck{Header: h}, nil
}

// KeyUpdateOperation identifies the KEY_UPDATE request's action, carried
// in Param1.
type KeyUpdateOperation uint8

// Key update operations.
const (
	KeyUpdateOperationUpdateKey    KeyUpdateOperation = 1
	KeyUpdateOperationVerifyNewKey KeyUpdateOperation = 2
)

// KeyUpdate is the KEY_UPDATE request. Param2 is a caller-chosen token
// echoed back in the ACK, used to correlate verify round-trips.
type KeyUpdate struct {
	Header    Header
	Operation KeyUpdateOperation
	Token     uint8
}

// Encode returns the wire encoding of the request.
func (m KeyUpdate) Encode() []byte {
	m.Header.Code = CodeKeyUpdate
	m.Header.Param1 = uint8(m.Operation)
	m.Header.Param2 = m.Token
	return m.Header.Encode(nil)
}

// DecodeKeyUpdate parses a KEY_UPDATE request.
func DecodeKeyUpdate(b []byte) (KeyUpdate, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return KeyUpdate{}, err
	}
	return KeyUpdate{Header: h, Operation: KeyUpdateOperation(h.Param1), Token: h.Param2}, nil
}

// KeyUpdateAck is the KEY_UPDATE_ACK response, echoing the request's
// operation and token.
type KeyUpdateAck struct {
	Header    Header
	Operation KeyUpdateOperation
	Token     uint8
}

// Encode returns the wire encoding of the response.
func (m KeyUpdateAck) Encode() []byte {
	m.Header.Code = CodeKeyUpdateAck
	m.Header.Param1 = uint8(m.Operation)
	m.Header.Param2 = m.Token
	return m.Header.Encode(nil)
}

// DecodeKeyUpdateAck parses a KEY_UPDATE_ACK response.
func DecodeKeyUpdateAck(b []byte) (KeyUpdateAck, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return KeyUpdateAck{}, err
	}
	return KeyUpdateAck{Header: h, Operation: KeyUpdateOperation(h.Param1), Token: h.Param2}, nil
}
