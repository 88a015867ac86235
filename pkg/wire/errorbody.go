package wire

// Error is the ERROR message. Param1 carries the ErrorCode; Param2 carries
// code-specific data (e.g. the RDTExponent for ErrorResponseNotReady's
// extended data, encoded separately below).
type Error struct {
	Header       Header
	ExtendedData []byte
}

// Encode returns the wire encoding of the message.
func (m Error) Encode() []byte {
	m.Header.Code = CodeError
	out := m.Header.Encode(nil)
	out = append(out, m.ExtendedData...)
	return out
}

// DecodeError parses an ERROR message.
func DecodeError(b []byte) (Error, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return Error{}, err
	}
	return Error{Header: h, ExtendedData: rest}, nil
}

// ResponseNotReadyData is the extended data carried by an ERROR message
// with ErrorResponseNotReady: the caller is told how long to wait and
// which token to present in RESPOND_IF_READY.
type ResponseNotReadyData struct {
	RDTExponent uint8
	RequestCode uint8
	Token       uint8
	RDTM        uint8
}

// Encode returns the wire encoding of the extended data.
func (d ResponseNotReadyData) Encode() []byte {
	return []byte{d.RDTExponent, d.RequestCode, d.Token, d.RDTM}
}

// DecodeResponseNotReadyData parses the ResponseNotReady extended data.
func DecodeResponseNotReadyData(b []byte) (ResponseNotReadyData, error) {
	if len(b) < 4 {
		return ResponseNotReadyData{}, ErrTruncated
	}
	return ResponseNotReadyData{
		RDTExponent: b[0],
		RequestCode: b[1],
		Token:       b[2],
		RDTM:        b[3],
	}, nil
}

// RespondIfReady is the RESPOND_IF_READY request: Param1 carries the
// original request's code, Param2 the token from ResponseNotReadyData.
type RespondIfReady struct {
	Header      Header
	RequestCode uint8
	Token       uint8
}

// Encode returns the wire encoding of the request.
func (m RespondIfReady) Encode() []byte {
	m.Header.Code = CodeRespondIfReady
	m.Header.Param1 = m.RequestCode
	m.Header.Param2 = m.Token
	return m.Header.Encode(nil)
}

// DecodeRespondIfReady parses a RESPOND_IF_READY request.
func DecodeRespondIfReady(b []byte) (RespondIfReady, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return RespondIfReady{}, err
	}
	return RespondIfReady{Header: h, RequestCode: h.Param1, Token: h.Param2}, nil
}
