package wire

// GetEncapsulatedRequest asks the responder for the next request of the
// encapsulated (mutual-auth) sub-dialogue it is driving.
type GetEncapsulatedRequest struct{ Header Header }

// Encode returns the wire encoding of the message.
func (m GetEncapsulatedRequest) Encode() []byte {
	m.Header.Code = CodeGetEncapsulatedRequest
	return m.Header.Encode(nil)
}

// DecodeGetEncapsulatedRequest parses a GET_ENCAPSULATED_REQUEST message.
func DecodeGetEncapsulatedRequest(b []byte) (GetEncapsulatedRequest, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return GetEncapsulatedRequest{}, err
	}
	return GetEncapsulatedRequest{Header: h}, nil
}

// EncapsulatedRequest carries one nested SPDM request during the
// encapsulated sub-dialogue. Param1 is the request id the delivered
// response must echo; Payload is the complete nested request, header
// included.
type EncapsulatedRequest struct {
	Header    Header
	RequestID uint8
	Payload   []byte
}

// Encode returns the wire encoding of the message.
func (m EncapsulatedRequest) Encode() []byte {
	m.Header.Code = CodeEncapsulatedRequest
	m.Header.Param1 = m.RequestID
	out := m.Header.Encode(nil)
	out = append(out, m.Payload...)
	return out
}

// DecodeEncapsulatedRequest parses an ENCAPSULATED_REQUEST message.
func DecodeEncapsulatedRequest(b []byte) (EncapsulatedRequest, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return EncapsulatedRequest{}, err
	}
	if len(rest) < HeaderSize {
		return EncapsulatedRequest{}, ErrTruncated
	}
	return EncapsulatedRequest{Header: h, RequestID: h.Param1, Payload: rest}, nil
}

// DeliverEncapsulatedResponse returns the nested response for the request
// id the responder handed out in ENCAPSULATED_REQUEST. Payload is the
// complete nested response, header included.
type DeliverEncapsulatedResponse struct {
	Header    Header
	RequestID uint8
	Payload   []byte
}

// Encode returns the wire encoding of the message.
func (m DeliverEncapsulatedResponse) Encode() []byte {
	m.Header.Code = CodeDeliverEncapsulatedResponse
	m.Header.Param1 = m.RequestID
	out := m.Header.Encode(nil)
	out = append(out, m.Payload...)
	return out
}

// DecodeDeliverEncapsulatedResponse parses a
// DELIVER_ENCAPSULATED_RESPONSE message.
func DecodeDeliverEncapsulatedResponse(b []byte) (DeliverEncapsulatedResponse, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return DeliverEncapsulatedResponse{}, err
	}
	if len(rest) < HeaderSize {
		return DeliverEncapsulatedResponse{}, ErrTruncated
	}
	return DeliverEncapsulatedResponse{Header: h, RequestID: h.Param1, Payload: rest}, nil
}

// EncapsulatedResponseAck acknowledges a delivered response. Done
// (Param2 == 0) means the sub-dialogue is finished; otherwise Payload
// carries the next nested request and the dialogue continues.
type EncapsulatedResponseAck struct {
	Header    Header
	RequestID uint8
	Done      bool
	Payload   []byte
}

// Encode returns the wire encoding of the message.
func (m EncapsulatedResponseAck) Encode() []byte {
	m.Header.Code = CodeEncapsulatedResponseAck
	m.Header.Param1 = m.RequestID
	if m.Done {
		m.Header.Param2 = 0
	} else {
		m.Header.Param2 = 1
	}
	out := m.Header.Encode(nil)
	out = append(out, m.Payload...)
	return out
}

// DecodeEncapsulatedResponseAck parses an ENCAPSULATED_RESPONSE_ACK
// message.
func DecodeEncapsulatedResponseAck(b []byte) (EncapsulatedResponseAck, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return EncapsulatedResponseAck{}, err
	}
	m := EncapsulatedResponseAck{Header: h, RequestID: h.Param1, Done: h.Param2 == 0, Payload: rest}
	if !m.Done && len(rest) < HeaderSize {
		return EncapsulatedResponseAck{}, ErrTruncated
	}
	return m, nil
}
