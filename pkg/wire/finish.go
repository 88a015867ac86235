package wire

// Finish is the FINISH request that completes an asymmetric session
// establishment. Param1 bit 0 indicates mutual authentication (a signature
// is present in addition to the verify-data HMAC).
type Finish struct {
	Header             Header
	Signature          []byte // present only when Param1 requests mutual auth
	RequesterVerifyData []byte
}

// Encode returns the wire encoding of the request.
func (m Finish) Encode() []byte {
	m.Header.Code = CodeFinish
	out := m.Header.Encode(nil)
	out = append(out, m.Signature...)
	out = append(out, m.RequesterVerifyData...)
	return out
}

// DecodeFinish parses a FINISH request. sigSize is 0 unless Param1
// requests mutual auth; verifyDataSize is the negotiated HMAC size.
func DecodeFinish(b []byte, sigSize, verifyDataSize int) (Finish, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return Finish{}, err
	}
	if len(rest) < sigSize+verifyDataSize {
		return Finish{}, ErrTruncated
	}
	var m Finish
	m.Header = h
	m.Signature = rest[:sigSize]
	m.RequesterVerifyData = rest[sigSize : sigSize+verifyDataSize]
	return m, nil
}

// FinishRsp is the FINISH_RSP response, carrying the responder's
// verify-data HMAC over the full MessageF transcript.
type FinishRsp struct {
	Header              Header
	ResponderVerifyData []byte
}

// Encode returns the wire encoding of the response.
func (m FinishRsp) Encode() []byte {
	m.Header.Code = CodeFinishRsp
	out := m.Header.Encode(nil)
	out = append(out, m.ResponderVerifyData...)
	return out
}

// DecodeFinishRsp parses a FINISH_RSP response. verifyDataSize is the
// negotiated HMAC size.
func DecodeFinishRsp(b []byte, verifyDataSize int) (FinishRsp, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return FinishRsp{}, err
	}
	if len(rest) < verifyDataSize {
		return FinishRsp{}, ErrTruncated
	}
	return FinishRsp{Header: h, ResponderVerifyData: rest[:verifyDataSize]}, nil
}
