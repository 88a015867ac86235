package wire

// PSKFinish is the PSK_FINISH request that completes a PSK session
// establishment.
type PSKFinish struct {
	Header              Header
	RequesterVerifyData []byte
}

// Encode returns the wire encoding of the request.
func (m PSKFinish) Encode() []byte {
	m.Header.Code = CodePSKFinish
	out := m.Header.Encode(nil)
	out = append(out, m.RequesterVerifyData...)
	return out
}

// DecodePSKFinish parses a PSK_FINISH request.
func DecodePSKFinish(b []byte, verifyDataSize int) (PSKFinish, error) {
	h, rest, err := DecodeHeader(b)
	if err != nil {
		return PSKFinish{}, err
	}
	if len(rest) < verifyDataSize {
		return PSKFinish{}, ErrTruncated
	}
	return PSKFinish{Header: h, RequesterVerifyData: rest[:verifyDataSize]}, nil
}

// PSKFinishRsp is the PSK_FINISH_RSP response. It carries no body beyond
// the header.
type PSKFinishRsp struct{ Header Header }

// Encode returns the wire encoding of the response.
func (m PSKFinishRsp) Encode() []byte {
	m.Header.Code = CodePSKFinishRsp
	return m.Header.Encode(nil)
}

// DecodePSKFinishRsp parses a PSK_FINISH_RSP response.
func DecodePSKFinishRsp(b []byte) (PSKFinishRsp, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return PSKFinishRsp{}, err
	}
	return PSKFinishRsp{Header: h}, nil
}
