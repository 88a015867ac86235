package establish

import (
	"io"

	"github.com/openspdm/spdm-go/pkg/session"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// PSKExchangeState is where a PSK_EXCHANGE/PSK_FINISH handshake currently
// stands.
type PSKExchangeState int

// Handshake states, advanced in this order by the calling role's
// requester or responder handlers.
const (
	PSKExchangeInit PSKExchangeState = iota
	PSKExchangeSent        // requester: PSK_EXCHANGE sent, awaiting response
	PSKExchangeRspReceived // requester: handshake keys derived
	PSKExchangeRspSent     // responder: handshake keys derived, awaiting PSK_FINISH
	PSKExchangeComplete    // both: data keys derived, session usable
)

// PSKExchange drives one session's pre-shared-key establishment. Unlike
// KeyExchange, there is no DHE shared secret and no certificate chain: the
// handshake secret is derived directly from the PSK value, the same
// HKDF-Extract/Expand chain KeyExchange uses from its shared secret.
type PSKExchange struct {
	role  session.Role
	state PSKExchangeState

	suite    spdmcrypto.Suite
	hashAlgo spdmcrypto.BaseHashAlgo
	aead     spdmcrypto.AEADCipherSuite

	transcript *transcript.Manager

	pskValue []byte

	reqSessionID uint16
	rspSessionID uint16

	th1  []byte
	keys *session.Keys
}

// NewPSKExchange constructs a handshake for role, keyed by pskValue (the
// secret the host's PSK hint resolves to).
func NewPSKExchange(role session.Role, suite spdmcrypto.Suite, hashAlgo spdmcrypto.BaseHashAlgo, aead spdmcrypto.AEADCipherSuite, pskValue []byte) *PSKExchange {
	return &PSKExchange{
		role:       role,
		suite:      suite,
		hashAlgo:   hashAlgo,
		aead:       aead,
		pskValue:   pskValue,
		transcript: transcript.NewManager(),
	}
}

// Transcript returns the MessageK/MessageF transcript.Manager this
// handshake uses, for establish.NewPSKFinish to continue.
func (h *PSKExchange) Transcript() *transcript.Manager { return h.transcript }

// Start builds the requester's PSK_EXCHANGE request.
func (h *PSKExchange) Start(reqSessionID uint16, pskHint []byte, measType wire.MeasurementSummaryHashType) (wire.PSKExchange, error) {
	if h.state != PSKExchangeInit {
		return wire.PSKExchange{}, ErrWrongState
	}
	h.reqSessionID = reqSessionID

	var ctx [wire.NonceSize]byte
	if _, err := io.ReadFull(h.suite.Random(), ctx[:]); err != nil {
		return wire.PSKExchange{}, err
	}

	req := wire.PSKExchange{
		Header:           wire.Header{Param1: uint8(measType)},
		ReqSessionID:     reqSessionID,
		PSKHint:          pskHint,
		RequesterContext: ctx[:],
		OpaqueData:       wire.OpaqueSupportedVersions(wire.SecuredMessageVersion11, wire.SecuredMessageVersion10),
	}
	if err := h.transcript.Append(transcript.MessageK, req.Encode()); err != nil {
		return wire.PSKExchange{}, err
	}
	h.state = PSKExchangeSent
	return req, nil
}

// HandlePSKExchangeRsp processes the responder's PSK_EXCHANGE_RSP: derives
// the handshake-phase keys from TH1 and checks the responder's verify-data
// HMAC.
func (h *PSKExchange) HandlePSKExchangeRsp(rawRsp []byte, rsp wire.PSKExchangeRsp, verifyDataSize int) error {
	if h.state != PSKExchangeSent {
		return ErrWrongState
	}

	partial := rawRsp[:len(rawRsp)-verifyDataSize]
	if err := h.transcript.AppendPartial(transcript.MessageK, partial); err != nil {
		return err
	}
	th1, err := h.transcript.TH(h.suite, h.hashAlgo, transcript.MessageK)
	if err != nil {
		return err
	}

	keys, err := session.DeriveHandshakeKeys(h.suite, h.hashAlgo, h.aead, h.pskValue, th1)
	if err != nil {
		return err
	}
	if err := checkVerifyData(h.suite, h.hashAlgo, keys.ResponseFinishedKey, th1, rsp.ResponderVerifyData); err != nil {
		return err
	}
	if err := h.transcript.AppendFinal(transcript.MessageK, rsp.ResponderVerifyData); err != nil {
		return err
	}

	h.rspSessionID = rsp.RspSessionID
	h.th1 = th1
	h.keys = keys
	h.state = PSKExchangeRspReceived
	return nil
}

// HandlePSKExchange processes the requester's PSK_EXCHANGE on the
// responder side and returns the PSK_EXCHANGE_RSP to send.
func (h *PSKExchange) HandlePSKExchange(rawReq []byte, req wire.PSKExchange, rspSessionID uint16, measurementSummaryHash []byte) (wire.PSKExchangeRsp, error) {
	if h.state != PSKExchangeInit {
		return wire.PSKExchangeRsp{}, ErrWrongState
	}
	if err := h.transcript.Append(transcript.MessageK, rawReq); err != nil {
		return wire.PSKExchangeRsp{}, err
	}
	h.reqSessionID = req.ReqSessionID
	h.rspSessionID = rspSessionID

	var ctx [wire.NonceSize]byte
	if _, err := io.ReadFull(h.suite.Random(), ctx[:]); err != nil {
		return wire.PSKExchangeRsp{}, err
	}

	var opaqueRsp []byte
	if len(req.OpaqueData) > 0 {
		table, err := wire.DecodeOpaqueTable(req.OpaqueData)
		if err != nil {
			return wire.PSKExchangeRsp{}, err
		}
		selected, ok := wire.SelectOpaqueVersion(table, []uint16{wire.SecuredMessageVersion11, wire.SecuredMessageVersion10})
		if !ok {
			return wire.PSKExchangeRsp{}, ErrNoCommonSecuredVersion
		}
		opaqueRsp = wire.OpaqueVersionSelection(selected)
	}

	partial := wire.PSKExchangeRsp{
		RspSessionID:           rspSessionID,
		ResponderContext:       ctx[:],
		MeasurementSummaryHash: measurementSummaryHash,
		OpaqueData:             opaqueRsp,
	}
	if err := h.transcript.AppendPartial(transcript.MessageK, partial.Encode()); err != nil {
		return wire.PSKExchangeRsp{}, err
	}
	th1, err := h.transcript.TH(h.suite, h.hashAlgo, transcript.MessageK)
	if err != nil {
		return wire.PSKExchangeRsp{}, err
	}

	keys, err := session.DeriveHandshakeKeys(h.suite, h.hashAlgo, h.aead, h.pskValue, th1)
	if err != nil {
		return wire.PSKExchangeRsp{}, err
	}
	verifyData, err := computeVerifyData(h.suite, h.hashAlgo, keys.ResponseFinishedKey, th1)
	if err != nil {
		return wire.PSKExchangeRsp{}, err
	}
	if err := h.transcript.AppendFinal(transcript.MessageK, verifyData); err != nil {
		return wire.PSKExchangeRsp{}, err
	}

	h.th1 = th1
	h.keys = keys
	h.state = PSKExchangeRspSent

	partial.ResponderVerifyData = verifyData
	return partial, nil
}

// TH1 returns the handshake transcript hash.
func (h *PSKExchange) TH1() []byte { return h.th1 }

// Keys returns the key schedule state derived so far.
func (h *PSKExchange) Keys() *session.Keys { return h.keys }

// SessionID returns the composite 32-bit session id once both halves are
// known.
func (h *PSKExchange) SessionID() uint32 {
	return uint32(h.reqSessionID)<<16 | uint32(h.rspSessionID)
}
