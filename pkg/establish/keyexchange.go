package establish

import (
	"io"

	"github.com/openspdm/spdm-go/pkg/session"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// KeyExchangeState is where a KEY_EXCHANGE/FINISH handshake currently
// stands.
type KeyExchangeState int

// Handshake states, advanced in this order by the calling role's
// requester or responder handlers.
const (
	KeyExchangeInit KeyExchangeState = iota
	KeyExchangeSent          // requester: KEY_EXCHANGE sent, awaiting response
	KeyExchangeRspReceived   // requester: handshake keys derived, ready to build FINISH
	KeyExchangeRspSent       // responder: handshake keys derived, awaiting FINISH
	KeyExchangeComplete      // both: data keys derived, session usable
)

// KeyExchange drives one session's asymmetric (DHE) establishment. It
// mirrors the shape of the teacher's CASE Session: a role is fixed at
// construction, a builder sets optional behavior, and Start/HandleXxx
// methods advance an explicit state enum one message at a time.
type KeyExchange struct {
	role session.Role
	state KeyExchangeState

	suite    spdmcrypto.Suite
	hashAlgo spdmcrypto.BaseHashAlgo
	aead     spdmcrypto.AEADCipherSuite
	dheGroup spdmcrypto.DHENamedGroup

	transcript *transcript.Manager

	localEphPub  []byte
	localEphPriv []byte

	reqSessionID uint16
	rspSessionID uint16

	th1  []byte
	keys *session.Keys

	mutualAuth bool
}

// NewKeyExchange constructs a handshake for role, using a transcript
// Manager scoped to this one session (its MessageK and MessageF ledgers,
// specifically — the other seven are unused here).
func NewKeyExchange(role session.Role, suite spdmcrypto.Suite, hashAlgo spdmcrypto.BaseHashAlgo, aead spdmcrypto.AEADCipherSuite, dheGroup spdmcrypto.DHENamedGroup) *KeyExchange {
	return &KeyExchange{
		role:       role,
		suite:      suite,
		hashAlgo:   hashAlgo,
		aead:       aead,
		dheGroup:   dheGroup,
		transcript: transcript.NewManager(),
	}
}

// Start builds the requester's KEY_EXCHANGE request.
func (h *KeyExchange) Start(reqSessionID uint16, slot uint8, measType wire.MeasurementSummaryHashType) (wire.KeyExchange, error) {
	if h.state != KeyExchangeInit {
		return wire.KeyExchange{}, ErrWrongState
	}
	h.reqSessionID = reqSessionID

	pub, priv, err := h.suite.DHEGenerate(h.dheGroup)
	if err != nil {
		return wire.KeyExchange{}, err
	}
	h.localEphPub, h.localEphPriv = pub, priv

	var random [wire.NonceSize]byte
	if _, err := io.ReadFull(h.suite.Random(), random[:]); err != nil {
		return wire.KeyExchange{}, err
	}

	req := wire.KeyExchange{
		Header:       wire.Header{Param1: uint8(measType), Param2: slot},
		ReqSessionID: reqSessionID,
		Random:       random,
		ExchangeData: pub,
		OpaqueData:   wire.OpaqueSupportedVersions(wire.SecuredMessageVersion11, wire.SecuredMessageVersion10),
	}
	if err := h.transcript.Append(transcript.MessageK, req.Encode()); err != nil {
		return wire.KeyExchange{}, err
	}
	h.state = KeyExchangeSent
	return req, nil
}

// HandleKeyExchangeRsp processes the responder's KEY_EXCHANGE_RSP: it
// derives the shared secret, verifies the responder's signature over the
// transcript accumulated through OpaqueData, derives the handshake-phase
// keys from TH1, and checks the responder's verify-data HMAC. rawRsp is
// the full encoded response (header through ResponderVerifyData);
// verifyDataSize is the negotiated HMAC size. verify checks rsp.Signature
// against the digest this method computes, using whichever certificate
// SlotID names.
func (h *KeyExchange) HandleKeyExchangeRsp(rawRsp []byte, rsp wire.KeyExchangeRsp, verifyDataSize int, verify func(digest, sig []byte) error) error {
	if h.state != KeyExchangeSent {
		return ErrWrongState
	}
	if len(rsp.OpaqueData) > 0 {
		if _, err := wire.DecodeOpaqueTable(rsp.OpaqueData); err != nil {
			return err
		}
	}

	sharedSecret, err := h.suite.DHEFinalize(h.dheGroup, h.localEphPriv, rsp.ExchangeData)
	if err != nil {
		return err
	}

	sigStart := len(rawRsp) - verifyDataSize - len(rsp.Signature)
	partial := rawRsp[:sigStart]
	if err := h.transcript.AppendPartial(transcript.MessageK, partial); err != nil {
		return err
	}
	sigDigest, err := h.transcript.TH(h.suite, h.hashAlgo, transcript.MessageK)
	if err != nil {
		return err
	}
	if err := verify(sigDigest, rsp.Signature); err != nil {
		return err
	}
	if err := h.transcript.Append(transcript.MessageK, rsp.Signature); err != nil {
		return err
	}

	th1, err := h.transcript.TH(h.suite, h.hashAlgo, transcript.MessageK)
	if err != nil {
		return err
	}

	keys, err := session.DeriveHandshakeKeys(h.suite, h.hashAlgo, h.aead, sharedSecret, th1)
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
	h.mutualAuth = rsp.MutAuthRequested != 0
	h.state = KeyExchangeRspReceived
	return nil
}

// HandleKeyExchange processes the requester's KEY_EXCHANGE on the
// responder side and returns the KEY_EXCHANGE_RSP to send. sign produces
// the responder's asymmetric signature over the digest this method
// computes from the transcript accumulated through OpaqueData, binding
// the session to the certificate at slotID. mutAuthRequested is echoed
// into the response's MutAuthRequested field, asking the requester to
// authenticate itself (via the encapsulated sub-dialogue) before FINISH.
func (h *KeyExchange) HandleKeyExchange(rawReq []byte, req wire.KeyExchange, rspSessionID uint16, slotID uint8, mutAuthRequested uint8, measurementSummaryHash []byte, sign func(digest []byte) ([]byte, error)) (wire.KeyExchangeRsp, error) {
	if h.state != KeyExchangeInit {
		return wire.KeyExchangeRsp{}, ErrWrongState
	}
	if err := h.transcript.Append(transcript.MessageK, rawReq); err != nil {
		return wire.KeyExchangeRsp{}, err
	}

	pub, priv, err := h.suite.DHEGenerate(h.dheGroup)
	if err != nil {
		return wire.KeyExchangeRsp{}, err
	}
	h.localEphPub, h.localEphPriv = pub, priv
	h.reqSessionID = req.ReqSessionID
	h.rspSessionID = rspSessionID

	var random [wire.NonceSize]byte
	if _, err := io.ReadFull(h.suite.Random(), random[:]); err != nil {
		return wire.KeyExchangeRsp{}, err
	}

	sharedSecret, err := h.suite.DHEFinalize(h.dheGroup, priv, req.ExchangeData)
	if err != nil {
		return wire.KeyExchangeRsp{}, err
	}

	var opaqueRsp []byte
	if len(req.OpaqueData) > 0 {
		table, err := wire.DecodeOpaqueTable(req.OpaqueData)
		if err != nil {
			return wire.KeyExchangeRsp{}, err
		}
		selected, ok := wire.SelectOpaqueVersion(table, []uint16{wire.SecuredMessageVersion11, wire.SecuredMessageVersion10})
		if !ok {
			return wire.KeyExchangeRsp{}, ErrNoCommonSecuredVersion
		}
		opaqueRsp = wire.OpaqueVersionSelection(selected)
	}

	partial := wire.KeyExchangeRsp{
		SlotID:                 slotID,
		MutAuthRequested:       mutAuthRequested,
		RspSessionID:           rspSessionID,
		Random:                 random,
		ExchangeData:           pub,
		MeasurementSummaryHash: measurementSummaryHash,
		OpaqueData:             opaqueRsp,
	}
	if err := h.transcript.AppendPartial(transcript.MessageK, partial.Encode()); err != nil {
		return wire.KeyExchangeRsp{}, err
	}
	sigDigest, err := h.transcript.TH(h.suite, h.hashAlgo, transcript.MessageK)
	if err != nil {
		return wire.KeyExchangeRsp{}, err
	}
	sig, err := sign(sigDigest)
	if err != nil {
		return wire.KeyExchangeRsp{}, err
	}
	if err := h.transcript.Append(transcript.MessageK, sig); err != nil {
		return wire.KeyExchangeRsp{}, err
	}

	th1, err := h.transcript.TH(h.suite, h.hashAlgo, transcript.MessageK)
	if err != nil {
		return wire.KeyExchangeRsp{}, err
	}

	keys, err := session.DeriveHandshakeKeys(h.suite, h.hashAlgo, h.aead, sharedSecret, th1)
	if err != nil {
		return wire.KeyExchangeRsp{}, err
	}
	verifyData, err := computeVerifyData(h.suite, h.hashAlgo, keys.ResponseFinishedKey, th1)
	if err != nil {
		return wire.KeyExchangeRsp{}, err
	}
	if err := h.transcript.AppendFinal(transcript.MessageK, verifyData); err != nil {
		return wire.KeyExchangeRsp{}, err
	}

	h.th1 = th1
	h.keys = keys
	h.mutualAuth = mutAuthRequested != 0
	h.state = KeyExchangeRspSent

	partial.Signature = sig
	partial.ResponderVerifyData = verifyData
	return partial, nil
}

// TH1 returns the handshake transcript hash, available once the handshake
// keys have been derived.
func (h *KeyExchange) TH1() []byte { return h.th1 }

// Transcript returns the MessageK/MessageF transcript.Manager this
// handshake uses. Callers seed it with A and the hash of the responder's
// certificate chain before calling Start/HandleKeyExchange, and pass it on
// to establish.NewFinish to continue the same session's FINISH exchange.
func (h *KeyExchange) Transcript() *transcript.Manager { return h.transcript }

// Keys returns the key schedule state derived so far.
func (h *KeyExchange) Keys() *session.Keys { return h.keys }

// SessionID returns the composite 32-bit session id once both halves are
// known.
func (h *KeyExchange) SessionID() uint32 {
	return uint32(h.reqSessionID)<<16 | uint32(h.rspSessionID)
}

// MutualAuthRequested reports whether the responder asked for the
// encapsulated mutual-auth sub-dialogue before FINISH.
func (h *KeyExchange) MutualAuthRequested() bool { return h.mutualAuth }
