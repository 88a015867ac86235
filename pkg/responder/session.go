package responder

import (
	"github.com/openspdm/spdm-go/pkg/encap"
	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/establish"
	"github.com/openspdm/spdm-go/pkg/session"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// handleKeyExchange answers KEY_EXCHANGE: it allocates a session slot,
// runs the DHE exchange, and parks the handshake state under the composite
// session id until FINISH arrives to complete it.
func (r *Responder) handleKeyExchange(raw []byte) ([]byte, error) {
	if !r.ctx.HasReceived(endpoint.ReceivedChallenge) {
		return nil, spdmerr.DeviceError.Wrap(ErrOutOfOrder)
	}
	req, err := wire.DecodeKeyExchange(raw)
	if err != nil {
		return nil, err
	}

	hashAlgo := r.ctx.Connection.NegotiatedBaseHashAlgo
	aead := r.ctx.Connection.NegotiatedAEADCipherSuite
	dheGroup := r.ctx.Connection.NegotiatedDHENamedGroup
	measType := wire.MeasurementSummaryHashType(req.Header.Param1)

	index := r.ctx.Sessions.FreeSlotIndex()
	if index < 0 {
		return nil, spdmerr.SessionFull.Wrap(session.ErrTableFull)
	}
	rspHalf := r.ctx.Sessions.AllocateHalf(index)

	aBytes, err := r.ctx.Transcript.Bytes(transcript.A)
	if err != nil {
		return nil, err
	}
	slot := req.Header.Param2
	if int(slot) >= endpoint.MaxSlotCount || r.ctx.Local.ProvisionedSlotMask&(1<<slot) == 0 {
		return nil, endpoint.ErrInvalidSlot
	}
	certHash, err := r.suite.HashAll(hashAlgo, r.ctx.Local.CertificateChains[slot])
	if err != nil {
		return nil, err
	}

	kex := establish.NewKeyExchange(session.RoleResponder, r.suite, hashAlgo, aead, dheGroup)
	if err := kex.Transcript().Append(transcript.MessageK, aBytes); err != nil {
		return nil, err
	}
	if err := kex.Transcript().Append(transcript.MessageK, certHash); err != nil {
		return nil, err
	}

	var summaryHash []byte
	if measType != wire.MeasurementSummaryNone {
		summaryHash, err = r.measurementSummaryHash(measType)
		if err != nil {
			return nil, err
		}
	}

	mutAuthRequested := wire.MutAuthRequestedNone
	if r.ctx.Local.MutAuthRequested != 0 &&
		wire.CapabilityFlags(r.ctx.Connection.NegotiatedCapabilities)&wire.CapMutAuthCap != 0 {
		mutAuthRequested = wire.MutAuthRequestedWithEncap
	}

	sign := func(digest []byte) ([]byte, error) {
		return r.suite.AsymSign(r.ctx.Connection.NegotiatedBaseAsymAlgo, r.ctx.Local.SignerKeyID, digest)
	}
	rsp, err := kex.HandleKeyExchange(raw, req, rspHalf, slot, mutAuthRequested, summaryHash, sign)
	if err != nil {
		return nil, err
	}

	if mutAuthRequested != wire.MutAuthRequestedNone {
		driver, err := encap.NewDriver(r.ctx, r.suite, false)
		if err != nil {
			return nil, err
		}
		r.encap = driver
	}

	sess := session.NewContext(false, hashAlgo, aead)
	sess.SetHandshakeKeys(r.suite, kex.Keys(), false)
	id := kex.SessionID()
	if err := r.ctx.Sessions.Assign(index, id, sess); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.handshakes[id] = &pendingHandshake{hashAlgo: hashAlgo, aead: aead, kex: kex, sess: sess}
	r.mu.Unlock()
	r.ctx.AssignSession(id)
	r.ctx.MarkReceived(endpoint.ReceivedKeyExchange)

	return rsp.Encode(), nil
}

// handleFinish answers FINISH, completing the KEY_EXCHANGE handshake most
// recently parked by handleKeyExchange and, on success, establishing the
// session for secured-message traffic.
func (r *Responder) handleFinish(raw []byte) ([]byte, error) {
	if !r.ctx.HasReceived(endpoint.ReceivedKeyExchange) {
		return nil, spdmerr.DeviceError.Wrap(ErrOutOfOrder)
	}
	id, ok := r.ctx.LatestSessionID()
	if !ok {
		return nil, spdmerr.SessionNotFound.Wrap(ErrNoSession)
	}

	r.mu.Lock()
	pending, ok := r.handshakes[id]
	r.mu.Unlock()
	if !ok || pending.kex == nil {
		return nil, spdmerr.SessionNotFound.Wrap(ErrNoSession)
	}

	if len(raw) < wire.HeaderSize+1 {
		return nil, wire.ErrTruncated
	}
	mutualAuth := raw[2]&0x01 != 0
	sigSize := 0
	if mutualAuth {
		sigSize = r.ctx.Connection.NegotiatedReqBaseAsymAlgo.SignatureSize()
	}
	req, err := wire.DecodeFinish(raw, sigSize, pending.hashAlgo.Size())
	if err != nil {
		return nil, err
	}

	fin := establish.NewFinish(session.RoleResponder, r.suite, pending.hashAlgo, pending.kex.Transcript(), pending.kex.Keys())
	var verifyFinish func(digest, sig []byte) error
	if mutualAuth {
		// The signature only means something if the encapsulated
		// sub-dialogue armed by KEY_EXCHANGE actually ran to completion
		// and produced the requester's certificate chain.
		if r.encap == nil || !r.encap.Done() {
			return nil, spdmerr.SecurityViolation.Wrap(ErrMutualAuthNotSupported)
		}
		leaf, err := r.suite.X509Leaf(r.encap.CertChain())
		if err != nil {
			return nil, spdmerr.SecurityViolation.Wrap(err)
		}
		pub, err := spdmcrypto.PublicKeyBytes(r.ctx.Connection.NegotiatedReqBaseAsymAlgo, leaf)
		if err != nil {
			return nil, spdmerr.SecurityViolation.Wrap(err)
		}
		fin.SetMutCertHash(r.encap.MutCertHash())
		verifyFinish = func(digest, sig []byte) error {
			if err := r.suite.AsymVerify(r.ctx.Connection.NegotiatedReqBaseAsymAlgo, pub, digest, sig); err != nil {
				return spdmerr.SecurityViolation.Wrap(err)
			}
			return nil
		}
	}
	rsp, err := fin.HandleFinish(req, verifyFinish)
	if err != nil {
		return nil, err
	}

	// Data keys are derived now, but the session stays on its handshake
	// codecs until the FINISH_RSP built here has been sealed; the caller
	// promotes it afterward.
	keys := pending.kex.Keys()
	if err := keys.DeriveDataKeys(r.suite, pending.hashAlgo, pending.aead, fin.TH2()); err != nil {
		return nil, err
	}

	r.ctx.MarkReceived(endpoint.ReceivedFinish)
	return rsp.Encode(), nil
}

// handlePSKExchange is the PSK_EXCHANGE counterpart of handleKeyExchange.
func (r *Responder) handlePSKExchange(raw []byte) ([]byte, error) {
	req, err := wire.DecodePSKExchange(raw)
	if err != nil {
		return nil, err
	}
	if r.cfg.PSKLookup == nil {
		return nil, spdmerr.Unsupported.Wrap(ErrNoPSK)
	}
	pskValue, err := r.cfg.PSKLookup(req.PSKHint)
	if err != nil {
		return nil, spdmerr.Unsupported.Wrap(ErrNoPSK)
	}

	hashAlgo := r.ctx.Connection.NegotiatedBaseHashAlgo
	aead := r.ctx.Connection.NegotiatedAEADCipherSuite
	measType := wire.MeasurementSummaryHashType(req.Header.Param1)

	index := r.ctx.Sessions.FreeSlotIndex()
	if index < 0 {
		return nil, spdmerr.SessionFull.Wrap(session.ErrTableFull)
	}
	rspHalf := r.ctx.Sessions.AllocateHalf(index)

	aBytes, err := r.ctx.Transcript.Bytes(transcript.A)
	if err != nil {
		return nil, err
	}

	pex := establish.NewPSKExchange(session.RoleResponder, r.suite, hashAlgo, aead, pskValue)
	if err := pex.Transcript().Append(transcript.MessageK, aBytes); err != nil {
		return nil, err
	}

	var summaryHash []byte
	if measType != wire.MeasurementSummaryNone {
		summaryHash, err = r.measurementSummaryHash(measType)
		if err != nil {
			return nil, err
		}
	}

	rsp, err := pex.HandlePSKExchange(raw, req, rspHalf, summaryHash)
	if err != nil {
		return nil, err
	}

	sess := session.NewContext(true, hashAlgo, aead)
	sess.SetHandshakeKeys(r.suite, pex.Keys(), false)
	id := pex.SessionID()
	if err := r.ctx.Sessions.Assign(index, id, sess); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.handshakes[id] = &pendingHandshake{hashAlgo: hashAlgo, aead: aead, psk: pex, sess: sess}
	r.mu.Unlock()
	r.ctx.AssignSession(id)
	r.ctx.MarkReceived(endpoint.ReceivedPSKExchange)

	return rsp.Encode(), nil
}

// handlePSKFinish is the PSK_FINISH counterpart of handleFinish.
func (r *Responder) handlePSKFinish(raw []byte) ([]byte, error) {
	if !r.ctx.HasReceived(endpoint.ReceivedPSKExchange) {
		return nil, spdmerr.DeviceError.Wrap(ErrOutOfOrder)
	}
	id, ok := r.ctx.LatestSessionID()
	if !ok {
		return nil, spdmerr.SessionNotFound.Wrap(ErrNoSession)
	}

	r.mu.Lock()
	pending, ok := r.handshakes[id]
	r.mu.Unlock()
	if !ok || pending.psk == nil {
		return nil, spdmerr.SessionNotFound.Wrap(ErrNoSession)
	}

	req, err := wire.DecodePSKFinish(raw, pending.hashAlgo.Size())
	if err != nil {
		return nil, err
	}

	fin := establish.NewPSKFinish(r.suite, pending.hashAlgo, pending.psk.Transcript(), pending.psk.Keys())
	rsp, err := fin.HandlePSKFinish(req)
	if err != nil {
		return nil, err
	}

	// As with FINISH, the PSK_FINISH_RSP is still sealed under the
	// handshake keys; the caller promotes the session afterward.
	keys := pending.psk.Keys()
	if err := keys.DeriveDataKeys(r.suite, pending.hashAlgo, pending.aead, fin.TH2()); err != nil {
		return nil, err
	}

	r.ctx.MarkReceived(endpoint.ReceivedPSKFinish)
	return rsp.Encode(), nil
}

// promoteSession swaps a parked handshake's session onto its data-phase
// keys once its FINISH_RSP/PSK_FINISH_RSP has been sealed under the
// handshake keys, and clears the pending bookkeeping.
func (r *Responder) promoteSession(id uint32) {
	r.mu.Lock()
	pending, ok := r.handshakes[id]
	if ok {
		delete(r.handshakes, id)
	}
	r.mu.Unlock()
	if ok && pending.sess != nil {
		pending.sess.Establish(r.suite, false)
	}
}

// handleApp answers one already-decrypted application payload via the
// configured AppHandlerFunc; the caller owns sealing the reply.
func (r *Responder) handleApp(sessionID uint32, plaintext []byte) ([]byte, error) {
	if r.cfg.AppHandler == nil {
		return nil, spdmerr.Unsupported.Wrap(ErrNoAppHandler)
	}
	return r.cfg.AppHandler(sessionID, plaintext)
}

// handleKeyUpdate answers KEY_UPDATE: on UPDATE_KEY it rotates the
// session's receive-direction key (the sender's next secured message will
// use the new key) and echoes back KEY_UPDATE_ACK; on VERIFY_NEW_KEY it
// rotates this endpoint's own send-direction key to match.
func (r *Responder) handleKeyUpdate(raw []byte) ([]byte, error) {
	req, err := wire.DecodeKeyUpdate(raw)
	if err != nil {
		return nil, err
	}
	id, ok := r.ctx.LatestSessionID()
	if !ok {
		return nil, spdmerr.SessionNotFound.Wrap(ErrNoSession)
	}
	sess, err := r.lookupSession(id)
	if err != nil {
		return nil, err
	}

	switch wire.KeyUpdateOperation(req.Operation) {
	case wire.KeyUpdateOperationUpdateKey:
		if err := sess.RekeyPeer(r.suite); err != nil {
			return nil, err
		}
	case wire.KeyUpdateOperationVerifyNewKey:
		if err := sess.RekeyLocal(r.suite); err != nil {
			return nil, err
		}
	default:
		return nil, spdmerr.InvalidParameter.Wrap(ErrUnexpectedRequest)
	}

	ack := wire.KeyUpdateAck{
		Header:    wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		Operation: req.Operation,
		Token:     req.Token,
	}
	return ack.Encode(), nil
}
