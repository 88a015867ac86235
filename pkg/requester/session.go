package requester

import (
	"context"
	"errors"
	"fmt"

	"github.com/openspdm/spdm-go/pkg/establish"
	"github.com/openspdm/spdm-go/pkg/session"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// ErrMutualAuthNotSupported is returned when the responder asks this
// endpoint to authenticate itself (via CHALLENGE_AUTH's BasicMutAuthReq
// attribute or KEY_EXCHANGE_RSP's MutAuthRequested field) but the local
// capability flags don't carry MUT_AUTH_CAP.
var ErrMutualAuthNotSupported = errors.New("requester: mutual auth requested without MUT_AUTH_CAP")

// allocateSessionHalf picks a free registry slot and returns both the slot
// index (to Assign into once the composite id is known) and the requester
// half-id to place in the request.
func (r *Requester) allocateSessionHalf() (index int, half uint16, err error) {
	index = r.ctx.Sessions.FreeSlotIndex()
	if index < 0 {
		return 0, 0, session.ErrTableFull
	}
	return index, r.ctx.Sessions.AllocateHalf(index), nil
}

// sendRecvSecured seals msg under sess's current-phase keys, sends it
// within session id, and returns the decrypted response. For non-app
// messages an SPDM ERROR inside the session surfaces as ErrPeerError;
// there is no Busy retry inside a session.
func (r *Requester) sendRecvSecured(ctx context.Context, id uint32, sess *session.Context, isApp bool, msg []byte) ([]byte, error) {
	sealed, err := sess.Encrypt(msg)
	if err != nil {
		return nil, err
	}
	out, err := r.transport.Encode(id, true, true, isApp, sealed)
	if err != nil {
		return nil, fmt.Errorf("requester: encode: %w", err)
	}
	if err := r.transport.Send(ctx, out); err != nil {
		return nil, fmt.Errorf("requester: send: %w", err)
	}
	in, err := r.transport.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("requester: receive: %w", err)
	}
	_, _, _, _, rspSealed, err := r.transport.Decode(in)
	if err != nil {
		return nil, fmt.Errorf("requester: decode: %w", err)
	}
	plain, err := sess.Decrypt(rspSealed)
	if err != nil {
		return nil, spdmerr.SecurityViolation.Wrap(err)
	}
	if !isApp && len(plain) >= 2 && wire.Code(plain[1]) == wire.CodeError {
		errMsg, derr := wire.DecodeError(plain)
		if derr != nil {
			return nil, derr
		}
		return nil, fmt.Errorf("%w: code %#x", ErrPeerError, errMsg.Header.Param1)
	}
	return plain, nil
}

// StartSession runs the asymmetric KEY_EXCHANGE/FINISH session
// establishment dialogue against slot's certificate chain, returning the
// composite 32-bit session id of the resulting established session.
// KEY_EXCHANGE travels in the clear; FINISH runs over the handshake-phase
// secured channel keyed from TH1.
func (r *Requester) StartSession(ctx context.Context, slot uint8, measType wire.MeasurementSummaryHashType) (uint32, error) {
	hashAlgo := r.ctx.Connection.NegotiatedBaseHashAlgo
	aead := r.ctx.Connection.NegotiatedAEADCipherSuite
	dheGroup := r.ctx.Connection.NegotiatedDHENamedGroup

	index, reqHalf, err := r.allocateSessionHalf()
	if err != nil {
		return 0, err
	}

	aBytes, err := r.ctx.Transcript.Bytes(transcript.A)
	if err != nil {
		return 0, err
	}
	peerChain := r.ctx.Connection.PeerCertChain
	if peerChain == nil {
		// The connection authenticated against the locally provisioned
		// chain (CHALLENGE with slot 0xFF); the responder hashes the same
		// chain into TH from its own slot.
		peerChain = r.ctx.Local.PeerCertChainProvision
	}
	certHash, err := r.suite.HashAll(hashAlgo, peerChain)
	if err != nil {
		return 0, err
	}

	kex := establish.NewKeyExchange(session.RoleRequester, r.suite, hashAlgo, aead, dheGroup)
	if err := r.seedHandshakeTranscript(kex.Transcript(), aBytes, certHash); err != nil {
		return 0, err
	}

	req, err := kex.Start(reqHalf, slot, measType)
	if err != nil {
		return 0, err
	}
	reqBytes := req.Encode()

	rspBytes, err := r.sendRecv(ctx, reqBytes)
	if err != nil {
		return 0, err
	}
	if wire.Code(rspBytes[1]) != wire.CodeKeyExchangeRsp {
		return 0, ErrUnexpectedResponse
	}
	summarySize := 0
	if measType != wire.MeasurementSummaryNone {
		summarySize = r.ctx.Connection.NegotiatedMeasurementHashAlgo.Size()
	}
	sigSize := r.ctx.Connection.NegotiatedBaseAsymAlgo.SignatureSize()
	verifyDataSize := hashAlgo.Size()
	rsp, err := wire.DecodeKeyExchangeRsp(rspBytes, summarySize, sigSize, verifyDataSize)
	if err != nil {
		return 0, err
	}

	leaf, err := r.suite.X509Leaf(peerChain)
	if err != nil {
		return 0, err
	}
	pub, err := spdmcrypto.PublicKeyBytes(r.ctx.Connection.NegotiatedBaseAsymAlgo, leaf)
	if err != nil {
		return 0, err
	}
	verify := func(digest, sig []byte) error {
		if err := r.suite.AsymVerify(r.ctx.Connection.NegotiatedBaseAsymAlgo, pub, digest, sig); err != nil {
			return ErrVerifyFailed
		}
		return nil
	}
	if err := kex.HandleKeyExchangeRsp(rspBytes, rsp, verifyDataSize, verify); err != nil {
		return 0, err
	}

	sess := session.NewContext(false, hashAlgo, aead)
	sess.SetHandshakeKeys(r.suite, kex.Keys(), true)
	id := kex.SessionID()
	if err := r.ctx.Sessions.Assign(index, id, sess); err != nil {
		return 0, err
	}
	r.ctx.AssignSession(id)
	fail := func(err error) (uint32, error) {
		_ = r.ctx.FreeSession(id)
		return 0, err
	}

	fin := establish.NewFinish(session.RoleRequester, r.suite, hashAlgo, kex.Transcript(), kex.Keys())
	mutualAuth := kex.MutualAuthRequested()
	var signFinish func(digest []byte) ([]byte, error)
	if mutualAuth {
		if wire.CapabilityFlags(r.ctx.Local.Capabilities)&wire.CapMutAuthCap == 0 {
			return fail(spdmerr.DeviceError.Wrap(ErrMutualAuthNotSupported))
		}
		// The sub-dialogue's envelopes run over the handshake-secured
		// channel, like everything else between KEY_EXCHANGE and FINISH.
		secured := func(ctx context.Context, msg []byte) ([]byte, error) {
			return r.sendRecvSecured(ctx, id, sess, false, msg)
		}
		answerer, err := r.runEncapsulatedFlow(ctx, secured)
		if err != nil {
			return fail(err)
		}
		served := answerer.ServedChain()
		if served == nil {
			return fail(spdmerr.DeviceError.Wrap(ErrMutualAuthNotSupported))
		}
		mutCertHash, err := r.suite.HashAll(hashAlgo, served)
		if err != nil {
			return fail(err)
		}
		fin.SetMutCertHash(mutCertHash)
		signFinish = func(digest []byte) ([]byte, error) {
			return r.suite.AsymSign(r.ctx.Connection.NegotiatedReqBaseAsymAlgo, r.ctx.Local.SignerKeyID, digest)
		}
	}

	finReq, err := fin.Start(mutualAuth, signFinish)
	if err != nil {
		return fail(err)
	}
	finRspBytes, err := r.sendRecvSecured(ctx, id, sess, false, finReq.Encode())
	if err != nil {
		return fail(err)
	}
	if wire.Code(finRspBytes[1]) != wire.CodeFinishRsp {
		return fail(ErrUnexpectedResponse)
	}
	finRsp, err := wire.DecodeFinishRsp(finRspBytes, verifyDataSize)
	if err != nil {
		return fail(err)
	}
	if err := fin.HandleFinishRsp(finRsp); err != nil {
		return fail(err)
	}

	keys := kex.Keys()
	if err := keys.DeriveDataKeys(r.suite, hashAlgo, aead, fin.TH2()); err != nil {
		return fail(err)
	}
	sess.Establish(r.suite, true)
	return id, nil
}

// StartSessionPSK runs the symmetric PSK_EXCHANGE/PSK_FINISH session
// establishment dialogue, returning the composite session id. PSK_FINISH
// runs over the handshake-phase secured channel the same way FINISH does.
func (r *Requester) StartSessionPSK(ctx context.Context, pskValue []byte, measType wire.MeasurementSummaryHashType) (uint32, error) {
	hashAlgo := r.ctx.Connection.NegotiatedBaseHashAlgo
	aead := r.ctx.Connection.NegotiatedAEADCipherSuite

	index, reqHalf, err := r.allocateSessionHalf()
	if err != nil {
		return 0, err
	}

	aBytes, err := r.ctx.Transcript.Bytes(transcript.A)
	if err != nil {
		return 0, err
	}

	pex := establish.NewPSKExchange(session.RoleRequester, r.suite, hashAlgo, aead, pskValue)
	if err := r.seedHandshakeTranscript(pex.Transcript(), aBytes, nil); err != nil {
		return 0, err
	}

	req, err := pex.Start(reqHalf, r.ctx.Local.PSKHint, measType)
	if err != nil {
		return 0, err
	}
	reqBytes := req.Encode()

	rspBytes, err := r.sendRecv(ctx, reqBytes)
	if err != nil {
		return 0, err
	}
	if wire.Code(rspBytes[1]) != wire.CodePSKExchangeRsp {
		return 0, ErrUnexpectedResponse
	}
	summarySize := 0
	if measType != wire.MeasurementSummaryNone {
		summarySize = r.ctx.Connection.NegotiatedMeasurementHashAlgo.Size()
	}
	verifyDataSize := hashAlgo.Size()
	rsp, err := wire.DecodePSKExchangeRsp(rspBytes, summarySize, verifyDataSize)
	if err != nil {
		return 0, err
	}
	if err := pex.HandlePSKExchangeRsp(rspBytes, rsp, verifyDataSize); err != nil {
		return 0, err
	}

	sess := session.NewContext(true, hashAlgo, aead)
	sess.SetHandshakeKeys(r.suite, pex.Keys(), true)
	id := pex.SessionID()
	if err := r.ctx.Sessions.Assign(index, id, sess); err != nil {
		return 0, err
	}
	r.ctx.AssignSession(id)
	fail := func(err error) (uint32, error) {
		_ = r.ctx.FreeSession(id)
		return 0, err
	}

	fin := establish.NewPSKFinish(r.suite, hashAlgo, pex.Transcript(), pex.Keys())
	finReq, err := fin.Start()
	if err != nil {
		return fail(err)
	}
	finRspBytes, err := r.sendRecvSecured(ctx, id, sess, false, finReq.Encode())
	if err != nil {
		return fail(err)
	}
	if wire.Code(finRspBytes[1]) != wire.CodePSKFinishRsp {
		return fail(ErrUnexpectedResponse)
	}
	finRsp, err := wire.DecodePSKFinishRsp(finRspBytes)
	if err != nil {
		return fail(err)
	}
	if err := fin.HandlePSKFinishRsp(finRsp); err != nil {
		return fail(err)
	}

	keys := pex.Keys()
	if err := keys.DeriveDataKeys(r.suite, hashAlgo, aead, fin.TH2()); err != nil {
		return fail(err)
	}
	sess.Establish(r.suite, true)
	return id, nil
}

// seedHandshakeTranscript prefixes a fresh handshake's MessageK ledger
// with the connection-level A transcript and, for the certificate-based
// path, the hash of the responder's certificate chain, so TH1/TH2 come
// out as H(A || H(cert) || MessageK [|| MessageF]) without establish
// needing to know about the connection's own transcript manager. certHash
// is nil for PSK sessions, which omit the term entirely.
func (r *Requester) seedHandshakeTranscript(tr *transcript.Manager, aBytes, certHash []byte) error {
	if err := tr.Append(transcript.MessageK, aBytes); err != nil {
		return err
	}
	if certHash == nil {
		return nil
	}
	return tr.Append(transcript.MessageK, certHash)
}

// SendReceiveData encrypts payload as a secured application-layer message
// within session id, sends it, and returns the decrypted response.
func (r *Requester) SendReceiveData(ctx context.Context, id uint32, payload []byte) ([]byte, error) {
	sess, err := r.lookupSession(id)
	if err != nil {
		return nil, err
	}
	return r.sendRecvSecured(ctx, id, sess, true, payload)
}

// EndSession runs END_SESSION/END_SESSION_ACK over the session's secured
// channel and frees the session.
func (r *Requester) EndSession(ctx context.Context, id uint32) error {
	sess, err := r.lookupSession(id)
	if err != nil {
		return err
	}

	req := wire.EndSession{Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion}}
	rspBytes, err := r.sendRecvSecured(ctx, id, sess, false, req.Encode())
	if err != nil {
		return err
	}
	if wire.Code(rspBytes[1]) != wire.CodeEndSessionAck {
		return ErrUnexpectedResponse
	}
	if _, err := wire.DecodeEndSessionAck(rspBytes); err != nil {
		return err
	}
	return r.ctx.FreeSession(id)
}
