package responder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openspdm/spdm-go/pkg/encap"
	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/establish"
	"github.com/openspdm/spdm-go/pkg/session"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transport"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// MeasurementBlocksFunc returns the measurement blocks a responder presents
// for GET_MEASUREMENTS and for the measurement summary hash CHALLENGE and
// KEY_EXCHANGE can request. blockIndex is 0xFF for "all blocks".
type MeasurementBlocksFunc func(blockIndex uint8) ([]wire.MeasurementBlock, error)

// PSKLookupFunc resolves a PSK hint (as presented in PSK_EXCHANGE) to the
// secret value it names.
type PSKLookupFunc func(hint []byte) ([]byte, error)

// AppHandlerFunc answers a decrypted secured-message application payload,
// the responder-side counterpart of Requester.SendReceiveData.
type AppHandlerFunc func(sessionID uint32, payload []byte) ([]byte, error)

// Config configures the host-supplied callbacks a Responder uses to answer
// requests it cannot decide from protocol state alone.
type Config struct {
	Measurements MeasurementBlocksFunc
	PSKLookup    PSKLookupFunc
	AppHandler   AppHandlerFunc
}

// pendingHandshake tracks one in-progress KEY_EXCHANGE/FINISH or
// PSK_EXCHANGE/PSK_FINISH dialogue between the responder learning the
// session id and FINISH/PSK_FINISH completing it.
type pendingHandshake struct {
	hashAlgo spdmcrypto.BaseHashAlgo
	aead     spdmcrypto.AEADCipherSuite

	kex *establish.KeyExchange
	psk *establish.PSKExchange

	// sess is the registry entry created at KEY_EXCHANGE/PSK_EXCHANGE
	// time, running on handshake-phase keys until FINISH promotes it.
	sess *session.Context
}

// Responder drives the responder side of one SPDM connection: it owns the
// connection's endpoint.Context, the crypto Suite the host injected, the
// transport.Endpoint used to exchange messages, and the host callbacks
// Config supplies. It is not safe for concurrent use by more than one
// goroutine at a time; callers serialize requests the same way a single
// transport connection does.
type Responder struct {
	ctx       *endpoint.Context
	suite     spdmcrypto.Suite
	transport transport.Endpoint
	cfg       Config

	mu         sync.Mutex
	handshakes map[uint32]*pendingHandshake

	// encap is the in-progress (or most recently completed) encapsulated
	// sub-dialogue this responder is driving against the requester; nil
	// until a CHALLENGE or KEY_EXCHANGE arms mutual authentication.
	encap *encap.Driver
}

// New constructs a Responder over an already-configured endpoint.Context.
func New(ctx *endpoint.Context, suite spdmcrypto.Suite, ep transport.Endpoint, cfg Config) *Responder {
	return &Responder{
		ctx:        ctx,
		suite:      suite,
		transport:  ep,
		cfg:        cfg,
		handshakes: make(map[uint32]*pendingHandshake),
	}
}

// Context returns the underlying endpoint.Context.
func (r *Responder) Context() *endpoint.Context { return r.ctx }

// Serve receives, processes, and answers requests until ctx is done or the
// transport reports an error.
func (r *Responder) Serve(ctx context.Context) error {
	for {
		in, err := r.transport.Receive(ctx)
		if err != nil {
			return err
		}
		sessionID, haveSession, _, isApp, spdmMsg, err := r.transport.Decode(in)
		if err != nil {
			return err
		}
		rsp, err := r.ProcessRequest(sessionID, haveSession, isApp, spdmMsg)
		if err != nil {
			return err
		}
		out, err := r.transport.Encode(sessionID, haveSession, false, isApp, rsp)
		if err != nil {
			return fmt.Errorf("responder: encode: %w", err)
		}
		if err := r.transport.Send(ctx, out); err != nil {
			return fmt.Errorf("responder: send: %w", err)
		}
	}
}

// ProcessRequest answers one already transport-decoded request, the
// responder-side analog of sendRecv: it dispatches to the matching verb
// handler and turns any returned error into an encoded SPDM ERROR message
// rather than propagating it, since a malformed or out-of-order request is
// the peer's problem to retry, not this endpoint's to crash on. Requests
// that arrive within a session are unsealed first and their responses
// sealed under the same session's current-phase keys.
func (r *Responder) ProcessRequest(sessionID uint32, haveSession, isApp bool, raw []byte) ([]byte, error) {
	if haveSession {
		return r.processSecured(sessionID, isApp, raw)
	}
	if len(raw) < wire.HeaderSize {
		return r.errorResponse(wire.ErrorInvalidRequest), nil
	}

	code := wire.Code(raw[1])
	if code != wire.CodeRespondIfReady {
		r.ctx.SetLastRequest(raw)
	}

	rsp, err := r.dispatch(code, raw)
	if err != nil {
		return r.errorResponse(errorCodeFor(err)), nil
	}
	if code == wire.CodeEndSession {
		if id, ok := r.ctx.LatestSessionID(); ok {
			_ = r.failSession(id)
		}
	}
	return rsp, nil
}

// processSecured unseals one in-session request (FINISH, PSK_FINISH,
// KEY_UPDATE, END_SESSION, or an application payload), dispatches it, and
// seals the response. The END_SESSION_ACK is sealed before the session is
// freed; a failed FINISH frees the partially-initialised slot per the
// establishment error policy.
func (r *Responder) processSecured(sessionID uint32, isApp bool, raw []byte) ([]byte, error) {
	sess, err := r.lookupSession(sessionID)
	if err != nil {
		return r.errorResponse(wire.ErrorInvalidSession), nil
	}
	plain, err := sess.Decrypt(raw)
	if err != nil {
		return r.errorResponse(wire.ErrorDecryptError), nil
	}

	var code wire.Code
	var rsp []byte
	var herr error
	switch {
	case isApp:
		rsp, herr = r.handleApp(sessionID, plain)
	case len(plain) < wire.HeaderSize:
		herr = wire.ErrTruncated
	default:
		code = wire.Code(plain[1])
		rsp, herr = r.dispatch(code, plain)
	}
	if herr != nil {
		rsp = r.errorResponse(errorCodeFor(herr))
	}

	sealed, serr := sess.Encrypt(rsp)
	if serr != nil {
		return r.errorResponse(wire.ErrorInvalidSession), nil
	}

	switch {
	case herr == nil && (code == wire.CodeFinish || code == wire.CodePSKFinish):
		r.promoteSession(sessionID)
	case herr == nil && code == wire.CodeEndSession:
		_ = r.failSession(sessionID)
	case herr != nil && (code == wire.CodeFinish || code == wire.CodePSKFinish):
		// An establishment failure frees the partially-initialised slot.
		_ = r.failSession(sessionID)
	}
	return sealed, nil
}

// failSession drops any parked handshake state for id and frees the
// session slot, zeroizing its keys.
func (r *Responder) failSession(id uint32) error {
	r.mu.Lock()
	delete(r.handshakes, id)
	r.mu.Unlock()
	return r.ctx.FreeSession(id)
}

func (r *Responder) dispatch(code wire.Code, raw []byte) ([]byte, error) {
	switch code {
	case wire.CodeGetVersion:
		return r.handleGetVersion(raw)
	case wire.CodeGetCapabilities:
		return r.handleGetCapabilities(raw)
	case wire.CodeNegotiateAlgorithms:
		return r.handleNegotiateAlgorithms(raw)
	case wire.CodeGetDigests:
		return r.handleGetDigests(raw)
	case wire.CodeGetCertificate:
		return r.handleGetCertificate(raw)
	case wire.CodeChallenge:
		return r.handleChallenge(raw)
	case wire.CodeGetMeasurements:
		return r.handleGetMeasurements(raw)
	case wire.CodeKeyExchange:
		return r.handleKeyExchange(raw)
	case wire.CodeFinish:
		return r.handleFinish(raw)
	case wire.CodePSKExchange:
		return r.handlePSKExchange(raw)
	case wire.CodePSKFinish:
		return r.handlePSKFinish(raw)
	case wire.CodeGetEncapsulatedRequest:
		return r.handleGetEncapsulatedRequest(raw)
	case wire.CodeDeliverEncapsulatedResponse:
		return r.handleDeliverEncapsulatedResponse(raw)
	case wire.CodeEndSession:
		return r.handleEndSession(raw)
	case wire.CodeKeyUpdate:
		return r.handleKeyUpdate(raw)
	case wire.CodeRespondIfReady:
		return r.handleRespondIfReady(raw)
	default:
		return nil, spdmerr.Unsupported.Wrap(fmt.Errorf("%w: code %#x", ErrUnexpectedRequest, code))
	}
}

// handleRespondIfReady replays the cached request a prior handler left in
// r.ctx.LastRequest, the way a responder that answered ResponseNotReady
// picks the dialogue back up once the requester presents the matching
// token.
func (r *Responder) handleRespondIfReady(raw []byte) ([]byte, error) {
	req, err := wire.DecodeRespondIfReady(raw)
	if err != nil {
		return nil, err
	}
	if req.Token != r.ctx.CurrentToken || r.ctx.LastRequest == nil {
		return nil, spdmerr.InvalidParameter.Wrap(fmt.Errorf("responder: stale or unknown RESPOND_IF_READY token"))
	}
	return r.dispatch(wire.Code(req.RequestCode), r.ctx.LastRequest)
}

func (r *Responder) errorResponse(code wire.ErrorCode) []byte {
	msg := wire.Error{Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion, Param1: uint8(code)}}
	return msg.Encode()
}

// errorCodeFor maps a handler error's spdmerr.Kind to the ERROR message
// code a requester expects, falling back to ErrorUnspecified for anything
// this endpoint did not classify. A truncated request is the requester's
// malformed message, not this endpoint's sequencing problem, so it maps
// to ErrorInvalidRequest ahead of the DeviceError kind it carries.
func errorCodeFor(err error) wire.ErrorCode {
	if errors.Is(err, wire.ErrTruncated) {
		return wire.ErrorInvalidRequest
	}
	switch spdmerr.KindOf(err) {
	case spdmerr.DeviceError:
		return wire.ErrorUnexpectedRequest
	case spdmerr.Unsupported:
		return wire.ErrorUnsupportedRequest
	case spdmerr.SecurityViolation:
		return wire.ErrorInvalidRequest
	case spdmerr.SessionFull:
		return wire.ErrorSessionLimitExceeded
	case spdmerr.SessionNotFound, spdmerr.SessionDuplicate:
		return wire.ErrorInvalidSession
	case spdmerr.SequenceExhausted:
		return wire.ErrorDecryptError
	case spdmerr.InvalidParameter, spdmerr.BufferOverflow, spdmerr.AccessDenied:
		return wire.ErrorInvalidRequest
	default:
		return wire.ErrorUnspecified
	}
}

func (r *Responder) lookupSession(id uint32) (*session.Context, error) {
	sess := r.ctx.Sessions.Lookup(id)
	if sess == nil {
		return nil, spdmerr.SessionNotFound.Wrap(ErrNoSession)
	}
	return sess, nil
}
