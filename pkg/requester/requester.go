package requester

import (
	"context"
	"fmt"
	"time"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/session"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/transport"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// DefaultRetryTimes is how many Busy/ResponseNotReady retries a Requester
// attempts before giving up, mirroring the original's default
// retry_times=3.
const DefaultRetryTimes = 3

// Requester drives the requester side of one SPDM connection: it owns the
// connection's endpoint.Context, the crypto Suite the host injected, and
// the transport.Endpoint used to exchange messages. It is not safe for
// concurrent use by more than one goroutine at a time, per spec.md §5's
// single-threaded cooperative model.
type Requester struct {
	ctx       *endpoint.Context
	suite     spdmcrypto.Suite
	transport transport.Endpoint

	retryTimes int
}

// New constructs a Requester over an already-configured endpoint.Context.
func New(ctx *endpoint.Context, suite spdmcrypto.Suite, ep transport.Endpoint) *Requester {
	return &Requester{ctx: ctx, suite: suite, transport: ep, retryTimes: DefaultRetryTimes}
}

// Context returns the underlying endpoint.Context.
func (r *Requester) Context() *endpoint.Context { return r.ctx }

// sendRecv transport-encodes req, sends it, waits for a response, and
// transport-decodes it, retrying on Busy/ResponseNotReady per spec.md
// §4.6's error/retry policy. The returned bytes are the raw SPDM message
// (header onward); callers are responsible for decoding it as their
// expected response type or recognizing it as an ERROR.
func (r *Requester) sendRecv(ctx context.Context, req []byte) ([]byte, error) {
	requestCode := wire.Code(req[1])

	for attempt := 0; ; attempt++ {
		out, err := r.transport.Encode(0, false, true, false, req)
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
		_, _, _, _, rsp, err := r.transport.Decode(in)
		if err != nil {
			return nil, fmt.Errorf("requester: decode: %w", err)
		}

		if len(rsp) >= 2 && wire.Code(rsp[1]) == wire.CodeError {
			errMsg, derr := wire.DecodeError(rsp)
			if derr != nil {
				return nil, derr
			}
			retry, waitFor, retryErr := r.handleError(errMsg, requestCode, attempt)
			if retryErr != nil {
				return nil, retryErr
			}
			if retry {
				if waitFor > 0 {
					select {
					case <-time.After(waitFor):
					case <-ctx.Done():
						return nil, ctx.Err()
					}
					req = wire.RespondIfReady{RequestCode: uint8(requestCode), Token: r.ctx.CurrentToken}.Encode()
				}
				continue
			}
		}
		return rsp, nil
	}
}

// handleError inspects an SPDM ERROR response. It returns retry=true when
// the caller should resend (rebuilding req as RESPOND_IF_READY when
// waitFor > 0), or a non-nil error for anything else.
func (r *Requester) handleError(errMsg wire.Error, requestCode wire.Code, attempt int) (retry bool, waitFor time.Duration, err error) {
	code := wire.ErrorCode(errMsg.Header.Param1)
	switch code {
	case wire.ErrorBusy:
		if attempt >= r.retryTimes {
			return false, 0, ErrRetriesExhausted
		}
		return true, 0, nil
	case wire.ErrorResponseNotReady:
		if attempt >= r.retryTimes {
			return false, 0, ErrRetriesExhausted
		}
		nr, derr := wire.DecodeResponseNotReadyData(errMsg.ExtendedData)
		if derr != nil {
			return false, 0, derr
		}
		r.ctx.CurrentToken = nr.Token
		wait := time.Duration(1) << uint(nr.RDTExponent)
		return true, wait, nil
	default:
		return false, 0, fmt.Errorf("%w: code %#x", ErrPeerError, code)
	}
}

// lookupSession returns the active session.Context for id, or ErrNoSession.
func (r *Requester) lookupSession(id uint32) (*session.Context, error) {
	sess := r.ctx.Sessions.Lookup(id)
	if sess == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}
