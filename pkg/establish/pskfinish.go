package establish

import (
	"github.com/openspdm/spdm-go/pkg/session"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// PSKFinish drives the PSK_FINISH exchange that completes a PSK_EXCHANGE
// handshake. There is no signature: both sides already authenticated via
// possession of the PSK, so PSK_FINISH carries only the requester's
// verify-data HMAC and PSK_FINISH_RSP carries none at all.
type PSKFinish struct {
	state FinishState

	suite    spdmcrypto.Suite
	hashAlgo spdmcrypto.BaseHashAlgo

	transcript *transcript.Manager
	keys       *session.Keys

	th2 []byte
}

// NewPSKFinish constructs a PSKFinish handler sharing tr (the PSKExchange's
// transcript.Manager) and keys (the handshake-phase keys PSKExchange
// derived).
func NewPSKFinish(suite spdmcrypto.Suite, hashAlgo spdmcrypto.BaseHashAlgo, tr *transcript.Manager, keys *session.Keys) *PSKFinish {
	return &PSKFinish{suite: suite, hashAlgo: hashAlgo, transcript: tr, keys: keys}
}

// Start builds the requester's PSK_FINISH request.
func (f *PSKFinish) Start() (wire.PSKFinish, error) {
	if f.state != FinishInit {
		return wire.PSKFinish{}, ErrWrongState
	}

	th, err := f.transcript.THOf(f.suite, f.hashAlgo, transcript.MessageK, transcript.MessageF)
	if err != nil {
		return wire.PSKFinish{}, err
	}
	verifyData, err := computeVerifyData(f.suite, f.hashAlgo, f.keys.RequestFinishedKey, th)
	if err != nil {
		return wire.PSKFinish{}, err
	}
	if err := f.transcript.Append(transcript.MessageF, verifyData); err != nil {
		return wire.PSKFinish{}, err
	}

	f.state = FinishSent
	return wire.PSKFinish{RequesterVerifyData: verifyData}, nil
}

// HandlePSKFinish verifies the requester's PSK_FINISH on the responder
// side and returns the PSK_FINISH_RSP to send.
func (f *PSKFinish) HandlePSKFinish(req wire.PSKFinish) (wire.PSKFinishRsp, error) {
	if f.state != FinishInit {
		return wire.PSKFinishRsp{}, ErrWrongState
	}

	th, err := f.transcript.THOf(f.suite, f.hashAlgo, transcript.MessageK, transcript.MessageF)
	if err != nil {
		return wire.PSKFinishRsp{}, err
	}
	if err := checkVerifyData(f.suite, f.hashAlgo, f.keys.RequestFinishedKey, th, req.RequesterVerifyData); err != nil {
		return wire.PSKFinishRsp{}, err
	}
	if err := f.transcript.Append(transcript.MessageF, req.RequesterVerifyData); err != nil {
		return wire.PSKFinishRsp{}, err
	}

	th2, err := f.transcript.THOf(f.suite, f.hashAlgo, transcript.MessageK, transcript.MessageF)
	if err != nil {
		return wire.PSKFinishRsp{}, err
	}
	f.th2 = th2
	f.state = FinishComplete
	return wire.PSKFinishRsp{}, nil
}

// HandlePSKFinishRsp completes the handshake on the requester side. There
// is nothing in PSK_FINISH_RSP to check; receiving it is the signal that
// the responder accepted PSK_FINISH.
func (f *PSKFinish) HandlePSKFinishRsp(wire.PSKFinishRsp) error {
	if f.state != FinishSent {
		return ErrWrongState
	}
	th2, err := f.transcript.THOf(f.suite, f.hashAlgo, transcript.MessageK, transcript.MessageF)
	if err != nil {
		return err
	}
	f.th2 = th2
	f.state = FinishComplete
	return nil
}

// TH2 returns the data-phase transcript hash, available once the
// handshake has completed on this side.
func (f *PSKFinish) TH2() []byte { return f.th2 }
