package establish

import (
	"github.com/openspdm/spdm-go/pkg/session"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// FinishState is where a FINISH (or PSK_FINISH) exchange currently stands.
type FinishState int

// Finish states, advanced in this order by the calling role's requester or
// responder handlers.
const (
	FinishInit FinishState = iota
	FinishSent     // requester: FINISH sent, awaiting FINISH_RSP
	FinishComplete // both: data keys may now be derived
)

// Finish drives the asymmetric FINISH exchange that completes a
// KEY_EXCHANGE handshake. It shares the transcript.Manager the KeyExchange
// that preceded it used, so MessageK is already populated (and prefixed
// with A and the local certificate hash the caller seeded before calling
// KeyExchange.Start/HandleKeyExchange).
type Finish struct {
	role  session.Role
	state FinishState

	suite    spdmcrypto.Suite
	hashAlgo spdmcrypto.BaseHashAlgo

	transcript *transcript.Manager
	keys       *session.Keys

	// mutCertHash is the hash of the certificate chain the requester
	// presented during the encapsulated mutual-auth sub-dialogue. It sits
	// between MessageK and MessageF in every transcript hash this exchange
	// computes; nil for a session without mutual authentication.
	mutCertHash []byte

	th2 []byte
}

// NewFinish constructs a Finish handler sharing tr (the KeyExchange's
// transcript.Manager) and keys (the handshake-phase keys KeyExchange
// derived).
func NewFinish(role session.Role, suite spdmcrypto.Suite, hashAlgo spdmcrypto.BaseHashAlgo, tr *transcript.Manager, keys *session.Keys) *Finish {
	return &Finish{role: role, suite: suite, hashAlgo: hashAlgo, transcript: tr, keys: keys}
}

// SetMutCertHash installs the hash of the requester's mutual-auth
// certificate chain. Both sides must call it with the same value before
// Start/HandleFinish, or their verify-data HMACs and TH2 will disagree.
func (f *Finish) SetMutCertHash(h []byte) { f.mutCertHash = h }

// th computes H(MessageK || mutCertHash || MessageF) over the transcript
// as it currently stands. This is the digest every signature, verify-data
// HMAC, and finally TH2 in this exchange is taken over; the messages
// appended between calls are what distinguish them.
func (f *Finish) th() ([]byte, error) {
	k, err := f.transcript.Bytes(transcript.MessageK)
	if err != nil {
		return nil, err
	}
	mf, err := f.transcript.Bytes(transcript.MessageF)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(k)+len(f.mutCertHash)+len(mf))
	buf = append(buf, k...)
	buf = append(buf, f.mutCertHash...)
	buf = append(buf, mf...)
	return f.suite.HashAll(f.hashAlgo, buf)
}

// Start builds the requester's FINISH request. When mutualAuth is true,
// sign produces the requester-asymmetric signature over the current
// transcript hash, binding the session to the certificate the requester
// presented during the encapsulated sub-dialogue (SetMutCertHash must have
// been called first).
func (f *Finish) Start(mutualAuth bool, sign func(digest []byte) ([]byte, error)) (wire.Finish, error) {
	if f.state != FinishInit {
		return wire.Finish{}, ErrWrongState
	}

	var req wire.Finish
	if mutualAuth {
		digest, err := f.th()
		if err != nil {
			return wire.Finish{}, err
		}
		sig, err := sign(digest)
		if err != nil {
			return wire.Finish{}, err
		}
		req.Signature = sig
		req.Header.Param1 = 1
	}
	if err := f.transcript.AppendPartial(transcript.MessageF, req.Signature); err != nil {
		return wire.Finish{}, err
	}

	th, err := f.th()
	if err != nil {
		return wire.Finish{}, err
	}
	verifyData, err := computeVerifyData(f.suite, f.hashAlgo, f.keys.RequestFinishedKey, th)
	if err != nil {
		return wire.Finish{}, err
	}
	req.RequesterVerifyData = verifyData
	if err := f.transcript.AppendFinal(transcript.MessageF, verifyData); err != nil {
		return wire.Finish{}, err
	}

	f.state = FinishSent
	return req, nil
}

// HandleFinish verifies the requester's FINISH on the responder side and
// returns the FINISH_RSP to send. verify checks req.Signature (when
// present) against the current transcript hash.
func (f *Finish) HandleFinish(req wire.Finish, verify func(digest, sig []byte) error) (wire.FinishRsp, error) {
	if f.state != FinishInit {
		return wire.FinishRsp{}, ErrWrongState
	}

	if req.Header.Param1&0x01 != 0 {
		digest, err := f.th()
		if err != nil {
			return wire.FinishRsp{}, err
		}
		if err := verify(digest, req.Signature); err != nil {
			return wire.FinishRsp{}, err
		}
	}
	if err := f.transcript.AppendPartial(transcript.MessageF, req.Signature); err != nil {
		return wire.FinishRsp{}, err
	}

	th, err := f.th()
	if err != nil {
		return wire.FinishRsp{}, err
	}
	if err := checkVerifyData(f.suite, f.hashAlgo, f.keys.RequestFinishedKey, th, req.RequesterVerifyData); err != nil {
		return wire.FinishRsp{}, err
	}
	if err := f.transcript.AppendFinal(transcript.MessageF, req.RequesterVerifyData); err != nil {
		return wire.FinishRsp{}, err
	}

	thRsp, err := f.th()
	if err != nil {
		return wire.FinishRsp{}, err
	}
	respVerify, err := computeVerifyData(f.suite, f.hashAlgo, f.keys.ResponseFinishedKey, thRsp)
	if err != nil {
		return wire.FinishRsp{}, err
	}
	if err := f.transcript.Append(transcript.MessageF, respVerify); err != nil {
		return wire.FinishRsp{}, err
	}

	th2, err := f.th()
	if err != nil {
		return wire.FinishRsp{}, err
	}
	f.th2 = th2
	f.state = FinishComplete
	return wire.FinishRsp{ResponderVerifyData: respVerify}, nil
}

// HandleFinishRsp verifies the responder's FINISH_RSP on the requester
// side, completing the handshake.
func (f *Finish) HandleFinishRsp(rsp wire.FinishRsp) error {
	if f.state != FinishSent {
		return ErrWrongState
	}

	th, err := f.th()
	if err != nil {
		return err
	}
	if err := checkVerifyData(f.suite, f.hashAlgo, f.keys.ResponseFinishedKey, th, rsp.ResponderVerifyData); err != nil {
		return err
	}
	if err := f.transcript.Append(transcript.MessageF, rsp.ResponderVerifyData); err != nil {
		return err
	}

	th2, err := f.th()
	if err != nil {
		return err
	}
	f.th2 = th2
	f.state = FinishComplete
	return nil
}

// TH2 returns the data-phase transcript hash, available once the handshake
// has completed on this side.
func (f *Finish) TH2() []byte { return f.th2 }
