package requester

import (
	"context"
	"io"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// Challenge runs CHALLENGE/CHALLENGE_AUTH against slot, asking for
// summaryType's measurement summary hash, and verifies the responder's
// signature over the accumulated A||B||C transcript. slot may be
// wire.SlotNone to ask the responder to authenticate against whatever
// chain it holds without a prior GET_CERTIFICATE exchange; in that case
// the signature is verified against r.ctx.Local.PeerCertChainProvision,
// the chain this endpoint already has provisioned locally, instead of
// r.ctx.Connection.PeerCertChain.
func (r *Requester) Challenge(ctx context.Context, slot uint8, summaryType wire.MeasurementSummaryHashType) (wire.ChallengeAuth, error) {
	var nonce [wire.NonceSize]byte
	if _, err := io.ReadFull(r.suite.Random(), nonce[:]); err != nil {
		return wire.ChallengeAuth{}, err
	}

	req := wire.Challenge{
		Header: wire.Header{
			SPDMVersion: r.ctx.Local.SPDMVersion,
			Param1:      slot,
			Param2:      uint8(summaryType),
		},
		Nonce: nonce,
	}
	reqBytes := req.Encode()
	if err := r.ctx.Transcript.Append(transcript.C, reqBytes); err != nil {
		return wire.ChallengeAuth{}, err
	}

	rspBytes, err := r.sendRecv(ctx, reqBytes)
	if err != nil {
		return wire.ChallengeAuth{}, err
	}
	if wire.Code(rspBytes[1]) != wire.CodeChallengeAuth {
		return wire.ChallengeAuth{}, ErrUnexpectedResponse
	}

	hashSize := r.ctx.Connection.NegotiatedBaseHashAlgo.Size()
	summarySize := r.ctx.Connection.NegotiatedMeasurementHashAlgo.Size()
	sigSize := r.ctx.Connection.NegotiatedBaseAsymAlgo.SignatureSize()

	rsp, err := wire.DecodeChallengeAuth(rspBytes, hashSize, summarySize, sigSize)
	if err != nil {
		return wire.ChallengeAuth{}, err
	}
	authSlot := rsp.Header.Param1 &^ wire.ChallengeAuthBasicMutAuthReq
	basicMutAuth := rsp.Header.Param1&wire.ChallengeAuthBasicMutAuthReq != 0
	usedProvisioned := slot == wire.SlotNone
	if usedProvisioned && (authSlot != 0xF || rsp.Header.Param2 != 0) {
		return wire.ChallengeAuth{}, ErrUnexpectedResponse
	}
	if basicMutAuth && wire.CapabilityFlags(r.ctx.Local.Capabilities)&wire.CapMutAuthCap == 0 {
		return wire.ChallengeAuth{}, spdmerr.DeviceError.Wrap(ErrMutualAuthNotSupported)
	}

	// C carries CHALLENGE_AUTH up to but not including the signature: the
	// signature itself is what that transcript is verified against.
	signedPortion := rspBytes[:len(rspBytes)-sigSize]
	if err := r.ctx.Transcript.AppendPartial(transcript.C, signedPortion); err != nil {
		return wire.ChallengeAuth{}, err
	}

	digest, err := r.ctx.Transcript.THForSigningAK(r.suite, r.ctx.Connection.NegotiatedBaseHashAlgo, false)
	if err != nil {
		return wire.ChallengeAuth{}, err
	}

	peerChain := r.ctx.Connection.PeerCertChain
	if usedProvisioned {
		peerChain = r.ctx.Local.PeerCertChainProvision
	}
	leaf, err := r.suite.X509Leaf(peerChain)
	if err != nil {
		return wire.ChallengeAuth{}, err
	}
	pub, err := spdmcrypto.PublicKeyBytes(r.ctx.Connection.NegotiatedBaseAsymAlgo, leaf)
	if err != nil {
		return wire.ChallengeAuth{}, err
	}
	if err := r.suite.AsymVerify(r.ctx.Connection.NegotiatedBaseAsymAlgo, pub, digest, rsp.Signature); err != nil {
		return wire.ChallengeAuth{}, ErrVerifyFailed
	}
	if err := r.ctx.Transcript.AppendFinal(transcript.C, rsp.Signature); err != nil {
		return wire.ChallengeAuth{}, err
	}

	if err := r.ctx.AdvanceState(endpoint.StateAuthenticated); err != nil {
		return wire.ChallengeAuth{}, err
	}

	if basicMutAuth {
		if _, err := r.runEncapsulatedFlow(ctx, r.sendRecv); err != nil {
			return wire.ChallengeAuth{}, err
		}
	}

	// The challenge round is closed; the next CHALLENGE binds a fresh
	// M1M2 rather than extending this one.
	if err := r.ctx.Transcript.Reset(transcript.B); err != nil {
		return wire.ChallengeAuth{}, err
	}
	if err := r.ctx.Transcript.Reset(transcript.C); err != nil {
		return wire.ChallengeAuth{}, err
	}
	return rsp, nil
}
