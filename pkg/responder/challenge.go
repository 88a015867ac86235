package responder

import (
	"io"

	"github.com/openspdm/spdm-go/pkg/encap"
	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// defaultLocalSlot returns the lowest-numbered slot ProvisionedSlotMask
// marks as present, the identity a CHALLENGE for slot 0xFF signs with
// since no real slot was named in the request.
func (r *Responder) defaultLocalSlot() uint8 {
	for i := 0; i < endpoint.MaxSlotCount; i++ {
		if r.ctx.Local.ProvisionedSlotMask&(1<<uint(i)) != 0 {
			return uint8(i)
		}
	}
	return 0
}

// handleChallenge answers CHALLENGE/CHALLENGE_AUTH: it signs the
// accumulated A||B||C transcript with the local key, binding the
// certificate chain of the slot the request names. A request slot of
// wire.SlotNone asks the responder to authenticate against whichever
// chain the requester already has provisioned locally, bypassing
// GET_CERTIFICATE; the responder answers that case with Param1 = 0xF,
// Param2 = 0 so the requester can tell the two conventions apart.
func (r *Responder) handleChallenge(raw []byte) ([]byte, error) {
	req, err := wire.DecodeChallenge(raw)
	if err != nil {
		return nil, err
	}
	useProvisioned := req.Header.Param1 == wire.SlotNone
	if !useProvisioned && !r.ctx.HasReceived(endpoint.ReceivedGetDigests|endpoint.ReceivedGetCertificate) {
		return nil, spdmerr.DeviceError.Wrap(ErrOutOfOrder)
	}
	if err := r.ctx.Transcript.Append(transcript.C, raw); err != nil {
		return nil, err
	}

	slot := req.Header.Param1
	if useProvisioned {
		slot = r.defaultLocalSlot()
	}
	summaryType := wire.MeasurementSummaryHashType(req.Header.Param2)

	certHash, err := r.suite.HashAll(r.ctx.Connection.NegotiatedBaseHashAlgo, r.ctx.Local.CertificateChains[slot])
	if err != nil {
		return nil, err
	}

	summaryHash, err := r.measurementSummaryHash(summaryType)
	if err != nil {
		return nil, err
	}

	var nonce [wire.NonceSize]byte
	if _, err := io.ReadFull(r.suite.Random(), nonce[:]); err != nil {
		return nil, err
	}

	header := wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion, Param1: slot, Param2: 1 << slot}
	if useProvisioned {
		header.Param1 = 0xF
		header.Param2 = 0
	}
	wantMutAuth := r.ctx.Local.BasicMutAuthRequested &&
		wire.CapabilityFlags(r.ctx.Connection.NegotiatedCapabilities)&wire.CapMutAuthCap != 0
	if wantMutAuth {
		header.Param1 |= wire.ChallengeAuthBasicMutAuthReq
	}
	partial := wire.ChallengeAuth{
		Header:                 header,
		CertChainHash:          certHash,
		Nonce:                  nonce,
		MeasurementSummaryHash: summaryHash,
	}
	if err := r.ctx.Transcript.AppendPartial(transcript.C, partial.Encode()); err != nil {
		return nil, err
	}

	digest, err := r.ctx.Transcript.THForSigningAK(r.suite, r.ctx.Connection.NegotiatedBaseHashAlgo, false)
	if err != nil {
		return nil, err
	}
	sig, err := r.suite.AsymSign(r.ctx.Connection.NegotiatedBaseAsymAlgo, r.ctx.Local.SignerKeyID, digest)
	if err != nil {
		return nil, err
	}
	if err := r.ctx.Transcript.AppendFinal(transcript.C, sig); err != nil {
		return nil, err
	}

	partial.Signature = sig
	rspBytes := partial.Encode()

	r.ctx.Connection.UsedLocalCertSlot = slot
	if err := r.ctx.AdvanceState(endpoint.StateAuthenticated); err != nil {
		return nil, err
	}
	r.ctx.MarkReceived(endpoint.ReceivedChallenge)

	if wantMutAuth {
		driver, err := encap.NewDriver(r.ctx, r.suite, true)
		if err != nil {
			return nil, err
		}
		r.encap = driver
	}

	// The challenge round is closed; the next CHALLENGE binds a fresh
	// M1M2 rather than extending this one.
	if err := r.ctx.Transcript.Reset(transcript.B); err != nil {
		return nil, err
	}
	if err := r.ctx.Transcript.Reset(transcript.C); err != nil {
		return nil, err
	}
	return rspBytes, nil
}
