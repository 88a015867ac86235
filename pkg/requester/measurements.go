package requester

import (
	"context"
	"io"

	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// GetMeasurements runs GET_MEASUREMENTS/MEASUREMENTS. When signed is true
// it asks for a fresh signature over the L1L2 ledger and verifies it
// against the peer's certificate chain; otherwise it only appends the
// exchange to the L1L2 ledger for a later signed request to cover.
func (r *Requester) GetMeasurements(ctx context.Context, blockIndex uint8, signed bool) (wire.Measurements, error) {
	req := wire.GetMeasurements{
		Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion, Param2: blockIndex},
	}
	if signed {
		req.Header.Param1 |= 0x01
		if _, err := io.ReadFull(r.suite.Random(), req.Nonce[:]); err != nil {
			return wire.Measurements{}, err
		}
	}
	reqBytes := req.Encode()
	if err := r.ctx.Transcript.Append(transcript.L1L2, reqBytes); err != nil {
		return wire.Measurements{}, err
	}

	rspBytes, err := r.sendRecv(ctx, reqBytes)
	if err != nil {
		return wire.Measurements{}, err
	}
	if wire.Code(rspBytes[1]) != wire.CodeMeasurements {
		return wire.Measurements{}, ErrUnexpectedResponse
	}

	sigSize := 0
	if signed {
		sigSize = r.ctx.Connection.NegotiatedBaseAsymAlgo.SignatureSize()
	}
	rsp, err := wire.DecodeMeasurements(rspBytes, sigSize)
	if err != nil {
		return wire.Measurements{}, err
	}

	if !signed {
		if err := r.ctx.Transcript.Append(transcript.L1L2, rspBytes); err != nil {
			return wire.Measurements{}, err
		}
		return rsp, nil
	}

	signedPortion := rspBytes[:len(rspBytes)-sigSize]
	if err := r.ctx.Transcript.AppendPartial(transcript.L1L2, signedPortion); err != nil {
		return wire.Measurements{}, err
	}

	digest, err := r.ctx.Transcript.THForSigningL1L2(r.suite, r.ctx.Connection.NegotiatedBaseHashAlgo)
	if err != nil {
		return wire.Measurements{}, err
	}
	leaf, err := r.suite.X509Leaf(r.ctx.Connection.PeerCertChain)
	if err != nil {
		return wire.Measurements{}, err
	}
	pub, err := spdmcrypto.PublicKeyBytes(r.ctx.Connection.NegotiatedBaseAsymAlgo, leaf)
	if err != nil {
		return wire.Measurements{}, err
	}
	if err := r.suite.AsymVerify(r.ctx.Connection.NegotiatedBaseAsymAlgo, pub, digest, rsp.Signature); err != nil {
		return wire.Measurements{}, ErrVerifyFailed
	}
	if err := r.ctx.Transcript.AppendFinal(transcript.L1L2, rsp.Signature); err != nil {
		return wire.Measurements{}, err
	}
	// A signed response closes the attestation round; the next
	// GET_MEASUREMENTS starts a fresh L1L2.
	if err := r.ctx.Transcript.Reset(transcript.L1L2); err != nil {
		return wire.Measurements{}, err
	}
	return rsp, nil
}
