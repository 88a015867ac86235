package responder

import (
	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// measurementSummaryHash asks the configured MeasurementBlocksFunc for
// every block and hashes the selected subset's concatenated measurement
// digests, the way CHALLENGE_AUTH and KEY_EXCHANGE_RSP's
// MeasurementSummaryHash field is defined: None summarizes nothing (an
// all-zeros field sized to the negotiated measurement hash algorithm), TCB
// summarizes only blocks whose masked DMTF value type is ImmutableROM, and
// All summarizes every block.
func (r *Responder) measurementSummaryHash(hashType wire.MeasurementSummaryHashType) ([]byte, error) {
	size := r.ctx.Connection.NegotiatedMeasurementHashAlgo.Size()
	if hashType == wire.MeasurementSummaryNone {
		return make([]byte, size), nil
	}
	if r.cfg.Measurements == nil {
		return nil, spdmerr.Unsupported.Wrap(ErrNoMeasurements)
	}
	blocks, err := r.cfg.Measurements(0xFF)
	if err != nil {
		return nil, err
	}
	var buf []byte
	for _, b := range blocks {
		if hashType == wire.MeasurementSummaryTCB && b.ValueType&wire.MeasurementValueTypeMask != wire.MeasurementValueTypeImmutableROM {
			continue
		}
		buf = append(buf, b.MeasurementHash...)
	}
	return r.suite.HashAll(r.ctx.Connection.NegotiatedBaseHashAlgo, buf)
}

// handleGetMeasurements answers GET_MEASUREMENTS. When the request asks
// for a fresh signature it signs the L1L2 transcript the same way CHALLENGE
// signs M1M2; otherwise it only appends the exchange to L1L2 for a later
// signed request to cover.
func (r *Responder) handleGetMeasurements(raw []byte) ([]byte, error) {
	if !r.ctx.HasReceived(endpoint.ReceivedChallenge) {
		return nil, spdmerr.DeviceError.Wrap(ErrOutOfOrder)
	}
	req, err := wire.DecodeGetMeasurements(raw)
	if err != nil {
		return nil, err
	}
	if r.cfg.Measurements == nil {
		return nil, spdmerr.Unsupported.Wrap(ErrNoMeasurements)
	}
	if err := r.ctx.Transcript.Append(transcript.L1L2, raw); err != nil {
		return nil, err
	}

	blocks, err := r.cfg.Measurements(req.Header.Param2)
	if err != nil {
		return nil, err
	}
	r.ctx.MarkReceived(endpoint.ReceivedGetMeasurements)

	signed := req.Header.Param1&0x01 != 0
	rsp := wire.Measurements{
		Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		Blocks: blocks,
		Nonce:  req.Nonce,
	}

	if !signed {
		rspBytes := rsp.Encode()
		if err := r.ctx.Transcript.Append(transcript.L1L2, rspBytes); err != nil {
			return nil, err
		}
		return rspBytes, nil
	}

	if err := r.ctx.Transcript.AppendPartial(transcript.L1L2, rsp.Encode()); err != nil {
		return nil, err
	}

	digest, err := r.ctx.Transcript.THForSigningL1L2(r.suite, r.ctx.Connection.NegotiatedBaseHashAlgo)
	if err != nil {
		return nil, err
	}
	sig, err := r.suite.AsymSign(r.ctx.Connection.NegotiatedBaseAsymAlgo, r.ctx.Local.SignerKeyID, digest)
	if err != nil {
		return nil, err
	}
	if err := r.ctx.Transcript.AppendFinal(transcript.L1L2, sig); err != nil {
		return nil, err
	}
	// A signed response closes the attestation round; the next
	// GET_MEASUREMENTS starts a fresh L1L2.
	if err := r.ctx.Transcript.Reset(transcript.L1L2); err != nil {
		return nil, err
	}

	rsp.Signature = sig
	return rsp.Encode(), nil
}
