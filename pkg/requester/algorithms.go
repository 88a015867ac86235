package requester

import (
	"context"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// NegotiateAlgorithms runs NEGOTIATE_ALGORITHMS/ALGORITHMS, pinning the
// algorithm set the rest of the connection uses.
func (r *Requester) NegotiateAlgorithms(ctx context.Context) (wire.Algorithms, error) {
	req := wire.NegotiateAlgorithms{
		Header:              wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		MeasurementHashAlgo: r.ctx.Local.MeasurementHashAlgo,
		BaseAsymAlgo:        r.ctx.Local.BaseAsymAlgo,
		BaseHashAlgo:        r.ctx.Local.BaseHashAlgo,
		DHENamedGroup:       r.ctx.Local.DHENamedGroup,
		AEADCipherSuite:     r.ctx.Local.AEADCipherSuite,
		ReqBaseAsymAlgo:     r.ctx.Local.ReqBaseAsymAlgo,
		KeySchedule:         r.ctx.Local.KeySchedule,
	}
	reqBytes := req.Encode()
	if err := r.ctx.Transcript.Append(transcript.A, reqBytes); err != nil {
		return wire.Algorithms{}, err
	}

	rspBytes, err := r.sendRecv(ctx, reqBytes)
	if err != nil {
		return wire.Algorithms{}, err
	}
	if wire.Code(rspBytes[1]) != wire.CodeAlgorithms {
		return wire.Algorithms{}, ErrUnexpectedResponse
	}
	rsp, err := wire.DecodeAlgorithms(rspBytes)
	if err != nil {
		return wire.Algorithms{}, err
	}
	if err := r.ctx.Transcript.Append(transcript.A, rspBytes); err != nil {
		return wire.Algorithms{}, err
	}

	r.ctx.Connection.NegotiatedMeasurementHashAlgo = rsp.MeasurementHashAlgo
	r.ctx.Connection.NegotiatedBaseAsymAlgo = rsp.BaseAsymSel
	r.ctx.Connection.NegotiatedBaseHashAlgo = rsp.BaseHashSel
	r.ctx.Connection.NegotiatedDHENamedGroup = rsp.DHENamedGroupSel
	r.ctx.Connection.NegotiatedAEADCipherSuite = rsp.AEADCipherSuiteSel
	r.ctx.Connection.NegotiatedReqBaseAsymAlgo = rsp.ReqBaseAsymSel

	if err := r.ctx.AdvanceState(endpoint.StateAfterNegotiateAlgorithms); err != nil {
		return wire.Algorithms{}, err
	}
	return rsp, nil
}
