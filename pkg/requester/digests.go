package requester

import (
	"context"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// GetDigests runs GET_DIGESTS/DIGESTS, retrieving a one-digest-per-slot
// summary of the peer's provisioned certificate chains.
func (r *Requester) GetDigests(ctx context.Context) (wire.Digests, error) {
	req := wire.GetDigests{Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion}}
	reqBytes := req.Encode()
	if err := r.ctx.Transcript.Append(transcript.B, reqBytes); err != nil {
		return wire.Digests{}, err
	}

	rspBytes, err := r.sendRecv(ctx, reqBytes)
	if err != nil {
		return wire.Digests{}, err
	}
	if wire.Code(rspBytes[1]) != wire.CodeDigests {
		return wire.Digests{}, ErrUnexpectedResponse
	}
	digestSize := r.ctx.Connection.NegotiatedBaseHashAlgo.Size()
	rsp, err := wire.DecodeDigests(rspBytes, digestSize)
	if err != nil {
		return wire.Digests{}, err
	}
	if err := r.ctx.Transcript.Append(transcript.B, rspBytes); err != nil {
		return wire.Digests{}, err
	}

	if err := r.ctx.AdvanceState(endpoint.StateAfterDigests); err != nil {
		return wire.Digests{}, err
	}
	return rsp, nil
}
