package requester

import (
	"context"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// GetCapabilities runs GET_CAPABILITIES/CAPABILITIES.
func (r *Requester) GetCapabilities(ctx context.Context) (wire.Capabilities, error) {
	req := wire.GetCapabilities{
		Header:     wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		CTExponent: r.ctx.Local.CTExponent,
		Flags:      wire.CapabilityFlags(r.ctx.Local.Capabilities),
	}
	reqBytes := req.Encode()
	if err := r.ctx.Transcript.Append(transcript.A, reqBytes); err != nil {
		return wire.Capabilities{}, err
	}

	rspBytes, err := r.sendRecv(ctx, reqBytes)
	if err != nil {
		return wire.Capabilities{}, err
	}
	if wire.Code(rspBytes[1]) != wire.CodeCapabilities {
		return wire.Capabilities{}, ErrUnexpectedResponse
	}
	rsp, err := wire.DecodeCapabilities(rspBytes)
	if err != nil {
		return wire.Capabilities{}, err
	}
	if err := r.ctx.Transcript.Append(transcript.A, rspBytes); err != nil {
		return wire.Capabilities{}, err
	}

	r.ctx.Connection.NegotiatedCapabilities = r.ctx.Local.Capabilities & uint32(rsp.Flags)
	if err := r.ctx.AdvanceState(endpoint.StateAfterCapabilities); err != nil {
		return wire.Capabilities{}, err
	}
	return rsp, nil
}
