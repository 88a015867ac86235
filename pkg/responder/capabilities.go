package responder

import (
	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// handleGetCapabilities answers GET_CAPABILITIES with this endpoint's
// capability flags, and narrows NegotiatedCapabilities to the bits both
// sides advertise.
func (r *Responder) handleGetCapabilities(raw []byte) ([]byte, error) {
	req, err := wire.DecodeGetCapabilities(raw)
	if err != nil {
		return nil, err
	}
	if err := r.ctx.Transcript.Append(transcript.A, raw); err != nil {
		return nil, err
	}

	rsp := wire.Capabilities{
		Header:     wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		CTExponent: r.ctx.Local.CTExponent,
		Flags:      wire.CapabilityFlags(r.ctx.Local.Capabilities),
	}
	rspBytes := rsp.Encode()
	if err := r.ctx.Transcript.Append(transcript.A, rspBytes); err != nil {
		return nil, err
	}

	r.ctx.Connection.NegotiatedCapabilities = r.ctx.Local.Capabilities & uint32(req.Flags)
	if err := r.ctx.AdvanceState(endpoint.StateAfterCapabilities); err != nil {
		return nil, err
	}
	r.ctx.MarkReceived(endpoint.ReceivedGetCapabilities)
	return rspBytes, nil
}
