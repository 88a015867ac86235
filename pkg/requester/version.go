package requester

import (
	"context"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// GetVersion runs GET_VERSION/VERSION, the first step of every connection.
func (r *Requester) GetVersion(ctx context.Context) (wire.Version, error) {
	req := wire.GetVersion{Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion}}
	reqBytes := req.Encode()
	if err := r.ctx.Transcript.Append(transcript.A, reqBytes); err != nil {
		return wire.Version{}, err
	}

	rspBytes, err := r.sendRecv(ctx, reqBytes)
	if err != nil {
		return wire.Version{}, err
	}
	if wire.Code(rspBytes[1]) != wire.CodeVersion {
		return wire.Version{}, ErrUnexpectedResponse
	}
	rsp, err := wire.DecodeVersion(rspBytes)
	if err != nil {
		return wire.Version{}, err
	}
	if err := r.ctx.Transcript.Append(transcript.A, rspBytes); err != nil {
		return wire.Version{}, err
	}

	if err := r.ctx.AdvanceState(endpoint.StateAfterVersion); err != nil {
		return wire.Version{}, err
	}
	return rsp, nil
}
