package responder

import (
	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// handleGetVersion answers GET_VERSION with the single version entry this
// endpoint supports.
func (r *Responder) handleGetVersion(raw []byte) ([]byte, error) {
	if err := r.ctx.Transcript.Append(transcript.A, raw); err != nil {
		return nil, err
	}

	rsp := wire.Version{
		Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		Versions: []wire.VersionEntry{
			{MajorMinor: r.ctx.Local.SPDMVersion},
		},
	}
	rspBytes := rsp.Encode()
	if err := r.ctx.Transcript.Append(transcript.A, rspBytes); err != nil {
		return nil, err
	}

	if err := r.ctx.AdvanceState(endpoint.StateAfterVersion); err != nil {
		return nil, err
	}
	r.ctx.MarkReceived(endpoint.ReceivedGetVersion)
	return rspBytes, nil
}
