package responder

import (
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// handleEndSession answers END_SESSION. The caller frees the session only
// after the END_SESSION_ACK built here has been sealed, so the ack still
// travels under the session's keys.
func (r *Responder) handleEndSession(raw []byte) ([]byte, error) {
	id, ok := r.ctx.LatestSessionID()
	if !ok {
		return nil, spdmerr.SessionNotFound.Wrap(ErrNoSession)
	}
	if _, err := r.lookupSession(id); err != nil {
		return nil, err
	}
	if _, err := wire.DecodeEndSession(raw); err != nil {
		return nil, err
	}

	ack := wire.EndSessionAck{Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion}}
	return ack.Encode(), nil
}
