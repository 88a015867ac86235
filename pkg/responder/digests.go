package responder

import (
	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// handleGetDigests answers GET_DIGESTS with one certificate-chain digest
// per provisioned slot, in ascending slot order.
func (r *Responder) handleGetDigests(raw []byte) ([]byte, error) {
	if err := r.ctx.Transcript.Append(transcript.B, raw); err != nil {
		return nil, err
	}

	var digests [][]byte
	for slot := 0; slot < endpoint.MaxSlotCount; slot++ {
		if r.ctx.Local.ProvisionedSlotMask&(1<<uint(slot)) == 0 {
			continue
		}
		digest, err := r.suite.HashAll(r.ctx.Connection.NegotiatedBaseHashAlgo, r.ctx.Local.CertificateChains[slot])
		if err != nil {
			return nil, err
		}
		digests = append(digests, digest)
	}

	rsp := wire.Digests{
		Header:  wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		Digests: digests,
	}
	rspBytes := rsp.Encode()
	if err := r.ctx.Transcript.Append(transcript.B, rspBytes); err != nil {
		return nil, err
	}

	if err := r.ctx.AdvanceState(endpoint.StateAfterDigests); err != nil {
		return nil, err
	}
	r.ctx.MarkReceived(endpoint.ReceivedGetDigests)
	return rspBytes, nil
}
