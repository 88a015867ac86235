package responder

import (
	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// CertificateChunkSize is the largest fragment this responder returns per
// GET_CERTIFICATE round trip.
const CertificateChunkSize = 1024

// handleGetCertificate answers GET_CERTIFICATE with one fragment of the
// requested slot's DER certificate chain. The connection only advances to
// StateAfterCertificate once the final fragment (RemainderLength == 0) has
// been sent.
func (r *Responder) handleGetCertificate(raw []byte) ([]byte, error) {
	req, err := wire.DecodeGetCertificate(raw)
	if err != nil {
		return nil, err
	}
	slot := req.Header.Param1
	if int(slot) >= endpoint.MaxSlotCount || r.ctx.Local.ProvisionedSlotMask&(1<<slot) == 0 {
		return nil, endpoint.ErrInvalidSlot
	}
	if err := r.ctx.Transcript.Append(transcript.B, raw); err != nil {
		return nil, err
	}

	chain := r.ctx.Local.CertificateChains[slot]
	offset := int(req.Offset)
	if offset > len(chain) {
		offset = len(chain)
	}
	length := int(req.Length)
	if length == 0 || length > CertificateChunkSize {
		length = CertificateChunkSize
	}
	end := offset + length
	if end > len(chain) {
		end = len(chain)
	}

	rsp := wire.Certificate{
		Header:          wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		PortionLength:   uint16(end - offset),
		RemainderLength: uint16(len(chain) - end),
		CertChain:       chain[offset:end],
	}
	rspBytes := rsp.Encode()
	if err := r.ctx.Transcript.Append(transcript.B, rspBytes); err != nil {
		return nil, err
	}

	if rsp.RemainderLength == 0 {
		r.ctx.Connection.UsedLocalCertSlot = slot
		if err := r.ctx.AdvanceState(endpoint.StateAfterCertificate); err != nil {
			return nil, err
		}
		r.ctx.MarkReceived(endpoint.ReceivedGetCertificate)
	}
	return rspBytes, nil
}
