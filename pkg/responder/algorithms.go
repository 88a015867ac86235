package responder

import (
	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// lowestBit returns the lowest set bit of v, or 0 if v is 0. NEGOTIATE_
// ALGORITHMS selects, per category, the lowest bit common to both sides'
// advertised sets.
func lowestBit[T ~uint16 | ~uint32](v T) T {
	return v & (-v)
}

// selectCommon picks the responder's selection for one algorithm category:
// the lowest bit set in both the requester's proposal and this endpoint's
// own support. An empty intersection is ErrAlgorithmMismatch.
func selectCommon[T ~uint16 | ~uint32](local, requested T) (T, error) {
	common := local & requested
	if common == 0 {
		return 0, spdmerr.Unsupported.Wrap(ErrAlgorithmMismatch)
	}
	return lowestBit(common), nil
}

// handleNegotiateAlgorithms answers NEGOTIATE_ALGORITHMS, selecting one
// value per category from the intersection of what the requester proposed
// and what this endpoint supports.
func (r *Responder) handleNegotiateAlgorithms(raw []byte) ([]byte, error) {
	req, err := wire.DecodeNegotiateAlgorithms(raw)
	if err != nil {
		return nil, err
	}
	if err := r.ctx.Transcript.Append(transcript.A, raw); err != nil {
		return nil, err
	}

	measHash, err := selectCommon(uint32(r.ctx.Local.MeasurementHashAlgo), uint32(req.MeasurementHashAlgo))
	if err != nil {
		return nil, err
	}
	baseAsym, err := selectCommon(uint32(r.ctx.Local.BaseAsymAlgo), uint32(req.BaseAsymAlgo))
	if err != nil {
		return nil, err
	}
	baseHash, err := selectCommon(uint32(r.ctx.Local.BaseHashAlgo), uint32(req.BaseHashAlgo))
	if err != nil {
		return nil, err
	}
	dhe, err := selectCommon(uint16(r.ctx.Local.DHENamedGroup), uint16(req.DHENamedGroup))
	if err != nil {
		return nil, err
	}
	aead, err := selectCommon(uint16(r.ctx.Local.AEADCipherSuite), uint16(req.AEADCipherSuite))
	if err != nil {
		return nil, err
	}
	reqBaseAsym, err := selectCommon(uint32(r.ctx.Local.ReqBaseAsymAlgo), uint32(req.ReqBaseAsymAlgo))
	if err != nil {
		return nil, err
	}
	keySched, err := selectCommon(uint16(r.ctx.Local.KeySchedule), uint16(req.KeySchedule))
	if err != nil {
		return nil, err
	}

	rsp := wire.Algorithms{
		Header:              wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		MeasurementHashAlgo: spdmcrypto.MeasurementHashAlgo(measHash),
		BaseAsymSel:         spdmcrypto.BaseAsymAlgo(baseAsym),
		BaseHashSel:         spdmcrypto.BaseHashAlgo(baseHash),
		DHENamedGroupSel:    spdmcrypto.DHENamedGroup(dhe),
		AEADCipherSuiteSel:  spdmcrypto.AEADCipherSuite(aead),
		ReqBaseAsymSel:      spdmcrypto.BaseAsymAlgo(reqBaseAsym),
		KeyScheduleSel:      spdmcrypto.KeyScheduleAlgo(keySched),
	}
	rspBytes := rsp.Encode()
	if err := r.ctx.Transcript.Append(transcript.A, rspBytes); err != nil {
		return nil, err
	}

	r.ctx.Connection.NegotiatedMeasurementHashAlgo = rsp.MeasurementHashAlgo
	r.ctx.Connection.NegotiatedBaseAsymAlgo = rsp.BaseAsymSel
	r.ctx.Connection.NegotiatedBaseHashAlgo = rsp.BaseHashSel
	r.ctx.Connection.NegotiatedDHENamedGroup = rsp.DHENamedGroupSel
	r.ctx.Connection.NegotiatedAEADCipherSuite = rsp.AEADCipherSuiteSel
	r.ctx.Connection.NegotiatedReqBaseAsymAlgo = rsp.ReqBaseAsymSel

	if err := r.ctx.AdvanceState(endpoint.StateAfterNegotiateAlgorithms); err != nil {
		return nil, err
	}
	r.ctx.MarkReceived(endpoint.ReceivedNegotiateAlgorithms)
	return rspBytes, nil
}
