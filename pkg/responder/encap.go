package responder

import (
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// handleGetEncapsulatedRequest hands out the first nested request of the
// sub-dialogue a preceding CHALLENGE or KEY_EXCHANGE armed. A requester
// that asks without one in progress is out of order.
func (r *Responder) handleGetEncapsulatedRequest(raw []byte) ([]byte, error) {
	if _, err := wire.DecodeGetEncapsulatedRequest(raw); err != nil {
		return nil, err
	}
	if r.encap == nil {
		return nil, spdmerr.DeviceError.Wrap(ErrOutOfOrder)
	}

	payload, done, err := r.encap.NextRequest()
	if err != nil {
		return nil, err
	}
	if done {
		return nil, spdmerr.DeviceError.Wrap(ErrOutOfOrder)
	}

	r.ctx.Encap.RequestID++
	env := wire.EncapsulatedRequest{
		Header:    wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		RequestID: r.ctx.Encap.RequestID,
		Payload:   payload,
	}
	return env.Encode(), nil
}

// handleDeliverEncapsulatedResponse consumes one delivered nested
// response and either hands out the next nested request or, when the
// dialogue has finished, acknowledges completion. The finished Driver is
// kept around: a mutual-auth FINISH still needs the certificate chain it
// reassembled.
func (r *Responder) handleDeliverEncapsulatedResponse(raw []byte) ([]byte, error) {
	deliver, err := wire.DecodeDeliverEncapsulatedResponse(raw)
	if err != nil {
		return nil, err
	}
	if r.encap == nil {
		return nil, spdmerr.DeviceError.Wrap(ErrOutOfOrder)
	}
	if deliver.RequestID != r.ctx.Encap.RequestID {
		return nil, spdmerr.InvalidParameter.Wrap(ErrUnexpectedRequest)
	}

	if err := r.encap.HandleResponse(deliver.Payload); err != nil {
		return nil, err
	}

	payload, done, err := r.encap.NextRequest()
	if err != nil {
		return nil, err
	}

	ack := wire.EncapsulatedResponseAck{
		Header:    wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
		RequestID: deliver.RequestID,
		Done:      done,
	}
	if !done {
		r.ctx.Encap.RequestID++
		ack.RequestID = r.ctx.Encap.RequestID
		ack.Payload = payload
	}
	return ack.Encode(), nil
}
