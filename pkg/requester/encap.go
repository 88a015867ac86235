package requester

import (
	"context"

	"github.com/openspdm/spdm-go/pkg/encap"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// runEncapsulatedFlow services the responder-initiated sub-dialogue that
// follows a mutual-auth request: it pulls nested requests out of
// ENCAPSULATED_REQUEST envelopes, answers them against this endpoint's
// own certificates, and delivers the responses until the responder
// acknowledges the dialogue as finished. sendRecv carries the envelope
// messages — the plaintext channel after CHALLENGE, or a closure over the
// session's secured channel during session establishment. It returns the
// Answerer so the caller can fold the chain this endpoint presented into
// a mutual-auth FINISH.
func (r *Requester) runEncapsulatedFlow(ctx context.Context, sendRecv func(context.Context, []byte) ([]byte, error)) (*encap.Answerer, error) {
	answerer, err := encap.NewAnswerer(r.ctx, r.suite)
	if err != nil {
		return nil, err
	}

	get := wire.GetEncapsulatedRequest{Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion}}
	rspBytes, err := sendRecv(ctx, get.Encode())
	if err != nil {
		return nil, err
	}
	if wire.Code(rspBytes[1]) != wire.CodeEncapsulatedRequest {
		return nil, ErrUnexpectedResponse
	}
	env, err := wire.DecodeEncapsulatedRequest(rspBytes)
	if err != nil {
		return nil, err
	}

	for {
		nestedRsp, err := answerer.Answer(env.Payload)
		if err != nil {
			return nil, err
		}

		deliver := wire.DeliverEncapsulatedResponse{
			Header:    wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion},
			RequestID: env.RequestID,
			Payload:   nestedRsp,
		}
		ackBytes, err := sendRecv(ctx, deliver.Encode())
		if err != nil {
			return nil, err
		}
		if wire.Code(ackBytes[1]) != wire.CodeEncapsulatedResponseAck {
			return nil, ErrUnexpectedResponse
		}
		ack, err := wire.DecodeEncapsulatedResponseAck(ackBytes)
		if err != nil {
			return nil, err
		}
		if ack.Done {
			return answerer, nil
		}
		env = wire.EncapsulatedRequest{Header: ack.Header, RequestID: ack.RequestID, Payload: ack.Payload}
	}
}
