package encap

import (
	"io"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// Answerer runs the requester's half of the encapsulated sub-dialogue:
// it answers the nested GET_DIGESTS/GET_CERTIFICATE/CHALLENGE requests
// the responder tunnels through the envelope messages, presenting this
// endpoint's own certificate chains and signing the nested
// CHALLENGE_AUTH with the requester-asymmetric algorithm.
type Answerer struct {
	ctx   *endpoint.Context
	suite spdmcrypto.Suite

	servedSlot  uint8
	servedChain []byte
}

// NewAnswerer prepares the requester side of a fresh sub-dialogue,
// resetting the MutB/MutC ledgers a previous round may have filled.
func NewAnswerer(ctx *endpoint.Context, suite spdmcrypto.Suite) (*Answerer, error) {
	if err := ctx.Transcript.Reset(transcript.MutB); err != nil {
		return nil, err
	}
	if err := ctx.Transcript.Reset(transcript.MutC); err != nil {
		return nil, err
	}
	return &Answerer{ctx: ctx, suite: suite, servedSlot: wire.SlotNone}, nil
}

// ServedChain returns the certificate chain this endpoint presented
// during the dialogue, nil until a nested GET_CERTIFICATE completes. A
// mutual-auth FINISH hashes it into the session transcript.
func (a *Answerer) ServedChain() []byte { return a.servedChain }

// Answer builds the nested response for one nested request, appending
// both to the matching transcript ledger.
func (a *Answerer) Answer(nested []byte) ([]byte, error) {
	if len(nested) < wire.HeaderSize {
		return nil, wire.ErrTruncated
	}
	switch wire.Code(nested[1]) {
	case wire.CodeGetDigests:
		return a.answerGetDigests(nested)
	case wire.CodeGetCertificate:
		return a.answerGetCertificate(nested)
	case wire.CodeChallenge:
		return a.answerChallenge(nested)
	default:
		return nil, spdmerr.Unsupported.Wrap(ErrUnexpectedMessage)
	}
}

func (a *Answerer) answerGetDigests(nested []byte) ([]byte, error) {
	if err := a.ctx.Transcript.Append(transcript.MutB, nested); err != nil {
		return nil, err
	}

	var digests [][]byte
	for slot := 0; slot < endpoint.MaxSlotCount; slot++ {
		if a.ctx.Local.ProvisionedSlotMask&(1<<uint(slot)) == 0 {
			continue
		}
		digest, err := a.suite.HashAll(a.ctx.Connection.NegotiatedBaseHashAlgo, a.ctx.Local.CertificateChains[slot])
		if err != nil {
			return nil, err
		}
		digests = append(digests, digest)
	}
	if len(digests) == 0 {
		return nil, spdmerr.Unsupported.Wrap(ErrNoCertificate)
	}

	rsp := wire.Digests{
		Header:  wire.Header{SPDMVersion: a.ctx.Local.SPDMVersion},
		Digests: digests,
	}
	rspBytes := rsp.Encode()
	if err := a.ctx.Transcript.Append(transcript.MutB, rspBytes); err != nil {
		return nil, err
	}
	return rspBytes, nil
}

func (a *Answerer) answerGetCertificate(nested []byte) ([]byte, error) {
	req, err := wire.DecodeGetCertificate(nested)
	if err != nil {
		return nil, err
	}
	slot := req.Header.Param1
	if int(slot) >= endpoint.MaxSlotCount || a.ctx.Local.ProvisionedSlotMask&(1<<slot) == 0 {
		return nil, endpoint.ErrInvalidSlot
	}
	if err := a.ctx.Transcript.Append(transcript.MutB, nested); err != nil {
		return nil, err
	}

	chain := a.ctx.Local.CertificateChains[slot]
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
		Header:          wire.Header{SPDMVersion: a.ctx.Local.SPDMVersion},
		PortionLength:   uint16(end - offset),
		RemainderLength: uint16(len(chain) - end),
		CertChain:       chain[offset:end],
	}
	rspBytes := rsp.Encode()
	if err := a.ctx.Transcript.Append(transcript.MutB, rspBytes); err != nil {
		return nil, err
	}

	if rsp.RemainderLength == 0 {
		a.servedSlot = slot
		a.servedChain = chain
	}
	return rspBytes, nil
}

func (a *Answerer) answerChallenge(nested []byte) ([]byte, error) {
	if _, err := wire.DecodeChallenge(nested); err != nil {
		return nil, err
	}
	if a.servedChain == nil {
		return nil, spdmerr.DeviceError.Wrap(ErrWrongState)
	}
	if err := a.ctx.Transcript.Append(transcript.MutC, nested); err != nil {
		return nil, err
	}

	certHash, err := a.suite.HashAll(a.ctx.Connection.NegotiatedBaseHashAlgo, a.servedChain)
	if err != nil {
		return nil, err
	}

	var nonce [wire.NonceSize]byte
	if _, err := io.ReadFull(a.suite.Random(), nonce[:]); err != nil {
		return nil, err
	}

	partial := wire.ChallengeAuth{
		Header: wire.Header{
			SPDMVersion: a.ctx.Local.SPDMVersion,
			Param1:      a.servedSlot,
			Param2:      1 << a.servedSlot,
		},
		CertChainHash:          certHash,
		Nonce:                  nonce,
		MeasurementSummaryHash: make([]byte, a.ctx.Connection.NegotiatedMeasurementHashAlgo.Size()),
	}
	if err := a.ctx.Transcript.AppendPartial(transcript.MutC, partial.Encode()); err != nil {
		return nil, err
	}

	digest, err := a.ctx.Transcript.THForSigningAKMut(a.suite, a.ctx.Connection.NegotiatedBaseHashAlgo)
	if err != nil {
		return nil, err
	}
	sig, err := a.suite.AsymSign(a.ctx.Connection.NegotiatedReqBaseAsymAlgo, a.ctx.Local.SignerKeyID, digest)
	if err != nil {
		return nil, err
	}
	if err := a.ctx.Transcript.AppendFinal(transcript.MutC, sig); err != nil {
		return nil, err
	}

	partial.Signature = sig
	return partial.Encode(), nil
}
