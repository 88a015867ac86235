package encap

import (
	"bytes"
	"io"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// CertificateChunkSize is the largest fragment requested per nested
// GET_CERTIFICATE round trip.
const CertificateChunkSize = 1024

// Driver runs the responder's half of the encapsulated sub-dialogue. It
// owns no transport: the responder's GET_ENCAPSULATED_REQUEST and
// DELIVER_ENCAPSULATED_RESPONSE handlers call NextRequest/HandleResponse
// and carry the nested bytes inside the envelope messages themselves. The
// dialogue's step, request id, and certificate-chain reassembly buffer
// live in the endpoint's EncapContext so the connection state and the
// dialogue state stay in one place.
type Driver struct {
	ctx   *endpoint.Context
	suite spdmcrypto.Suite

	// includeChallenge selects the basic mutual-auth shape (nested
	// CHALLENGE after the certificate is retrieved). Session mutual auth
	// stops after GET_CERTIFICATE: the FINISH signature authenticates.
	includeChallenge bool

	targetSlot  uint8
	mutCertHash []byte
}

// NewDriver starts a fresh sub-dialogue, resetting the endpoint's encap
// bookkeeping and the MutB/MutC ledgers a previous round may have filled.
func NewDriver(ctx *endpoint.Context, suite spdmcrypto.Suite, includeChallenge bool) (*Driver, error) {
	ctx.Encap.Reset()
	ctx.Encap.State = endpoint.EncapNeedDigests
	if err := ctx.Transcript.Reset(transcript.MutB); err != nil {
		return nil, err
	}
	if err := ctx.Transcript.Reset(transcript.MutC); err != nil {
		return nil, err
	}
	return &Driver{ctx: ctx, suite: suite, includeChallenge: includeChallenge}, nil
}

// Done reports whether the sub-dialogue has completed successfully.
func (d *Driver) Done() bool { return d.ctx.Encap.State == endpoint.EncapDone }

// CertChain returns the requester's reassembled certificate chain,
// available once the dialogue reaches EncapDone.
func (d *Driver) CertChain() []byte { return d.ctx.Encap.CertChainBuffer }

// MutCertHash returns the hash of the reassembled chain, the value a
// mutual-auth FINISH folds into its transcript hashes.
func (d *Driver) MutCertHash() []byte { return d.mutCertHash }

// NextRequest builds the nested request for the current dialogue step and
// appends it to the matching transcript ledger. done is true once the
// dialogue has nothing further to ask.
func (d *Driver) NextRequest() (payload []byte, done bool, err error) {
	switch d.ctx.Encap.State {
	case endpoint.EncapNeedDigests:
		req := wire.GetDigests{Header: wire.Header{SPDMVersion: d.ctx.Local.SPDMVersion}}
		payload = req.Encode()
		if err := d.ctx.Transcript.Append(transcript.MutB, payload); err != nil {
			return nil, false, err
		}
		return payload, false, nil

	case endpoint.EncapNeedCertificate:
		req := wire.GetCertificate{
			Header: wire.Header{SPDMVersion: d.ctx.Local.SPDMVersion, Param1: d.targetSlot},
			Offset: uint16(len(d.ctx.Encap.CertChainBuffer)),
			Length: CertificateChunkSize,
		}
		payload = req.Encode()
		if err := d.ctx.Transcript.Append(transcript.MutB, payload); err != nil {
			return nil, false, err
		}
		return payload, false, nil

	case endpoint.EncapNeedChallenge:
		var nonce [wire.NonceSize]byte
		if _, err := io.ReadFull(d.suite.Random(), nonce[:]); err != nil {
			return nil, false, err
		}
		req := wire.Challenge{
			Header: wire.Header{
				SPDMVersion: d.ctx.Local.SPDMVersion,
				Param1:      d.targetSlot,
				Param2:      uint8(wire.MeasurementSummaryNone),
			},
			Nonce: nonce,
		}
		payload = req.Encode()
		if err := d.ctx.Transcript.Append(transcript.MutC, payload); err != nil {
			return nil, false, err
		}
		return payload, false, nil

	case endpoint.EncapDone:
		return nil, true, nil

	default:
		return nil, false, ErrWrongState
	}
}

// HandleResponse consumes the nested response delivered for the current
// step, appends it to the matching ledger, and advances the dialogue.
func (d *Driver) HandleResponse(nested []byte) error {
	if len(nested) < wire.HeaderSize {
		return wire.ErrTruncated
	}

	switch d.ctx.Encap.State {
	case endpoint.EncapNeedDigests:
		return d.handleDigests(nested)
	case endpoint.EncapNeedCertificate:
		return d.handleCertificate(nested)
	case endpoint.EncapNeedChallenge:
		return d.handleChallengeAuth(nested)
	default:
		return ErrWrongState
	}
}

func (d *Driver) handleDigests(nested []byte) error {
	if wire.Code(nested[1]) != wire.CodeDigests {
		return spdmerr.DeviceError.Wrap(ErrUnexpectedMessage)
	}
	hashSize := d.ctx.Connection.NegotiatedBaseHashAlgo.Size()
	rsp, err := wire.DecodeDigests(nested, hashSize)
	if err != nil {
		return err
	}
	if err := d.ctx.Transcript.Append(transcript.MutB, nested); err != nil {
		return err
	}

	mask := rsp.Header.Param2
	if mask == 0 {
		return spdmerr.SecurityViolation.Wrap(ErrNoCertificate)
	}
	for slot := uint8(0); slot < 8; slot++ {
		if mask&(1<<slot) != 0 {
			d.targetSlot = slot
			break
		}
	}
	d.ctx.Encap.State = endpoint.EncapNeedCertificate
	return nil
}

func (d *Driver) handleCertificate(nested []byte) error {
	if wire.Code(nested[1]) != wire.CodeCertificate {
		return spdmerr.DeviceError.Wrap(ErrUnexpectedMessage)
	}
	rsp, err := wire.DecodeCertificate(nested)
	if err != nil {
		return err
	}
	if err := d.ctx.Transcript.Append(transcript.MutB, nested); err != nil {
		return err
	}

	if len(d.ctx.Encap.CertChainBuffer)+len(rsp.CertChain) > endpoint.MaxCertChainSize {
		return spdmerr.BufferOverflow.Wrap(ErrVerifyFailed)
	}
	d.ctx.Encap.CertChainBuffer = append(d.ctx.Encap.CertChainBuffer, rsp.CertChain...)
	d.ctx.Encap.CertFragmentIdx++

	if rsp.RemainderLength > 0 {
		return nil // stay in EncapNeedCertificate; NextRequest asks for the next fragment
	}

	hash, err := d.suite.HashAll(d.ctx.Connection.NegotiatedBaseHashAlgo, d.ctx.Encap.CertChainBuffer)
	if err != nil {
		return err
	}
	d.mutCertHash = hash

	if d.includeChallenge {
		d.ctx.Encap.State = endpoint.EncapNeedChallenge
	} else {
		d.ctx.Encap.State = endpoint.EncapDone
	}
	return nil
}

func (d *Driver) handleChallengeAuth(nested []byte) error {
	if wire.Code(nested[1]) != wire.CodeChallengeAuth {
		return spdmerr.DeviceError.Wrap(ErrUnexpectedMessage)
	}
	hashSize := d.ctx.Connection.NegotiatedBaseHashAlgo.Size()
	summarySize := d.ctx.Connection.NegotiatedMeasurementHashAlgo.Size()
	sigSize := d.ctx.Connection.NegotiatedReqBaseAsymAlgo.SignatureSize()

	rsp, err := wire.DecodeChallengeAuth(nested, hashSize, summarySize, sigSize)
	if err != nil {
		return err
	}
	if !bytes.Equal(rsp.CertChainHash, d.mutCertHash) {
		return spdmerr.SecurityViolation.Wrap(ErrVerifyFailed)
	}

	signedPortion := nested[:len(nested)-sigSize]
	if err := d.ctx.Transcript.AppendPartial(transcript.MutC, signedPortion); err != nil {
		return err
	}
	digest, err := d.ctx.Transcript.THForSigningAKMut(d.suite, d.ctx.Connection.NegotiatedBaseHashAlgo)
	if err != nil {
		return err
	}

	leaf, err := d.suite.X509Leaf(d.ctx.Encap.CertChainBuffer)
	if err != nil {
		return spdmerr.SecurityViolation.Wrap(err)
	}
	pub, err := spdmcrypto.PublicKeyBytes(d.ctx.Connection.NegotiatedReqBaseAsymAlgo, leaf)
	if err != nil {
		return spdmerr.SecurityViolation.Wrap(err)
	}
	if err := d.suite.AsymVerify(d.ctx.Connection.NegotiatedReqBaseAsymAlgo, pub, digest, rsp.Signature); err != nil {
		return spdmerr.SecurityViolation.Wrap(ErrVerifyFailed)
	}
	if err := d.ctx.Transcript.AppendFinal(transcript.MutC, rsp.Signature); err != nil {
		return err
	}

	d.ctx.Encap.State = endpoint.EncapDone
	return nil
}
