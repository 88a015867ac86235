package requester

import (
	"bytes"
	"context"
	"crypto/x509"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// CertificateChunkSize is the largest fragment requested per
// GET_CERTIFICATE round trip.
const CertificateChunkSize = 1024

// GetCertificate retrieves slot's full DER certificate chain, issuing as
// many GET_CERTIFICATE/CERTIFICATE round trips as the chain's size
// requires.
func (r *Requester) GetCertificate(ctx context.Context, slot uint8) ([]byte, error) {
	var chain []byte
	offset := uint16(0)

	for {
		req := wire.GetCertificate{
			Header: wire.Header{SPDMVersion: r.ctx.Local.SPDMVersion, Param1: slot},
			Offset: offset,
			Length: CertificateChunkSize,
		}
		reqBytes := req.Encode()
		if err := r.ctx.Transcript.Append(transcript.B, reqBytes); err != nil {
			return nil, err
		}

		rspBytes, err := r.sendRecv(ctx, reqBytes)
		if err != nil {
			return nil, err
		}
		if wire.Code(rspBytes[1]) != wire.CodeCertificate {
			return nil, ErrUnexpectedResponse
		}
		rsp, err := wire.DecodeCertificate(rspBytes)
		if err != nil {
			return nil, err
		}
		if err := r.ctx.Transcript.Append(transcript.B, rspBytes); err != nil {
			return nil, err
		}

		chain = append(chain, rsp.CertChain...)
		offset += rsp.PortionLength
		if rsp.RemainderLength == 0 {
			break
		}
	}

	if err := r.verifyPeerCertChain(chain); err != nil {
		return nil, err
	}

	r.ctx.Connection.PeerCertChain = chain
	if err := r.ctx.AdvanceState(endpoint.StateAfterCertificate); err != nil {
		return nil, err
	}
	return chain, nil
}

// verifyPeerCertChain checks a freshly retrieved chain against whatever
// the host provisioned ahead of time: a pinned root-certificate hash, a
// pinned full chain, or nothing (in which case CHALLENGE's signature
// check is the sole authentication and the chain is accepted as
// presented). A root-hash provision additionally path-validates the
// chain against that root.
func (r *Requester) verifyPeerCertChain(chain []byte) error {
	if provisioned := r.ctx.Local.PeerCertChainProvision; provisioned != nil {
		if !bytes.Equal(chain, provisioned) {
			return spdmerr.SecurityViolation.Wrap(ErrVerifyFailed)
		}
		return nil
	}

	rootHash := r.ctx.Local.PeerRootCertHashProvision
	if rootHash == nil {
		return nil
	}

	root, err := r.suite.X509Root(chain)
	if err != nil {
		return spdmerr.SecurityViolation.Wrap(err)
	}
	gotHash, err := r.suite.HashAll(r.ctx.Connection.NegotiatedBaseHashAlgo, root.Raw)
	if err != nil {
		return err
	}
	if !bytes.Equal(gotHash, rootHash) {
		return spdmerr.SecurityViolation.Wrap(ErrVerifyFailed)
	}

	roots := x509.NewCertPool()
	roots.AddCert(root)
	if err := r.suite.X509VerifyChain(chain, roots); err != nil {
		return spdmerr.SecurityViolation.Wrap(err)
	}
	return nil
}
