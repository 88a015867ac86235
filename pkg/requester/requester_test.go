package requester

import (
	"context"
	"io"
	"testing"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transport"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// countingSuite wraps a Suite and counts the verification-side operations
// a malformed response must never reach.
type countingSuite struct {
	spdmcrypto.Suite
	asymVerifies int
	aeadOpens    int
}

func (c *countingSuite) AsymVerify(algo spdmcrypto.BaseAsymAlgo, pub []byte, digest, sig []byte) error {
	c.asymVerifies++
	return c.Suite.AsymVerify(algo, pub, digest, sig)
}

func (c *countingSuite) AEADOpen(suite spdmcrypto.AEADCipherSuite, key, nonce, aad, ciphertext []byte) ([]byte, error) {
	c.aeadOpens++
	return c.Suite.AEADOpen(suite, key, nonce, aad, ciphertext)
}

// scriptedEndpoint answers each request with the next canned SPDM
// response, wrapped in the passthrough transport framing.
func scriptedEndpoint(responses ...[]byte) transport.Endpoint {
	i := 0
	return transport.Endpoint{
		Send: func(context.Context, []byte) error { return nil },
		Receive: func(context.Context) ([]byte, error) {
			if i >= len(responses) {
				return nil, io.EOF
			}
			rsp := responses[i]
			i++
			return transport.PassthroughEncode(0, false, false, false, rsp)
		},
		Encode: transport.PassthroughEncode,
		Decode: transport.PassthroughDecode,
	}
}

func newNegotiatedContext() *endpoint.Context {
	ctx := endpoint.NewContext(endpoint.Config{Local: endpoint.Local{SPDMVersion: 0x11}})
	ctx.Connection.NegotiatedBaseHashAlgo = spdmcrypto.HashSHA256
	ctx.Connection.NegotiatedMeasurementHashAlgo = spdmcrypto.MeasurementHashSHA256
	ctx.Connection.NegotiatedBaseAsymAlgo = spdmcrypto.AsymECDSA_P256
	return ctx
}

// A CHALLENGE_AUTH cut off right after the cert-chain hash must surface
// as a device error before any signature or AEAD check runs.
func TestChallengeTruncatedResponse(t *testing.T) {
	suite := &countingSuite{Suite: spdmcrypto.NewNative(nil)}

	truncated := make([]byte, wire.HeaderSize+spdmcrypto.HashSHA256.Size())
	truncated[0] = 0x11
	truncated[1] = byte(wire.CodeChallengeAuth)

	r := New(newNegotiatedContext(), suite, scriptedEndpoint(truncated))
	_, err := r.Challenge(context.Background(), 0, wire.MeasurementSummaryNone)
	if err == nil {
		t.Fatalf("Challenge() with truncated CHALLENGE_AUTH unexpectedly succeeded")
	}
	if got := spdmerr.KindOf(err); got != spdmerr.DeviceError {
		t.Fatalf("KindOf(err) = %v, want DeviceError", got)
	}
	if suite.asymVerifies != 0 || suite.aeadOpens != 0 {
		t.Fatalf("crypto reached on truncated response: %d verifies, %d opens", suite.asymVerifies, suite.aeadOpens)
	}
}
