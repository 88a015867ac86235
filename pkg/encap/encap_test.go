package encap

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/openspdm/spdm-go/pkg/wire"
)

func selfSignedChain(t *testing.T) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-requester"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return der, priv
}

// newTestContext builds an endpoint context whose connection already
// carries the negotiated algorithms the sub-dialogue reads, the way a
// completed NEGOTIATE_ALGORITHMS would have left it.
func newTestContext(local endpoint.Local) *endpoint.Context {
	ctx := endpoint.NewContext(endpoint.Config{Local: local})
	ctx.Connection.NegotiatedBaseHashAlgo = spdmcrypto.HashSHA256
	ctx.Connection.NegotiatedMeasurementHashAlgo = spdmcrypto.MeasurementHashSHA256
	ctx.Connection.NegotiatedBaseAsymAlgo = spdmcrypto.AsymECDSA_P256
	ctx.Connection.NegotiatedReqBaseAsymAlgo = spdmcrypto.AsymECDSA_P256
	return ctx
}

// runDialogue pumps nested requests from the driver through the answerer
// until the driver reports done, the way the envelope messages would
// carry them across the wire.
func runDialogue(t *testing.T, driver *Driver, answerer *Answerer) {
	t.Helper()
	for i := 0; i < 64; i++ {
		nested, done, err := driver.NextRequest()
		if err != nil {
			t.Fatalf("NextRequest: %v", err)
		}
		if done {
			return
		}
		rsp, err := answerer.Answer(nested)
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if err := driver.HandleResponse(rsp); err != nil {
			t.Fatalf("HandleResponse: %v", err)
		}
	}
	t.Fatalf("dialogue did not converge")
}

func TestDialogueWithChallenge(t *testing.T) {
	chain, priv := selfSignedChain(t)

	reqLocal := endpoint.Local{SPDMVersion: 0x11, SignerKeyID: "requester-key"}
	reqLocal.CertificateChains[0] = chain
	reqLocal.ProvisionedSlotMask = 1
	reqCtx := newTestContext(reqLocal)

	rspCtx := newTestContext(endpoint.Local{SPDMVersion: 0x11})

	// Both sides must agree on the A ledger the nested CHALLENGE_AUTH
	// signature folds in.
	negotiation := []byte("negotiation-messages")
	if err := reqCtx.Transcript.Append(transcript.A, negotiation); err != nil {
		t.Fatalf("Append(A): %v", err)
	}
	if err := rspCtx.Transcript.Append(transcript.A, negotiation); err != nil {
		t.Fatalf("Append(A): %v", err)
	}

	reqSuite := spdmcrypto.NewNative(nil)
	reqSuite.RegisterSigner("requester-key", priv)

	driver, err := NewDriver(rspCtx, spdmcrypto.NewNative(nil), true)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	answerer, err := NewAnswerer(reqCtx, reqSuite)
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}

	runDialogue(t, driver, answerer)

	if !driver.Done() {
		t.Fatalf("driver not done after dialogue")
	}
	if got := driver.CertChain(); string(got) != string(chain) {
		t.Fatalf("CertChain() reassembled %d bytes, want %d", len(got), len(chain))
	}
	if driver.MutCertHash() == nil {
		t.Fatalf("MutCertHash() is nil after dialogue")
	}
	if got := answerer.ServedChain(); string(got) != string(chain) {
		t.Fatalf("ServedChain() = %d bytes, want %d", len(got), len(chain))
	}
}

func TestDialogueWithoutChallenge(t *testing.T) {
	chain, _ := selfSignedChain(t)

	reqLocal := endpoint.Local{SPDMVersion: 0x11}
	reqLocal.CertificateChains[0] = chain
	reqLocal.ProvisionedSlotMask = 1
	reqCtx := newTestContext(reqLocal)
	rspCtx := newTestContext(endpoint.Local{SPDMVersion: 0x11})

	driver, err := NewDriver(rspCtx, spdmcrypto.NewNative(nil), false)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	answerer, err := NewAnswerer(reqCtx, spdmcrypto.NewNative(nil))
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}

	runDialogue(t, driver, answerer)

	if !driver.Done() {
		t.Fatalf("driver not done after dialogue")
	}
	// Without the nested CHALLENGE nothing lands in MutC.
	mutC, err := rspCtx.Transcript.Bytes(transcript.MutC)
	if err != nil {
		t.Fatalf("Bytes(MutC): %v", err)
	}
	if len(mutC) != 0 {
		t.Fatalf("MutC has %d bytes, want 0", len(mutC))
	}
}

func TestDriverRejectsTamperedChallengeAuth(t *testing.T) {
	chain, priv := selfSignedChain(t)

	reqLocal := endpoint.Local{SPDMVersion: 0x11, SignerKeyID: "requester-key"}
	reqLocal.CertificateChains[0] = chain
	reqLocal.ProvisionedSlotMask = 1
	reqCtx := newTestContext(reqLocal)
	rspCtx := newTestContext(endpoint.Local{SPDMVersion: 0x11})

	reqSuite := spdmcrypto.NewNative(nil)
	reqSuite.RegisterSigner("requester-key", priv)

	driver, err := NewDriver(rspCtx, spdmcrypto.NewNative(nil), true)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	answerer, err := NewAnswerer(reqCtx, reqSuite)
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}

	for {
		nested, done, err := driver.NextRequest()
		if err != nil {
			t.Fatalf("NextRequest: %v", err)
		}
		if done {
			t.Fatalf("dialogue finished without a challenge step")
		}
		rsp, err := answerer.Answer(nested)
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if wire.Code(rsp[1]) == wire.CodeChallengeAuth {
			// Flip one signature bit; the driver must reject it.
			rsp[len(rsp)-1] ^= 0x01
			err := driver.HandleResponse(rsp)
			if !errors.Is(err, ErrVerifyFailed) {
				t.Fatalf("HandleResponse(tampered) err = %v, want ErrVerifyFailed", err)
			}
			if spdmerr.KindOf(err) != spdmerr.SecurityViolation {
				t.Fatalf("KindOf(err) = %v, want SecurityViolation", spdmerr.KindOf(err))
			}
			return
		}
		if err := driver.HandleResponse(rsp); err != nil {
			t.Fatalf("HandleResponse: %v", err)
		}
	}
}

func TestAnswererRejectsUnknownNestedCode(t *testing.T) {
	reqCtx := newTestContext(endpoint.Local{SPDMVersion: 0x11})
	answerer, err := NewAnswerer(reqCtx, spdmcrypto.NewNative(nil))
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}

	nested := wire.GetVersion{Header: wire.Header{SPDMVersion: 0x11}}.Encode()
	if _, err := answerer.Answer(nested); !errors.Is(err, ErrUnexpectedMessage) {
		t.Fatalf("Answer(GET_VERSION) err = %v, want ErrUnexpectedMessage", err)
	}
}
