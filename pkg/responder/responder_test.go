package responder

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/requester"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/spdmerr"
	"github.com/openspdm/spdm-go/pkg/transport"
	"github.com/openspdm/spdm-go/pkg/wire"
)

// selfSignedChain builds a minimal self-signed ECDSA P-256 certificate DER
// chain usable as a responder's slot-0 certificate.
func selfSignedChain(t *testing.T) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-device"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return der, priv
}

func commonLocal(chain []byte) endpoint.Local {
	local := endpoint.Local{
		SPDMVersion:         0x11,
		CTExponent:          10,
		Capabilities:        uint32(wire.CapCertCap | wire.CapChalCap | wire.CapMeasCap | wire.CapKeyExCap | wire.CapPSKCap | wire.CapEncryptCap | wire.CapMacCap),
		MeasurementHashAlgo: spdmcrypto.MeasurementHashSHA256,
		BaseAsymAlgo:        spdmcrypto.AsymECDSA_P256,
		BaseHashAlgo:        spdmcrypto.HashSHA256,
		DHENamedGroup:       spdmcrypto.DHESecp256r1,
		AEADCipherSuite:     spdmcrypto.AEAD_AES_128_GCM,
		ReqBaseAsymAlgo:     spdmcrypto.AsymECDSA_P256,
		KeySchedule:         spdmcrypto.KeyScheduleSPDM,
	}
	local.CertificateChains[0] = chain
	local.ProvisionedSlotMask = 1
	local.SignerKeyID = "responder-key"
	return local
}

// wirePair connects a Requester and a Responder over an in-memory Pipe, the
// way cmd/spdm-demo would, and starts the responder serving in the
// background. The requester's crypto suite is returned so tests that need
// mutual authentication can register a requester-side signer on it.
func wirePair(t *testing.T, reqLocal, rspLocal endpoint.Local, cfg Config) (*requester.Requester, *Responder, *spdmcrypto.Native, func()) {
	t.Helper()
	pipeA, pipeB := transport.NewPipe()

	reqSuite := spdmcrypto.NewNative(nil)
	rspSuite := spdmcrypto.NewNative(nil)

	reqCtx := endpoint.NewContext(endpoint.Config{Local: reqLocal})
	rspCtx := endpoint.NewContext(endpoint.Config{Local: rspLocal})

	req := requester.New(reqCtx, reqSuite, transport.Endpoint{
		Send: pipeA.Send, Receive: pipeA.Receive,
		Encode: transport.PassthroughEncode, Decode: transport.PassthroughDecode,
	})
	rsp := New(rspCtx, rspSuite, transport.Endpoint{
		Send: pipeB.Send, Receive: pipeB.Receive,
		Encode: transport.PassthroughEncode, Decode: transport.PassthroughDecode,
	}, cfg)

	serveCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = rsp.Serve(serveCtx)
		close(done)
	}()

	cleanup := func() {
		cancel()
		_ = pipeA.Close()
		<-done
	}
	return req, rsp, reqSuite, cleanup
}

func negotiate(t *testing.T, req *requester.Requester) {
	t.Helper()
	ctx := context.Background()
	if _, err := req.GetVersion(ctx); err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if _, err := req.GetCapabilities(ctx); err != nil {
		t.Fatalf("GetCapabilities: %v", err)
	}
	if _, err := req.NegotiateAlgorithms(ctx); err != nil {
		t.Fatalf("NegotiateAlgorithms: %v", err)
	}
}

func TestResponderAuthenticationFlow(t *testing.T) {
	chain, priv := selfSignedChain(t)
	rspLocal := commonLocal(chain)
	rspLocal.SignerKeyID = "responder-key"
	reqLocal := commonLocal(nil)

	req, rsp, _, cleanup := wirePair(t, reqLocal, rspLocal, Config{})
	defer cleanup()
	rsp.suite.(*spdmcrypto.Native).RegisterSigner("responder-key", priv)

	negotiate(t, req)

	ctx := context.Background()
	if _, err := req.GetDigests(ctx); err != nil {
		t.Fatalf("GetDigests: %v", err)
	}
	gotChain, err := req.GetCertificate(ctx, 0)
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if !bytes.Equal(gotChain, chain) {
		t.Fatalf("GetCertificate() returned a different chain than provisioned")
	}

	if _, err := req.Challenge(ctx, 0, wire.MeasurementSummaryNone); err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if got := rsp.Context().Connection.UsedLocalCertSlot; got != 0 {
		t.Fatalf("UsedLocalCertSlot = %d, want 0", got)
	}
	if got := rsp.Context().State(); got != endpoint.StateAuthenticated {
		t.Fatalf("responder State() = %v, want StateAuthenticated", got)
	}
}

func TestResponderGetMeasurementsOutOfOrder(t *testing.T) {
	chain, _ := selfSignedChain(t)
	rspLocal := commonLocal(chain)
	reqLocal := commonLocal(nil)

	req, _, _, cleanup := wirePair(t, reqLocal, rspLocal, Config{
		Measurements: func(uint8) ([]wire.MeasurementBlock, error) {
			return []wire.MeasurementBlock{{Index: 1, MeasurementSpec: 1, MeasurementHash: bytes.Repeat([]byte{0xAA}, 32)}}, nil
		},
	})
	defer cleanup()

	negotiate(t, req)

	// GET_MEASUREMENTS before CHALLENGE must be rejected: the responder
	// answers with an ERROR rather than a MEASUREMENTS response.
	if _, err := req.GetMeasurements(context.Background(), 0xFF, false); err == nil {
		t.Fatalf("GetMeasurements() before Challenge unexpectedly succeeded")
	}
}

func TestResponderKeyExchangeSessionAndAppData(t *testing.T) {
	chain, priv := selfSignedChain(t)
	rspLocal := commonLocal(chain)
	reqLocal := commonLocal(nil)

	req, rsp, _, cleanup := wirePair(t, reqLocal, rspLocal, Config{
		AppHandler: func(_ uint32, payload []byte) ([]byte, error) {
			return append([]byte("echo:"), payload...), nil
		},
	})
	defer cleanup()
	rsp.suite.(*spdmcrypto.Native).RegisterSigner("responder-key", priv)

	negotiate(t, req)
	ctx := context.Background()
	if _, err := req.GetDigests(ctx); err != nil {
		t.Fatalf("GetDigests: %v", err)
	}
	if _, err := req.GetCertificate(ctx, 0); err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if _, err := req.Challenge(ctx, 0, wire.MeasurementSummaryNone); err != nil {
		t.Fatalf("Challenge: %v", err)
	}

	sessionID, err := req.StartSession(ctx, 0, wire.MeasurementSummaryNone)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	reply, err := req.SendReceiveData(ctx, sessionID, []byte("hello"))
	if err != nil {
		t.Fatalf("SendReceiveData: %v", err)
	}
	if string(reply) != "echo:hello" {
		t.Fatalf("SendReceiveData() = %q, want %q", reply, "echo:hello")
	}

	if err := req.EndSession(ctx, sessionID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if rsp.Context().Sessions.Lookup(sessionID) != nil {
		t.Fatalf("session %x still registered after EndSession", sessionID)
	}
}

func TestResponderPSKSession(t *testing.T) {
	rspLocal := commonLocal(nil)
	reqLocal := commonLocal(nil)
	pskHint := []byte("device-psk-hint")
	pskValue := bytes.Repeat([]byte{0x5A}, 32)
	reqLocal.PSKHint = pskHint

	req, rsp, _, cleanup := wirePair(t, reqLocal, rspLocal, Config{
		PSKLookup: func(hint []byte) ([]byte, error) {
			if !bytes.Equal(hint, pskHint) {
				return nil, ErrNoPSK
			}
			return pskValue, nil
		},
		AppHandler: func(_ uint32, payload []byte) ([]byte, error) { return payload, nil },
	})
	defer cleanup()

	negotiate(t, req)
	ctx := context.Background()

	sessionID, err := req.StartSessionPSK(ctx, pskValue, wire.MeasurementSummaryNone)
	if err != nil {
		t.Fatalf("StartSessionPSK: %v", err)
	}
	if rsp.Context().Sessions.Lookup(sessionID) == nil {
		t.Fatalf("responder has no session registered for %x", sessionID)
	}

	reply, err := req.SendReceiveData(ctx, sessionID, []byte("ping"))
	if err != nil {
		t.Fatalf("SendReceiveData: %v", err)
	}
	if string(reply) != "ping" {
		t.Fatalf("SendReceiveData() = %q, want %q", reply, "ping")
	}

	if err := req.EndSession(ctx, sessionID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
}

func TestResponderKeyUpdate(t *testing.T) {
	rspLocal := commonLocal(nil)
	reqLocal := commonLocal(nil)
	pskValue := bytes.Repeat([]byte{0x11}, 32)

	req, rsp, _, cleanup := wirePair(t, reqLocal, rspLocal, Config{
		PSKLookup: func([]byte) ([]byte, error) { return pskValue, nil },
	})
	defer cleanup()

	negotiate(t, req)
	ctx := context.Background()
	sessionID, err := req.StartSessionPSK(ctx, pskValue, wire.MeasurementSummaryNone)
	if err != nil {
		t.Fatalf("StartSessionPSK: %v", err)
	}

	update := wire.KeyUpdate{
		Header:    wire.Header{SPDMVersion: rspLocal.SPDMVersion},
		Operation: wire.KeyUpdateOperationUpdateKey,
		Token:     7,
	}
	rspBytes, err := rsp.ProcessRequest(sessionID, false, false, update.Encode())
	if err != nil {
		t.Fatalf("ProcessRequest(KEY_UPDATE): %v", err)
	}
	ack, err := wire.DecodeKeyUpdateAck(rspBytes)
	if err != nil {
		t.Fatalf("DecodeKeyUpdateAck: %v", err)
	}
	if ack.Token != 7 || ack.Operation != wire.KeyUpdateOperationUpdateKey {
		t.Fatalf("KeyUpdateAck = %+v, want token 7 operation UpdateKey", ack)
	}
}

func TestErrorCodeForMapping(t *testing.T) {
	if got := errorCodeFor(spdmerr.DeviceError.Wrap(ErrOutOfOrder)); got != wire.ErrorUnexpectedRequest {
		t.Fatalf("errorCodeFor(ErrOutOfOrder) = %v, want ErrorUnexpectedRequest", got)
	}
}

// mutAuthLocal extends commonLocal with the mutual-auth capability flags
// both sides need before a responder may demand requester authentication.
func mutAuthLocal(chain []byte) endpoint.Local {
	local := commonLocal(chain)
	local.Capabilities |= uint32(wire.CapMutAuthCap | wire.CapEncapCap)
	return local
}

func TestResponderBasicMutualAuthChallenge(t *testing.T) {
	rspChain, rspPriv := selfSignedChain(t)
	reqChain, reqPriv := selfSignedChain(t)

	rspLocal := mutAuthLocal(rspChain)
	rspLocal.BasicMutAuthRequested = true
	reqLocal := mutAuthLocal(reqChain)
	reqLocal.SignerKeyID = "requester-key"

	req, rsp, reqSuite, cleanup := wirePair(t, reqLocal, rspLocal, Config{})
	defer cleanup()
	rsp.suite.(*spdmcrypto.Native).RegisterSigner("responder-key", rspPriv)
	reqSuite.RegisterSigner("requester-key", reqPriv)

	negotiate(t, req)
	ctx := context.Background()
	if _, err := req.GetDigests(ctx); err != nil {
		t.Fatalf("GetDigests: %v", err)
	}
	if _, err := req.GetCertificate(ctx, 0); err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if _, err := req.Challenge(ctx, 0, wire.MeasurementSummaryNone); err != nil {
		t.Fatalf("Challenge with mutual auth: %v", err)
	}

	if rsp.encap == nil || !rsp.encap.Done() {
		t.Fatalf("responder's encapsulated dialogue did not complete")
	}
	if !bytes.Equal(rsp.encap.CertChain(), reqChain) {
		t.Fatalf("responder reassembled a different requester chain")
	}
}

func TestChallengeMutAuthWithoutCapability(t *testing.T) {
	rspChain, rspPriv := selfSignedChain(t)
	reqChain, reqPriv := selfSignedChain(t)

	rspLocal := mutAuthLocal(rspChain)
	rspLocal.BasicMutAuthRequested = true
	reqLocal := mutAuthLocal(reqChain)
	reqLocal.SignerKeyID = "requester-key"

	req, rsp, reqSuite, cleanup := wirePair(t, reqLocal, rspLocal, Config{})
	defer cleanup()
	rsp.suite.(*spdmcrypto.Native).RegisterSigner("responder-key", rspPriv)
	reqSuite.RegisterSigner("requester-key", reqPriv)

	negotiate(t, req)
	ctx := context.Background()
	if _, err := req.GetDigests(ctx); err != nil {
		t.Fatalf("GetDigests: %v", err)
	}
	if _, err := req.GetCertificate(ctx, 0); err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}

	// Simulate a non-conformant responder demanding mutual auth from a
	// requester without MUT_AUTH_CAP: the capability was advertised during
	// negotiation (so the responder sets BasicMutAuthReq) but is gone by
	// the time CHALLENGE_AUTH arrives.
	req.Context().Local.Capabilities &^= uint32(wire.CapMutAuthCap)

	_, err := req.Challenge(ctx, 0, wire.MeasurementSummaryNone)
	if !errors.Is(err, requester.ErrMutualAuthNotSupported) {
		t.Fatalf("Challenge() err = %v, want ErrMutualAuthNotSupported", err)
	}
	if spdmerr.KindOf(err) != spdmerr.DeviceError {
		t.Fatalf("KindOf(err) = %v, want DeviceError", spdmerr.KindOf(err))
	}
}

func TestResponderSessionMutualAuth(t *testing.T) {
	rspChain, rspPriv := selfSignedChain(t)
	reqChain, reqPriv := selfSignedChain(t)

	rspLocal := mutAuthLocal(rspChain)
	rspLocal.MutAuthRequested = 1
	reqLocal := mutAuthLocal(reqChain)
	reqLocal.SignerKeyID = "requester-key"

	req, rsp, reqSuite, cleanup := wirePair(t, reqLocal, rspLocal, Config{
		AppHandler: func(_ uint32, payload []byte) ([]byte, error) { return payload, nil },
	})
	defer cleanup()
	rsp.suite.(*spdmcrypto.Native).RegisterSigner("responder-key", rspPriv)
	reqSuite.RegisterSigner("requester-key", reqPriv)

	negotiate(t, req)
	ctx := context.Background()
	if _, err := req.GetDigests(ctx); err != nil {
		t.Fatalf("GetDigests: %v", err)
	}
	if _, err := req.GetCertificate(ctx, 0); err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if _, err := req.Challenge(ctx, 0, wire.MeasurementSummaryNone); err != nil {
		t.Fatalf("Challenge: %v", err)
	}

	sessionID, err := req.StartSession(ctx, 0, wire.MeasurementSummaryNone)
	if err != nil {
		t.Fatalf("StartSession with mutual auth: %v", err)
	}
	if rsp.Context().Sessions.Lookup(sessionID) == nil {
		t.Fatalf("responder has no session registered for %x", sessionID)
	}

	reply, err := req.SendReceiveData(ctx, sessionID, []byte("mutual"))
	if err != nil {
		t.Fatalf("SendReceiveData: %v", err)
	}
	if string(reply) != "mutual" {
		t.Fatalf("SendReceiveData() = %q, want %q", reply, "mutual")
	}
}

func TestCertChainRootHashProvision(t *testing.T) {
	chain, priv := selfSignedChain(t)
	rspLocal := commonLocal(chain)
	reqLocal := commonLocal(nil)
	rootHash := sha256.Sum256(chain)
	reqLocal.PeerRootCertHashProvision = rootHash[:]

	req, rsp, _, cleanup := wirePair(t, reqLocal, rspLocal, Config{})
	defer cleanup()
	rsp.suite.(*spdmcrypto.Native).RegisterSigner("responder-key", priv)

	negotiate(t, req)
	ctx := context.Background()
	if _, err := req.GetDigests(ctx); err != nil {
		t.Fatalf("GetDigests: %v", err)
	}
	if _, err := req.GetCertificate(ctx, 0); err != nil {
		t.Fatalf("GetCertificate with matching root hash: %v", err)
	}
	if _, err := req.Challenge(ctx, 0, wire.MeasurementSummaryNone); err != nil {
		t.Fatalf("Challenge: %v", err)
	}
}

func TestCertChainProvisionMismatch(t *testing.T) {
	chain, priv := selfSignedChain(t)
	rspLocal := commonLocal(chain)
	reqLocal := commonLocal(nil)
	reqLocal.PeerCertChainProvision = []byte{0xDE, 0xAD, 0xBE, 0xEF}

	req, rsp, _, cleanup := wirePair(t, reqLocal, rspLocal, Config{})
	defer cleanup()
	rsp.suite.(*spdmcrypto.Native).RegisterSigner("responder-key", priv)

	negotiate(t, req)
	ctx := context.Background()
	if _, err := req.GetDigests(ctx); err != nil {
		t.Fatalf("GetDigests: %v", err)
	}

	_, err := req.GetCertificate(ctx, 0)
	if !errors.Is(err, requester.ErrVerifyFailed) {
		t.Fatalf("GetCertificate() err = %v, want ErrVerifyFailed", err)
	}
	if spdmerr.KindOf(err) != spdmerr.SecurityViolation {
		t.Fatalf("KindOf(err) = %v, want SecurityViolation", spdmerr.KindOf(err))
	}
}
