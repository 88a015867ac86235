// spdm-demo runs an SPDM requester and responder against each other over
// an in-memory pipe transport: version/capability/algorithm negotiation,
// certificate retrieval, challenge-response authentication, DHE session
// establishment, one secured application round trip, and session
// teardown. It exists to show how the library's pieces wire together; no
// real device or bus is involved.
//
// Usage:
//
//	spdm-demo [-psk] [-v]
//
// Options:
//
//	-psk  establish the session with PSK_EXCHANGE instead of KEY_EXCHANGE
//	-v    verbose (trace-level) logging
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"flag"
	"log"
	"math/big"
	"time"

	"github.com/pion/logging"

	"github.com/openspdm/spdm-go/pkg/endpoint"
	"github.com/openspdm/spdm-go/pkg/requester"
	"github.com/openspdm/spdm-go/pkg/responder"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/transport"
	"github.com/openspdm/spdm-go/pkg/wire"
)

const signerKeyID = "demo-device-key"

func main() {
	usePSK := flag.Bool("psk", false, "establish the session with PSK_EXCHANGE")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	loggerFactory := logging.NewDefaultLoggerFactory()
	if *verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelTrace
	} else {
		loggerFactory.DefaultLogLevel = logging.LogLevelInfo
	}
	logger := loggerFactory.NewLogger("spdm-demo")

	chain, priv, err := selfSignedChain()
	if err != nil {
		log.Fatalf("generate device certificate: %v", err)
	}

	pskHint := []byte("spdm-demo-psk")
	pskValue := make([]byte, 32)
	if _, err := rand.Read(pskValue); err != nil {
		log.Fatalf("generate psk: %v", err)
	}

	reqLocal := demoLocal(nil)
	reqLocal.PSKHint = pskHint
	rspLocal := demoLocal(chain)
	rspLocal.SignerKeyID = signerKeyID

	pipeA, pipeB := transport.NewPipe()
	defer pipeA.Close()

	rspSuite := spdmcrypto.NewNative(nil)
	rspSuite.RegisterSigner(signerKeyID, priv)

	req := requester.New(
		endpoint.NewContext(endpoint.Config{Local: reqLocal, LoggerFactory: loggerFactory}),
		spdmcrypto.NewNative(nil),
		transport.Endpoint{
			Send: pipeA.Send, Receive: pipeA.Receive,
			Encode: transport.PassthroughEncode, Decode: transport.PassthroughDecode,
		},
	)
	rsp := responder.New(
		endpoint.NewContext(endpoint.Config{Local: rspLocal, LoggerFactory: loggerFactory}),
		rspSuite,
		transport.Endpoint{
			Send: pipeB.Send, Receive: pipeB.Receive,
			Encode: transport.PassthroughEncode, Decode: transport.PassthroughDecode,
		},
		responder.Config{
			PSKLookup: func(hint []byte) ([]byte, error) { return pskValue, nil },
			AppHandler: func(_ uint32, payload []byte) ([]byte, error) {
				return append([]byte("pong:"), payload...), nil
			},
		},
	)

	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()
	go func() {
		if err := rsp.Serve(serveCtx); err != nil && serveCtx.Err() == nil {
			logger.Errorf("responder: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	version, err := req.GetVersion(ctx)
	if err != nil {
		log.Fatalf("GET_VERSION: %v", err)
	}
	logger.Infof("negotiated version entries: %d", len(version.Versions))

	if _, err := req.GetCapabilities(ctx); err != nil {
		log.Fatalf("GET_CAPABILITIES: %v", err)
	}
	if _, err := req.NegotiateAlgorithms(ctx); err != nil {
		log.Fatalf("NEGOTIATE_ALGORITHMS: %v", err)
	}
	logger.Infof("connection state: %v", req.Context().State())

	if _, err := req.GetDigests(ctx); err != nil {
		log.Fatalf("GET_DIGESTS: %v", err)
	}
	if _, err := req.GetCertificate(ctx, 0); err != nil {
		log.Fatalf("GET_CERTIFICATE: %v", err)
	}
	if _, err := req.Challenge(ctx, 0, wire.MeasurementSummaryNone); err != nil {
		log.Fatalf("CHALLENGE: %v", err)
	}
	logger.Infof("device authenticated, connection state: %v", req.Context().State())

	var sessionID uint32
	if *usePSK {
		sessionID, err = req.StartSessionPSK(ctx, pskValue, wire.MeasurementSummaryNone)
	} else {
		sessionID, err = req.StartSession(ctx, 0, wire.MeasurementSummaryNone)
	}
	if err != nil {
		log.Fatalf("session establishment: %v", err)
	}
	logger.Infof("session %#08x established (psk=%v)", sessionID, *usePSK)

	reply, err := req.SendReceiveData(ctx, sessionID, []byte("ping"))
	if err != nil {
		log.Fatalf("secured message: %v", err)
	}
	logger.Infof("secured round trip: %q", reply)

	if err := req.EndSession(ctx, sessionID); err != nil {
		log.Fatalf("END_SESSION: %v", err)
	}
	logger.Infof("session %#08x closed", sessionID)
}

func demoLocal(chain []byte) endpoint.Local {
	local := endpoint.Local{
		SPDMVersion: 0x11,
		CTExponent:  10,
		Capabilities: uint32(wire.CapCertCap | wire.CapChalCap | wire.CapMeasCap |
			wire.CapKeyExCap | wire.CapPSKCap | wire.CapEncryptCap | wire.CapMacCap),
		MeasurementHashAlgo: spdmcrypto.MeasurementHashSHA256,
		BaseAsymAlgo:        spdmcrypto.AsymECDSA_P256,
		BaseHashAlgo:        spdmcrypto.HashSHA256,
		DHENamedGroup:       spdmcrypto.DHESecp256r1,
		AEADCipherSuite:     spdmcrypto.AEAD_AES_128_GCM,
		ReqBaseAsymAlgo:     spdmcrypto.AsymECDSA_P256,
		KeySchedule:         spdmcrypto.KeyScheduleSPDM,
	}
	if chain != nil {
		local.CertificateChains[0] = chain
		local.ProvisionedSlotMask = 1
	}
	return local
}

func selfSignedChain() ([]byte, *ecdsa.PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "spdm-demo-device"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, err
	}
	return der, priv, nil
}
