package spdmcrypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// PublicKeyBytes extracts cert's public key in the raw encoding
// AsymVerify expects for algo: an uncompressed elliptic-curve point for
// ECDSA, a PKCS#1 public key for RSASSA, or the raw 32-byte key for
// EdDSA. It is the counterpart callers use to turn the certificate
// X509Leaf returns into something AsymVerify can consume.
func PublicKeyBytes(algo BaseAsymAlgo, cert *x509.Certificate) ([]byte, error) {
	switch algo {
	case AsymECDSA_P256, AsymECDSA_P384:
		pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("spdmcrypto: certificate key is not ECDSA")
		}
		return elliptic.Marshal(pub.Curve, pub.X, pub.Y), nil
	case AsymRSASSA_2048, AsymRSASSA_3072:
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("spdmcrypto: certificate key is not RSA")
		}
		return x509.MarshalPKCS1PublicKey(pub), nil
	case AsymEdDSA_Ed25519:
		pub, ok := cert.PublicKey.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("spdmcrypto: certificate key is not Ed25519")
		}
		return []byte(pub), nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}
