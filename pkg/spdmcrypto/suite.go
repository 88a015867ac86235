// Package spdmcrypto defines the cryptographic capability surface an SPDM
// endpoint requires from its host, and a Native implementation backed by
// the standard library and golang.org/x/crypto.
//
// An endpoint never calls crypto/* or golang.org/x/crypto directly: every
// cryptographic operation in this module goes through a Suite, so a host
// that needs a hardware root of trust or FIPS-validated module can supply
// its own implementation without touching the protocol logic.
package spdmcrypto

import (
	"crypto/x509"
	"io"
)

// Suite is the cryptographic capability interface injected into an
// endpoint. Every method is keyed by the algorithm identifier negotiated
// for the connection, so a single Suite can serve a connection that
// renegotiates algorithms.
type Suite interface {
	// HashAll computes the full digest of data under algo.
	HashAll(algo BaseHashAlgo, data []byte) ([]byte, error)

	// HMACAll computes an HMAC over data with key, using algo's
	// underlying hash function.
	HMACAll(algo BaseHashAlgo, key, data []byte) ([]byte, error)

	// HKDFExpand expands prk into length bytes of output keying material
	// bound to info, using algo's underlying hash function.
	HKDFExpand(algo BaseHashAlgo, prk, info []byte, length int) ([]byte, error)

	// HKDFExtract extracts a pseudorandom key from ikm and salt.
	HKDFExtract(algo BaseHashAlgo, salt, ikm []byte) ([]byte, error)

	// AEADSeal encrypts plaintext and authenticates aad under suite,
	// returning ciphertext with the authentication tag appended.
	AEADSeal(suite AEADCipherSuite, key, nonce, aad, plaintext []byte) ([]byte, error)

	// AEADOpen authenticates aad and decrypts ciphertext (which carries
	// the trailing authentication tag) under suite.
	AEADOpen(suite AEADCipherSuite, key, nonce, aad, ciphertext []byte) ([]byte, error)

	// AsymSign signs a digest (already hashed under the connection's
	// BaseHashAlgo) with the local private key material identified by
	// keyID, producing a fixed-width signature per algo.SignatureSize().
	AsymSign(algo BaseAsymAlgo, keyID string, digest []byte) ([]byte, error)

	// AsymVerify verifies sig over digest against pub.
	AsymVerify(algo BaseAsymAlgo, pub []byte, digest, sig []byte) error

	// DHEGenerate creates an ephemeral key pair for group, returning the
	// encoded public key and an opaque handle to the private key.
	DHEGenerate(group DHENamedGroup) (pub []byte, priv []byte, err error)

	// DHEFinalize computes the shared secret for group from the local
	// private key handle and the peer's encoded public key.
	DHEFinalize(group DHENamedGroup, priv, peerPub []byte) ([]byte, error)

	// X509Leaf returns the leaf (end-entity) certificate of a DER-encoded
	// chain, as SPDM defines it: the first certificate.
	X509Leaf(chain []byte) (*x509.Certificate, error)

	// X509Root returns the root certificate of a DER-encoded chain: the
	// last certificate. Its hash is what a host provisions ahead of time
	// to pin a peer's chain.
	X509Root(chain []byte) (*x509.Certificate, error)

	// X509VerifyChain validates a DER-encoded certificate chain against
	// roots, the way the endpoint validates a peer's GET_CERTIFICATE
	// response.
	X509VerifyChain(chain []byte, roots *x509.CertPool) error

	// Random returns the entropy source used for nonces and ephemeral
	// keys.
	Random() io.Reader
}
