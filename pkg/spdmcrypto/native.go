package spdmcrypto

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"fmt"
	"hash"
	"io"
	"math/big"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// Native is the default Suite implementation, built on the Go standard
// library and golang.org/x/crypto. It holds no protocol state: everything
// it needs (private keys, randomness) is either passed in per call or
// registered once via RegisterSigner.
type Native struct {
	rand io.Reader

	mu      sync.RWMutex
	signers map[string]crypto.Signer
}

// NewNative constructs a Native suite. If rnd is nil, crypto/rand.Reader is
// used.
func NewNative(rnd io.Reader) *Native {
	if rnd == nil {
		rnd = rand.Reader
	}
	return &Native{rand: rnd, signers: make(map[string]crypto.Signer)}
}

// RegisterSigner associates keyID with a local private key so AsymSign can
// find it later. signer is typically an *ecdsa.PrivateKey, *rsa.PrivateKey,
// or ed25519.PrivateKey.
func (n *Native) RegisterSigner(keyID string, signer crypto.Signer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signers[keyID] = signer
}

func (n *Native) Random() io.Reader { return n.rand }

func hashNew(algo BaseHashAlgo) (func() hash.Hash, error) {
	switch algo {
	case HashSHA256:
		return sha256.New, nil
	case HashSHA384:
		return sha512.New384, nil
	case HashSHA512:
		return sha512.New, nil
	case HashSHA3_256:
		return sha3.New256, nil
	case HashSHA3_384:
		return sha3.New384, nil
	case HashSHA3_512:
		return sha3.New512, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func (n *Native) HashAll(algo BaseHashAlgo, data []byte) ([]byte, error) {
	newHash, err := hashNew(algo)
	if err != nil {
		return nil, err
	}
	h := newHash()
	h.Write(data)
	return h.Sum(nil), nil
}

func (n *Native) HMACAll(algo BaseHashAlgo, key, data []byte) ([]byte, error) {
	newHash, err := hashNew(algo)
	if err != nil {
		return nil, err
	}
	h := hmac.New(newHash, key)
	h.Write(data)
	return h.Sum(nil), nil
}

func (n *Native) HKDFExpand(algo BaseHashAlgo, prk, info []byte, length int) ([]byte, error) {
	newHash, err := hashNew(algo)
	if err != nil {
		return nil, err
	}
	reader := hkdf.Expand(newHash, prk, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("spdmcrypto: hkdf expand: %w", err)
	}
	return out, nil
}

func (n *Native) HKDFExtract(algo BaseHashAlgo, salt, ikm []byte) ([]byte, error) {
	newHash, err := hashNew(algo)
	if err != nil {
		return nil, err
	}
	return hkdf.Extract(newHash, ikm, salt), nil
}

func aeadCipher(suite AEADCipherSuite, key []byte) (cipher.AEAD, error) {
	switch suite {
	case AEAD_AES_128_GCM, AEAD_AES_256_GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("spdmcrypto: aes: %w", err)
		}
		return cipher.NewGCM(block)
	case AEAD_CHACHA20_POLY1305:
		return chacha20poly1305.New(key)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func (n *Native) AEADSeal(suite AEADCipherSuite, key, nonce, aad, plaintext []byte) ([]byte, error) {
	aead, err := aeadCipher(suite, key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func (n *Native) AEADOpen(suite AEADCipherSuite, key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := aeadCipher(suite, key)
	if err != nil {
		return nil, err
	}
	out, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrVerifyFailed
	}
	return out, nil
}

func (n *Native) AsymSign(algo BaseAsymAlgo, keyID string, digest []byte) ([]byte, error) {
	n.mu.RLock()
	signer, ok := n.signers[keyID]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("spdmcrypto: no signer registered for %q", keyID)
	}

	switch algo {
	case AsymECDSA_P256, AsymECDSA_P384:
		priv, ok := signer.(*ecdsa.PrivateKey)
		if !ok {
			return nil, ErrUnsupportedAlgorithm
		}
		r, s, err := ecdsaSignRS(priv, digest, n.rand)
		if err != nil {
			return nil, err
		}
		size := algo.SignatureSize() / 2
		out := make([]byte, algo.SignatureSize())
		r.FillBytes(out[size-len(r.Bytes()) : size])
		s.FillBytes(out[algo.SignatureSize()-len(s.Bytes()):])
		return out, nil
	case AsymRSASSA_2048, AsymRSASSA_3072:
		priv, ok := signer.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrUnsupportedAlgorithm
		}
		hashAlgo := crypto.SHA256
		if len(digest) == sha512.Size384 {
			hashAlgo = crypto.SHA384
		}
		return rsa.SignPKCS1v15(n.rand, priv, hashAlgo, digest)
	case AsymEdDSA_Ed25519:
		priv, ok := signer.(ed25519.PrivateKey)
		if !ok {
			return nil, ErrUnsupportedAlgorithm
		}
		// Pure EdDSA signs the given bytes directly, with no hashing of
		// its own.
		return ed25519.Sign(priv, digest), nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func ecdsaSignRS(priv *ecdsa.PrivateKey, digest []byte, rnd io.Reader) (*big.Int, *big.Int, error) {
	return ecdsa.Sign(rnd, priv, digest)
}

func (n *Native) AsymVerify(algo BaseAsymAlgo, pub []byte, digest, sig []byte) error {
	switch algo {
	case AsymECDSA_P256, AsymECDSA_P384:
		curve := elliptic.P256()
		if algo == AsymECDSA_P384 {
			curve = elliptic.P384()
		}
		size := algo.SignatureSize() / 2
		if len(sig) != 2*size {
			return ErrInvalidKeySize
		}
		x, y := elliptic.Unmarshal(curve, pub)
		if x == nil {
			return fmt.Errorf("spdmcrypto: invalid public key encoding")
		}
		key := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
		r := new(big.Int).SetBytes(sig[:size])
		s := new(big.Int).SetBytes(sig[size:])
		if !ecdsa.Verify(key, digest, r, s) {
			return ErrVerifyFailed
		}
		return nil
	case AsymRSASSA_2048, AsymRSASSA_3072:
		key, err := x509.ParsePKCS1PublicKey(pub)
		if err != nil {
			return fmt.Errorf("spdmcrypto: parse rsa key: %w", err)
		}
		hashAlgo := crypto.SHA256
		if len(digest) == sha512.Size384 {
			hashAlgo = crypto.SHA384
		}
		if err := rsa.VerifyPKCS1v15(key, hashAlgo, digest, sig); err != nil {
			return ErrVerifyFailed
		}
		return nil
	case AsymEdDSA_Ed25519:
		if len(pub) != ed25519.PublicKeySize {
			return ErrInvalidKeySize
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return ErrVerifyFailed
		}
		return nil
	default:
		return ErrUnsupportedAlgorithm
	}
}

func dheCurve(group DHENamedGroup) (ecdh.Curve, error) {
	switch group {
	case DHESecp256r1:
		return ecdh.P256(), nil
	case DHESecp384r1:
		return ecdh.P384(), nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func (n *Native) DHEGenerate(group DHENamedGroup) (pub []byte, priv []byte, err error) {
	curve, err := dheCurve(group)
	if err != nil {
		return nil, nil, err
	}
	key, err := curve.GenerateKey(n.rand)
	if err != nil {
		return nil, nil, fmt.Errorf("spdmcrypto: dhe generate: %w", err)
	}
	return key.PublicKey().Bytes(), key.Bytes(), nil
}

func (n *Native) DHEFinalize(group DHENamedGroup, priv, peerPub []byte) ([]byte, error) {
	curve, err := dheCurve(group)
	if err != nil {
		return nil, err
	}
	localKey, err := curve.NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("spdmcrypto: dhe private key: %w", err)
	}
	peerKey, err := curve.NewPublicKey(peerPub)
	if err != nil {
		return nil, fmt.Errorf("spdmcrypto: dhe peer public key: %w", err)
	}
	secret, err := localKey.ECDH(peerKey)
	if err != nil {
		return nil, fmt.Errorf("spdmcrypto: ecdh: %w", err)
	}
	return secret, nil
}

func (n *Native) X509Leaf(chain []byte) (*x509.Certificate, error) {
	certs, err := x509.ParseCertificates(chain)
	if err != nil {
		return nil, fmt.Errorf("spdmcrypto: parse certificates: %w", err)
	}
	if len(certs) == 0 {
		return nil, ErrEmptyChain
	}
	return certs[0], nil
}

func (n *Native) X509Root(chain []byte) (*x509.Certificate, error) {
	certs, err := x509.ParseCertificates(chain)
	if err != nil {
		return nil, fmt.Errorf("spdmcrypto: parse certificates: %w", err)
	}
	if len(certs) == 0 {
		return nil, ErrEmptyChain
	}
	return certs[len(certs)-1], nil
}

func (n *Native) X509VerifyChain(chain []byte, roots *x509.CertPool) error {
	certs, err := x509.ParseCertificates(chain)
	if err != nil {
		return fmt.Errorf("spdmcrypto: parse certificates: %w", err)
	}
	if len(certs) == 0 {
		return ErrEmptyChain
	}

	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}

	_, err = certs[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("spdmcrypto: %w: %v", ErrVerifyFailed, err)
	}
	return nil
}
