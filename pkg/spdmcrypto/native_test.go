package spdmcrypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
)

func TestNativeHashAll(t *testing.T) {
	n := NewNative(nil)
	digest, err := n.HashAll(HashSHA256, []byte("hello"))
	if err != nil {
		t.Fatalf("HashAll: %v", err)
	}
	if len(digest) != HashSHA256.Size() {
		t.Fatalf("digest length = %d, want %d", len(digest), HashSHA256.Size())
	}
}

func TestNativeHashUnsupported(t *testing.T) {
	n := NewNative(nil)
	if _, err := n.HashAll(BaseHashAlgo(0), []byte("x")); err != ErrUnsupportedAlgorithm {
		t.Fatalf("HashAll() err = %v, want ErrUnsupportedAlgorithm", err)
	}
}

func TestNativeHKDFRoundTrip(t *testing.T) {
	n := NewNative(nil)
	prk, err := n.HKDFExtract(HashSHA256, []byte("salt"), []byte("ikm"))
	if err != nil {
		t.Fatalf("HKDFExtract: %v", err)
	}
	out, err := n.HKDFExpand(HashSHA256, prk, []byte("info"), 32)
	if err != nil {
		t.Fatalf("HKDFExpand: %v", err)
	}
	if len(out) != 32 {
		t.Fatalf("len(out) = %d, want 32", len(out))
	}
}

func TestNativeAEADRoundTrip(t *testing.T) {
	n := NewNative(nil)
	key := bytes.Repeat([]byte{0x01}, 16)
	nonce := bytes.Repeat([]byte{0x02}, 12)
	aad := []byte("header")
	plaintext := []byte("secured payload")

	ct, err := n.AEADSeal(AEAD_AES_128_GCM, key, nonce, aad, plaintext)
	if err != nil {
		t.Fatalf("AEADSeal: %v", err)
	}
	pt, err := n.AEADOpen(AEAD_AES_128_GCM, key, nonce, aad, ct)
	if err != nil {
		t.Fatalf("AEADOpen: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("AEADOpen() = %q, want %q", pt, plaintext)
	}

	// Tampered AAD must fail to decrypt.
	if _, err := n.AEADOpen(AEAD_AES_128_GCM, key, nonce, []byte("tampered"), ct); err != ErrVerifyFailed {
		t.Fatalf("AEADOpen() with tampered aad err = %v, want ErrVerifyFailed", err)
	}
}

func TestNativeAEADChaCha20(t *testing.T) {
	n := NewNative(nil)
	key := bytes.Repeat([]byte{0x03}, 32)
	nonce := bytes.Repeat([]byte{0x04}, 12)
	ct, err := n.AEADSeal(AEAD_CHACHA20_POLY1305, key, nonce, nil, []byte("data"))
	if err != nil {
		t.Fatalf("AEADSeal: %v", err)
	}
	pt, err := n.AEADOpen(AEAD_CHACHA20_POLY1305, key, nonce, nil, ct)
	if err != nil {
		t.Fatalf("AEADOpen: %v", err)
	}
	if string(pt) != "data" {
		t.Fatalf("AEADOpen() = %q, want %q", pt, "data")
	}
}

func TestNativeECDSASignVerify(t *testing.T) {
	n := NewNative(nil)
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	n.RegisterSigner("device-key", priv)

	digest, _ := n.HashAll(HashSHA256, []byte("transcript bytes"))
	sig, err := n.AsymSign(AsymECDSA_P256, "device-key", digest)
	if err != nil {
		t.Fatalf("AsymSign: %v", err)
	}
	if len(sig) != AsymECDSA_P256.SignatureSize() {
		t.Fatalf("len(sig) = %d, want %d", len(sig), AsymECDSA_P256.SignatureSize())
	}

	pub := elliptic.Marshal(elliptic.P256(), priv.PublicKey.X, priv.PublicKey.Y)
	if err := n.AsymVerify(AsymECDSA_P256, pub, digest, sig); err != nil {
		t.Fatalf("AsymVerify: %v", err)
	}

	digest[0] ^= 0xff
	if err := n.AsymVerify(AsymECDSA_P256, pub, digest, sig); err != ErrVerifyFailed {
		t.Fatalf("AsymVerify() on tampered digest err = %v, want ErrVerifyFailed", err)
	}
}

func TestNativeEd25519SignVerify(t *testing.T) {
	n := NewNative(nil)
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	n.RegisterSigner("ed-key", priv)

	message := []byte("full transcript, not pre-hashed")
	sig, err := n.AsymSign(AsymEdDSA_Ed25519, "ed-key", message)
	if err != nil {
		t.Fatalf("AsymSign: %v", err)
	}
	if err := n.AsymVerify(AsymEdDSA_Ed25519, pub, message, sig); err != nil {
		t.Fatalf("AsymVerify: %v", err)
	}
}

func TestNativeDHERoundTrip(t *testing.T) {
	n := NewNative(nil)
	aPub, aPriv, err := n.DHEGenerate(DHESecp256r1)
	if err != nil {
		t.Fatalf("DHEGenerate: %v", err)
	}
	bPub, bPriv, err := n.DHEGenerate(DHESecp256r1)
	if err != nil {
		t.Fatalf("DHEGenerate: %v", err)
	}

	secretA, err := n.DHEFinalize(DHESecp256r1, aPriv, bPub)
	if err != nil {
		t.Fatalf("DHEFinalize: %v", err)
	}
	secretB, err := n.DHEFinalize(DHESecp256r1, bPriv, aPub)
	if err != nil {
		t.Fatalf("DHEFinalize: %v", err)
	}
	if !bytes.Equal(secretA, secretB) {
		t.Fatalf("shared secrets differ")
	}
}
