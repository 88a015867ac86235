package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
)

func TestRegistryAssignAndLookup(t *testing.T) {
	r := NewRegistry()
	ctx := NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)

	idx := r.FreeSlotIndex()
	if idx != 0 {
		t.Fatalf("FreeSlotIndex() = %d, want 0", idx)
	}
	if err := r.Assign(idx, 0x1234FFFF, ctx); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got := r.Lookup(0x1234FFFF); got != ctx {
		t.Fatalf("Lookup() = %v, want %v", got, ctx)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistryDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	ctx1 := NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)
	ctx2 := NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)

	if err := r.Assign(0, 0xAAAA, ctx1); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := r.Assign(1, 0xAAAA, ctx2); err != ErrDuplicateSession {
		t.Fatalf("Assign() err = %v, want ErrDuplicateSession", err)
	}
}

func TestRegistryFull(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxSessionCount; i++ {
		ctx := NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)
		if err := r.Assign(i, uint32(i+1), ctx); err != nil {
			t.Fatalf("Assign(%d): %v", i, err)
		}
	}
	if !r.IsFull() {
		t.Fatalf("IsFull() = false, want true")
	}
	ctx := NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)
	if err := r.Assign(r.FreeSlotIndex(), 999, ctx); err != ErrTableFull {
		t.Fatalf("Assign() on full table err = %v, want ErrTableFull", err)
	}
}

func TestRegistryFreeThenReuse(t *testing.T) {
	r := NewRegistry()
	ctx := NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)
	_ = r.Assign(0, 0x01, ctx)
	if err := r.Free(0x01); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if r.Lookup(0x01) != nil {
		t.Fatalf("Lookup() after Free should be nil")
	}
	if err := r.Assign(0, 0x01, NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)); err != nil {
		t.Fatalf("Assign after Free: %v", err)
	}
}

func TestKeyScheduleAndCodecRoundTrip(t *testing.T) {
	suite := spdmcrypto.NewNative(nil)
	sharedSecret := bytes.Repeat([]byte{0x42}, 32)
	th1 := bytes.Repeat([]byte{0x01}, 32)
	th2 := bytes.Repeat([]byte{0x02}, 32)

	keys, err := DeriveHandshakeKeys(suite, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM, sharedSecret, th1)
	if err != nil {
		t.Fatalf("DeriveHandshakeKeys: %v", err)
	}
	if err := keys.DeriveDataKeys(suite, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM, th2); err != nil {
		t.Fatalf("DeriveDataKeys: %v", err)
	}

	for _, b := range [][]byte{
		keys.RequestHandshakeKey, keys.RequestHandshakeSalt,
		keys.ResponseHandshakeKey, keys.ResponseHandshakeSalt,
	} {
		if len(b) == 0 {
			t.Fatalf("handshake traffic key material missing: %+v", keys)
		}
	}

	requester := NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)
	requester.SetHandshakeKeys(suite, keys, true)

	responder := NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)
	responder.SetHandshakeKeys(suite, keys, false)

	// Handshake phase: FINISH-style traffic flows before Establish.
	sealed, err := requester.Encrypt([]byte("finish request"))
	if err != nil {
		t.Fatalf("handshake Encrypt: %v", err)
	}
	opened, err := responder.Decrypt(sealed)
	if err != nil {
		t.Fatalf("handshake Decrypt: %v", err)
	}
	if !bytes.Equal(opened, []byte("finish request")) {
		t.Fatalf("handshake Decrypt() = %q, want %q", opened, "finish request")
	}

	requester.Establish(suite, true)
	responder.Establish(suite, false)

	sealed, err = requester.Encrypt([]byte("hello responder"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	opened, err = responder.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(opened, []byte("hello responder")) {
		t.Fatalf("Decrypt() = %q, want %q", opened, "hello responder")
	}

	// A handshake-phase record must not open under the data keys.
	handshakeOnly := NewContext(false, spdmcrypto.HashSHA256, spdmcrypto.AEAD_AES_128_GCM)
	handshakeOnly.SetHandshakeKeys(suite, keys, true)
	stale, err := handshakeOnly.Encrypt([]byte("late finish"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := responder.Decrypt(stale); err == nil {
		t.Fatalf("Decrypt() of a handshake-keyed record under data keys unexpectedly succeeded")
	}
}

func TestCodecRejectsReplay(t *testing.T) {
	suite := spdmcrypto.NewNative(nil)
	key := bytes.Repeat([]byte{0x01}, 16)
	salt := bytes.Repeat([]byte{0x02}, 12)

	sender := NewCodec(suite, spdmcrypto.AEAD_AES_128_GCM, key, salt)
	receiver := NewCodec(suite, spdmcrypto.AEAD_AES_128_GCM, key, salt)

	msg1, _ := sender.Seal(7, []byte("first"))
	if _, err := receiver.Open(7, msg1); err != nil {
		t.Fatalf("Open(msg1): %v", err)
	}

	msg2, _ := sender.Seal(7, []byte("second"))
	if _, err := receiver.Open(7, msg2); err != nil {
		t.Fatalf("Open(msg2): %v", err)
	}

	// Replaying msg1 after msg2 has advanced the receiver's sequence must fail.
	if _, err := receiver.Open(7, msg1); err != ErrReplay {
		t.Fatalf("Open(replayed msg1) err = %v, want ErrReplay", err)
	}
}

func TestReplayIsDecryptFailure(t *testing.T) {
	// Callers that only branch on decrypt failure must not be able to
	// tell a replay apart from a bad tag.
	if !errors.Is(ErrReplay, ErrDecryptFailed) {
		t.Fatalf("ErrReplay does not unwrap to ErrDecryptFailed")
	}
}

func TestCodecRejectsTamperedCiphertext(t *testing.T) {
	suite := spdmcrypto.NewNative(nil)
	key := bytes.Repeat([]byte{0x01}, 16)
	salt := bytes.Repeat([]byte{0x02}, 12)

	sender := NewCodec(suite, spdmcrypto.AEAD_AES_128_GCM, key, salt)
	receiver := NewCodec(suite, spdmcrypto.AEAD_AES_128_GCM, key, salt)

	msg, _ := sender.Seal(9, []byte("payload"))
	msg[len(msg)-1] ^= 0x01
	if _, err := receiver.Open(9, msg); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("Open(tampered) err = %v, want ErrDecryptFailed", err)
	}

	// The failed open must leave the receiver usable: the sender's next
	// message still decrypts.
	good, _ := sender.Seal(9, []byte("second"))
	if _, err := receiver.Open(9, good); err != nil {
		t.Fatalf("Open after rejected tamper: %v", err)
	}
}

func TestCodecSequenceExhaustion(t *testing.T) {
	suite := spdmcrypto.NewNative(nil)
	key := bytes.Repeat([]byte{0x01}, 16)
	salt := bytes.Repeat([]byte{0x02}, 12)

	sender := NewCodec(suite, spdmcrypto.AEAD_AES_128_GCM, key, salt)
	sender.seq = ^uint64(0)
	if _, err := sender.Seal(1, []byte("last")); !errors.Is(err, ErrSequenceExhausted) {
		t.Fatalf("Seal at max sequence err = %v, want ErrSequenceExhausted", err)
	}
}

// mctpStyleCallbacks is a transport convention with a truncated 2-byte
// sequence encoding and random padding, the shape an MCTP binding would
// inject.
type mctpStyleCallbacks struct{}

func (mctpStyleCallbacks) SequenceNumber(seq uint64, buf []byte) int {
	binary.LittleEndian.PutUint16(buf, uint16(seq))
	return 2
}

func (mctpStyleCallbacks) MaxRandomCount() uint32 { return 16 }

func TestCodecTransportCallbacks(t *testing.T) {
	suite := spdmcrypto.NewNative(nil)
	key := bytes.Repeat([]byte{0x01}, 16)
	salt := bytes.Repeat([]byte{0x02}, 12)

	sender := NewCodec(suite, spdmcrypto.AEAD_AES_128_GCM, key, salt)
	receiver := NewCodec(suite, spdmcrypto.AEAD_AES_128_GCM, key, salt)
	sender.SetCallbacks(mctpStyleCallbacks{})
	receiver.SetCallbacks(mctpStyleCallbacks{})

	for i := 0; i < 3; i++ {
		msg, err := sender.Seal(5, []byte("padded payload"))
		if err != nil {
			t.Fatalf("Seal(%d): %v", i, err)
		}
		got, err := receiver.Open(5, msg)
		if err != nil {
			t.Fatalf("Open(%d): %v", i, err)
		}
		if !bytes.Equal(got, []byte("padded payload")) {
			t.Fatalf("Open(%d) = %q, want %q", i, got, "padded payload")
		}
	}
}
