package transcript

import (
	"bytes"
	"testing"

	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
)

func TestAppendAndBytes(t *testing.T) {
	m := NewManager()
	if err := m.Append(A, []byte("hello")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := m.Bytes(A)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("Bytes() = %q, want %q", got, "hello")
	}
}

func TestBuildM1M2(t *testing.T) {
	m := NewManager()
	_ = m.Append(A, []byte("a"))
	_ = m.Append(B, []byte("b"))
	_ = m.Append(C, []byte("c"))
	if got := string(m.BuildM1M2(false)); got != "abc" {
		t.Fatalf("BuildM1M2(false) = %q, want %q", got, "abc")
	}

	_ = m.Append(MutB, []byte("d"))
	_ = m.Append(MutC, []byte("e"))
	if got := string(m.BuildM1M2(true)); got != "abcde" {
		t.Fatalf("BuildM1M2(true) = %q, want %q", got, "abcde")
	}
}

func TestBuildL1L2(t *testing.T) {
	m := NewManager()
	_ = m.Append(A, []byte("a"))
	_ = m.Append(B, []byte("b"))
	_ = m.Append(C, []byte("c"))
	_ = m.Append(L1L2, []byte("meas"))
	if got := string(m.BuildL1L2()); got != "meas" {
		t.Fatalf("BuildL1L2() = %q, want %q", got, "meas")
	}
	if err := m.Reset(L1L2); err != nil {
		t.Fatalf("Reset(L1L2): %v", err)
	}
	if got := len(m.BuildL1L2()); got != 0 {
		t.Fatalf("BuildL1L2() after Reset has %d bytes, want 0", got)
	}
}

func TestTHForSigningAK(t *testing.T) {
	m := NewManager()
	_ = m.Append(A, []byte("a"))
	suite := spdmcrypto.NewNative(nil)
	th, err := m.THForSigningAK(suite, spdmcrypto.HashSHA256, false)
	if err != nil {
		t.Fatalf("THForSigningAK: %v", err)
	}
	if len(th) != spdmcrypto.HashSHA256.Size() {
		t.Fatalf("len(th) = %d, want %d", len(th), spdmcrypto.HashSHA256.Size())
	}
}

func TestResetAll(t *testing.T) {
	m := NewManager()
	_ = m.Append(A, []byte("a"))
	_ = m.Append(MessageK, []byte("k"))
	m.ResetAll()

	a, _ := m.Bytes(A)
	if len(a) != 0 {
		t.Fatalf("Bytes(A) after ResetAll = %q, want empty", a)
	}
	k, _ := m.Bytes(MessageK)
	if len(k) != 0 {
		t.Fatalf("Bytes(MessageK) after ResetAll = %q, want empty", k)
	}
}

func TestUnknownLedger(t *testing.T) {
	m := NewManager()
	if err := m.Append(Ledger(999), []byte("x")); err != ErrUnknownLedger {
		t.Fatalf("Append() err = %v, want ErrUnknownLedger", err)
	}
}
