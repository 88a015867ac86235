package spdmerr

import (
	"errors"
	"testing"
)

var errSentinel = errors.New("package: sentinel failure")

func TestWrapUnwrap(t *testing.T) {
	wrapped := BufferOverflow.Wrap(errSentinel)

	if !errors.Is(wrapped, errSentinel) {
		t.Fatalf("wrapped error should unwrap to sentinel")
	}
	if got := KindOf(wrapped); got != BufferOverflow {
		t.Fatalf("KindOf() = %v, want %v", got, BufferOverflow)
	}
}

func TestKindOfUnwrapped(t *testing.T) {
	if got := KindOf(errSentinel); got != Unknown {
		t.Fatalf("KindOf() on bare error = %v, want Unknown", got)
	}
}

func TestWrapNil(t *testing.T) {
	if err := InvalidParameter.Wrap(nil); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		InvalidParameter:  "invalid_parameter",
		SessionFull:       "session_full",
		SequenceExhausted: "sequence_exhausted",
		Kind(999):         "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
