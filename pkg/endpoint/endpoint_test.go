package endpoint

import (
	"testing"

	"github.com/openspdm/spdm-go/pkg/spdmerr"
)

func TestAdvanceStateMonotonic(t *testing.T) {
	c := NewContext(Config{})
	if err := c.AdvanceState(StateAfterVersion); err != nil {
		t.Fatalf("AdvanceState: %v", err)
	}
	if got := c.State(); got != StateAfterVersion {
		t.Fatalf("State() = %v, want %v", got, StateAfterVersion)
	}
	if err := c.AdvanceState(StateAfterNegotiateAlgorithms); err != ErrInvalidStateTransition {
		t.Fatalf("AdvanceState() skipping a step err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestAdvanceStateCannotGoBackward(t *testing.T) {
	c := NewContext(Config{})
	_ = c.AdvanceState(StateAfterVersion)
	_ = c.AdvanceState(StateAfterCapabilities)
	if err := c.AdvanceState(StateAfterVersion); err != ErrInvalidStateTransition {
		t.Fatalf("AdvanceState() backward err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestSetDataCertificateChain(t *testing.T) {
	c := NewContext(Config{})
	chain := []byte("der-encoded-chain")
	if err := c.SetData(DataLocalCertificateChain, 0, chain); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	got, err := c.GetData(DataLocalCertificateChain, 0)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if string(got) != string(chain) {
		t.Fatalf("GetData() = %q, want %q", got, chain)
	}
}

func TestSetDataRejectedAfterNegotiationStarts(t *testing.T) {
	c := NewContext(Config{})
	_ = c.AdvanceState(StateAfterVersion)
	if err := c.SetData(DataLocalCertificateChain, 0, []byte("x")); err != ErrAccessDenied {
		t.Fatalf("SetData() after negotiation started err = %v, want ErrAccessDenied", err)
	}
}

func TestSetDataInvalidSlot(t *testing.T) {
	c := NewContext(Config{})
	if err := c.SetData(DataLocalCertificateChain, MaxSlotCount, []byte("x")); err != ErrInvalidSlot {
		t.Fatalf("SetData() invalid slot err = %v, want ErrInvalidSlot", err)
	}
}

func TestAssignAndFreeSession(t *testing.T) {
	c := NewContext(Config{})
	c.AssignSession(0xDEADBEEF)
	id, ok := c.LatestSessionID()
	if !ok || id != 0xDEADBEEF {
		t.Fatalf("LatestSessionID() = (%x, %v), want (deadbeef, true)", id, ok)
	}

	if err := c.FreeSession(0xDEADBEEF); err == nil {
		// Freeing a session never Assign()ed to the registry still
		// clears the latest-session bookkeeping; the registry lookup
		// itself correctly reports not-found, which FreeSession
		// propagates.
		t.Fatalf("FreeSession() on an unregistered id unexpectedly succeeded")
	}
	if _, ok := c.LatestSessionID(); ok {
		t.Fatalf("LatestSessionID() still set after FreeSession")
	}
}

func TestDataErrorKinds(t *testing.T) {
	c := NewContext(Config{})

	if _, err := c.GetData(DataType(999), 0); spdmerr.KindOf(err) != spdmerr.Unsupported {
		t.Fatalf("GetData(unknown) kind = %v, want Unsupported", spdmerr.KindOf(err))
	}
	if err := c.SetData(DataLocalCertificateChain, MaxSlotCount, []byte("x")); spdmerr.KindOf(err) != spdmerr.InvalidParameter {
		t.Fatalf("SetData(bad slot) kind = %v, want InvalidParameter", spdmerr.KindOf(err))
	}

	_ = c.AdvanceState(StateAfterVersion)
	if err := c.SetData(DataPSKHint, 0, []byte("hint")); spdmerr.KindOf(err) != spdmerr.AccessDenied {
		t.Fatalf("SetData after negotiation kind = %v, want AccessDenied", spdmerr.KindOf(err))
	}
}
