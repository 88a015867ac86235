// Package transcript implements the append-only transcript ledgers an SPDM
// endpoint keeps across a connection and its sessions. Every ledger is a
// buffer.ManagedBuffer: appends fail closed once a connection exceeds its
// configured maxima, rather than growing without bound.
package transcript

import (
	"github.com/openspdm/spdm-go/pkg/buffer"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
)

// Ledger identifies one of the nine transcript buffers an endpoint
// maintains.
type Ledger int

// The nine ledgers, named after SPDM_TRANSCRIPT / SPDM_SESSION_TRANSCRIPT.
const (
	// A holds GET_VERSION/VERSION, GET_CAPABILITIES/CAPABILITIES,
	// NEGOTIATE_ALGORITHMS/ALGORITHMS — the connection-level negotiation.
	A Ledger = iota
	// B holds GET_DIGESTS/DIGESTS and GET_CERTIFICATE/CERTIFICATE for the
	// slot the requester is about to challenge.
	B
	// C holds CHALLENGE and CHALLENGE_AUTH up to (not including) the
	// signature field.
	C
	// MutB holds the encapsulated GET_DIGESTS/DIGESTS and
	// GET_CERTIFICATE/CERTIFICATE exchanged during mutual authentication.
	MutB
	// MutC holds the encapsulated CHALLENGE/CHALLENGE_AUTH exchanged
	// during mutual authentication.
	MutC
	// M1M2 is the assembled transcript CHALLENGE_AUTH's signature is
	// computed over.
	M1M2
	// L1L2 is the assembled transcript MEASUREMENTS' signature is
	// computed over.
	L1L2
	// MessageK holds the KEY_EXCHANGE/KEY_EXCHANGE_RSP (or
	// PSK_EXCHANGE/PSK_EXCHANGE_RSP) exchange for one session.
	MessageK
	// MessageF holds the FINISH/FINISH_RSP (or PSK_FINISH/PSK_FINISH_RSP)
	// exchange for one session.
	MessageF

	ledgerCount
)

// Default ledger capacities, in bytes. A, C and MutC are bounded by the
// fixed negotiation/challenge message sizes; B, MutB, M1M2, L1L2,
// MessageK, and MessageF carry certificate chains and so need headroom for
// the largest configured chain.
const (
	SmallBufferCapacity = 2 * 1024
	LargeBufferCapacity = 16 * 1024
)

func defaultCapacity(l Ledger) int {
	switch l {
	case A, C, MutC:
		return SmallBufferCapacity
	default:
		return LargeBufferCapacity
	}
}

// Manager owns the nine ledgers for one connection (and, reused for the
// MessageK/MessageF pair, one session).
type Manager struct {
	ledgers [ledgerCount]*buffer.ManagedBuffer
}

// NewManager allocates a Manager with default ledger capacities.
func NewManager() *Manager {
	m := &Manager{}
	for l := Ledger(0); l < ledgerCount; l++ {
		m.ledgers[l] = buffer.New(defaultCapacity(l))
	}
	return m
}

func (m *Manager) buf(l Ledger) (*buffer.ManagedBuffer, error) {
	if l < 0 || l >= ledgerCount {
		return nil, ErrUnknownLedger
	}
	return m.ledgers[l], nil
}

// Append adds data to ledger l.
func (m *Manager) Append(l Ledger, data []byte) error {
	b, err := m.buf(l)
	if err != nil {
		return err
	}
	return b.Append(data)
}

// AppendPartial adds the portion of a response that precedes its
// signature or verify-data field, so the ledger's hash can be taken to
// produce that signature.
func (m *Manager) AppendPartial(l Ledger, data []byte) error {
	return m.Append(l, data)
}

// AppendFinal adds the trailing signature or verify-data field once it has
// been computed, completing the ledger entry AppendPartial started.
func (m *Manager) AppendFinal(l Ledger, data []byte) error {
	return m.Append(l, data)
}

// Reset clears ledger l, keeping its capacity.
func (m *Manager) Reset(l Ledger) error {
	b, err := m.buf(l)
	if err != nil {
		return err
	}
	b.Reset()
	return nil
}

// ResetAll clears every ledger, as when a connection or session is torn
// down and its transcript state must not leak into a future one.
func (m *Manager) ResetAll() {
	for _, b := range m.ledgers {
		b.Reset()
	}
}

// Bytes returns the current contents of ledger l. The returned slice
// aliases internal state and must not be retained past the next mutating
// call.
func (m *Manager) Bytes(l Ledger) ([]byte, error) {
	b, err := m.buf(l)
	if err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// BuildM1M2 assembles the transcript CHALLENGE_AUTH's signature covers:
// M1 = A || B || C, optionally followed by M2 = MutB || MutC when the
// challenge is itself a nested encapsulated one.
func (m *Manager) BuildM1M2(includeMut bool) []byte {
	var out []byte
	out = append(out, m.ledgers[A].Bytes()...)
	out = append(out, m.ledgers[B].Bytes()...)
	out = append(out, m.ledgers[C].Bytes()...)
	if includeMut {
		out = append(out, m.ledgers[MutB].Bytes()...)
		out = append(out, m.ledgers[MutC].Bytes()...)
	}
	return out
}

// BuildL1L2 returns the raw measurement transcript: the
// GET_MEASUREMENTS/MEASUREMENTS exchanges appended to the L1L2 ledger
// since it was last reset. Unlike M1M2 it does not fold in the
// negotiation ledgers; the measurement signature stands on its own
// attestation round.
func (m *Manager) BuildL1L2() []byte {
	return m.ledgers[L1L2].Bytes()
}

// THForSigningAK computes the transcript hash CHALLENGE_AUTH's signature
// is taken over.
func (m *Manager) THForSigningAK(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo, includeMut bool) ([]byte, error) {
	return suite.HashAll(algo, m.BuildM1M2(includeMut))
}

// THForSigningL1L2 computes the transcript hash MEASUREMENTS' signature
// is taken over.
func (m *Manager) THForSigningL1L2(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo) ([]byte, error) {
	return suite.HashAll(algo, m.BuildL1L2())
}

// BuildM2 assembles the transcript an encapsulated mutual-auth
// sub-dialogue's own CHALLENGE_AUTH signature is taken over: A || MutB ||
// MutC, without the outer connection's B || C (those belong to the main
// CHALLENGE, not the nested one).
func (m *Manager) BuildM2() []byte {
	var out []byte
	out = append(out, m.ledgers[A].Bytes()...)
	out = append(out, m.ledgers[MutB].Bytes()...)
	out = append(out, m.ledgers[MutC].Bytes()...)
	return out
}

// THForSigningAKMut computes the transcript hash an encapsulated
// sub-dialogue's CHALLENGE_AUTH signature is taken over.
func (m *Manager) THForSigningAKMut(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo) ([]byte, error) {
	return suite.HashAll(algo, m.BuildM2())
}

// Concat returns the concatenated bytes of the given ledgers, in the
// order given — used to build TH2 = hash(MessageK || MessageF).
func (m *Manager) Concat(ledgers ...Ledger) []byte {
	var out []byte
	for _, l := range ledgers {
		out = append(out, m.ledgers[l].Bytes()...)
	}
	return out
}

// THOf computes the transcript hash over the concatenation of the given
// ledgers.
func (m *Manager) THOf(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo, ledgers ...Ledger) ([]byte, error) {
	return suite.HashAll(algo, m.Concat(ledgers...))
}

// TH computes the transcript hash over ledger l directly, used for the
// session key schedule's TH1 over MessageK. TH2 spans MessageK and
// MessageF and is not taken with this method.
func (m *Manager) TH(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo, l Ledger) ([]byte, error) {
	b, err := m.buf(l)
	if err != nil {
		return nil, err
	}
	return suite.HashAll(algo, b.Bytes())
}
