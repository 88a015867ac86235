// Package buffer provides ManagedBuffer, the bounded append-only byte
// buffer backing every transcript ledger kept by an SPDM endpoint.
//
// Unlike bytes.Buffer, a ManagedBuffer never grows past the capacity it was
// constructed with: Append fails closed with ErrOverflow instead of
// reallocating, because transcript ledgers are a fixed resource an endpoint
// must budget for ahead of time.
package buffer

import "github.com/openspdm/spdm-go/pkg/spdmerr"

// ManagedBuffer is a fixed-capacity, append-only byte buffer.
type ManagedBuffer struct {
	data []byte
	size int
}

// New allocates a ManagedBuffer with the given fixed capacity.
func New(capacity int) *ManagedBuffer {
	return &ManagedBuffer{data: make([]byte, capacity)}
}

// Append copies b onto the end of the buffer. It fails without modifying
// the buffer if doing so would exceed capacity.
func (m *ManagedBuffer) Append(b []byte) error {
	if m.size+len(b) > len(m.data) {
		return spdmerr.BufferOverflow.Wrap(ErrOverflow)
	}
	copy(m.data[m.size:], b)
	m.size += len(b)
	return nil
}

// Shrink removes n bytes from the end of the buffer, as when a partially
// built transcript entry must be rolled back to append a corrected one.
func (m *ManagedBuffer) Shrink(n int) error {
	if n > m.size {
		return spdmerr.InvalidParameter.Wrap(ErrShrinkTooLarge)
	}
	m.size -= n
	return nil
}

// Reset zeros the logical length of the buffer, keeping its capacity.
func (m *ManagedBuffer) Reset() {
	m.size = 0
}

// Size reports the number of bytes currently stored.
func (m *ManagedBuffer) Size() int {
	return m.size
}

// Capacity reports the buffer's fixed maximum size.
func (m *ManagedBuffer) Capacity() int {
	return len(m.data)
}

// Bytes returns the stored bytes. The returned slice aliases the buffer's
// backing array and must not be retained past the next mutating call.
func (m *ManagedBuffer) Bytes() []byte {
	return m.data[:m.size]
}
