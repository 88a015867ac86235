package endpoint

// DataType tags one item of endpoint state that can be read or written
// through GetData/SetData, the way libspdm's SpdmGetData/SpdmSetData
// dispatch on a parameter enum rather than exposing direct struct access.
type DataType int

// Data items addressable through GetData/SetData.
const (
	DataConnectionState DataType = iota
	DataLocalCertificateChain
	DataPeerCertificateChain
	DataPSKHint
	DataPeerRootCertHash
	DataBasicMutAuthRequested
)

// GetData reads one item of endpoint state. slot is only meaningful for
// DataLocalCertificateChain.
func (c *Context) GetData(tag DataType, slot int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch tag {
	case DataConnectionState:
		return []byte{byte(c.Connection.State)}, nil
	case DataLocalCertificateChain:
		if slot < 0 || slot >= MaxSlotCount {
			return nil, ErrInvalidSlot
		}
		return c.Local.CertificateChains[slot], nil
	case DataPeerCertificateChain:
		return c.Connection.PeerCertChain, nil
	case DataPSKHint:
		return c.Local.PSKHint, nil
	case DataPeerRootCertHash:
		return c.Local.PeerRootCertHashProvision, nil
	case DataBasicMutAuthRequested:
		if c.Local.BasicMutAuthRequested {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	default:
		return nil, ErrUnsupportedData
	}
}

// SetData writes one item of endpoint state. Items that are fixed once
// negotiation has started (e.g. local certificate chains) reject writes
// past StateNotStarted with ErrAccessDenied.
func (c *Context) SetData(tag DataType, slot int, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch tag {
	case DataLocalCertificateChain:
		if slot < 0 || slot >= MaxSlotCount {
			return ErrInvalidSlot
		}
		if len(value) > MaxCertChainSize {
			return ErrInvalidSlot
		}
		if c.Connection.State != StateNotStarted {
			return ErrAccessDenied
		}
		c.Local.CertificateChains[slot] = value
		c.Local.ProvisionedSlotMask |= 1 << uint(slot)
		return nil
	case DataPeerCertificateChain:
		c.Connection.PeerCertChain = value
		return nil
	case DataPSKHint:
		if len(value) > MaxPSKHintSize {
			return ErrInvalidSlot
		}
		if c.Connection.State != StateNotStarted {
			return ErrAccessDenied
		}
		c.Local.PSKHint = value
		return nil
	case DataPeerRootCertHash:
		if c.Connection.State != StateNotStarted {
			return ErrAccessDenied
		}
		c.Local.PeerRootCertHashProvision = value
		return nil
	case DataBasicMutAuthRequested:
		if c.Connection.State != StateNotStarted {
			return ErrAccessDenied
		}
		c.Local.BasicMutAuthRequested = len(value) > 0 && value[0] != 0
		return nil
	default:
		return ErrUnsupportedData
	}
}
