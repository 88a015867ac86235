package endpoint

import (
	"errors"

	"github.com/openspdm/spdm-go/pkg/spdmerr"
)

// Errors returned by this package. Each sentinel carries its spdmerr.Kind
// from the start, so GetData/SetData failures classify without every call
// site re-wrapping them.
var (
	// ErrUnsupportedData is returned by GetData/SetData for a DataType the
	// local endpoint does not carry.
	ErrUnsupportedData = spdmerr.Unsupported.Wrap(errors.New("endpoint: unsupported data type"))

	// ErrInvalidSlot is returned when a slot index is outside
	// [0, MaxSlotCount) or a value exceeds the item's size bound.
	ErrInvalidSlot = spdmerr.InvalidParameter.Wrap(errors.New("endpoint: invalid certificate slot"))

	// ErrAccessDenied is returned when SetData is called for a DataType
	// that may only be set before the connection starts.
	ErrAccessDenied = spdmerr.AccessDenied.Wrap(errors.New("endpoint: data item is read-only after negotiation"))

	// ErrInvalidStateTransition is returned when the connection state
	// machine is asked to move to a state it cannot reach from its
	// current one.
	ErrInvalidStateTransition = spdmerr.DeviceError.Wrap(errors.New("endpoint: invalid connection state transition"))

	// ErrSessionNotFound is returned when FreeSession is called with a
	// session id the session registry does not hold.
	ErrSessionNotFound = spdmerr.SessionNotFound.Wrap(errors.New("endpoint: session not found"))
)
