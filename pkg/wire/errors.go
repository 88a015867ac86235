package wire

import (
	"errors"

	"github.com/openspdm/spdm-go/pkg/spdmerr"
)

// Errors returned by this package. Decode failures mean the peer put
// malformed bytes on the wire, so each sentinel carries its spdmerr.Kind
// from the start and classifies as a device error (or unsupported
// format) without every call site re-wrapping it.
var (
	// ErrTruncated is returned when a byte slice is shorter than the
	// message it's being decoded as.
	ErrTruncated = spdmerr.DeviceError.Wrap(errors.New("wire: message truncated"))

	// ErrVersionMismatch is returned when a header's SPDMVersion does not
	// match the requested message's expected version.
	ErrVersionMismatch = spdmerr.DeviceError.Wrap(errors.New("wire: unexpected SPDM version"))

	// ErrCodeMismatch is returned when a header's RequestResponseCode
	// does not match the message type being decoded.
	ErrCodeMismatch = spdmerr.DeviceError.Wrap(errors.New("wire: unexpected request/response code"))

	// ErrUnknownOpaqueFormat is returned when an opaque data blob does not
	// start with the DMTF general opaque data table header.
	ErrUnknownOpaqueFormat = spdmerr.Unsupported.Wrap(errors.New("wire: unknown opaque data format"))
)
