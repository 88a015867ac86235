package transport

import "errors"

// ErrFrameTooShort is returned by PassthroughDecode when a transport
// message is shorter than the fixed header it expects.
var ErrFrameTooShort = errors.New("transport: frame too short")
