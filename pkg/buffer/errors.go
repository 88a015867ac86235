package buffer

import "errors"

// Errors returned by this package.
var (
	// ErrOverflow is returned when Append would exceed the buffer's fixed
	// capacity.
	ErrOverflow = errors.New("buffer: append exceeds capacity")

	// ErrShrinkTooLarge is returned when Shrink is asked to remove more
	// bytes than the buffer currently holds.
	ErrShrinkTooLarge = errors.New("buffer: shrink exceeds current size")
)
