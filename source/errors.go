package source

import "errors"

var (
	// ErrDecode indicates that an object held a record that is not valid
	// JSON, or that its compressed stream is corrupt.
	ErrDecode = errors.New("record decode failed")

	// ErrUnknownFormat indicates an object whose name carries none of the
	// supported record extensions.
	ErrUnknownFormat = errors.New("unknown object format")
)
