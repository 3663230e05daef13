package model

import (
	"errors"
	"fmt"
)

// Errors returned by aggregate mutators.
var (
	// ErrIndexOutOfRange indicates a positional mutator was given an index
	// outside the current sequence.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrPortNotFound indicates no server port has the requested id.
	ErrPortNotFound = errors.New("server port not found")

	// ErrDuplicatePort indicates a server port id is already present.
	ErrDuplicatePort = errors.New("duplicate server port")

	// ErrInvalidPort indicates a port number outside 0..65535.
	ErrInvalidPort = errors.New("invalid port number")
)

// IndexError reports a positional access outside a sequence.
type IndexError struct {
	// Sequence names the collection, e.g. "webModule".
	Sequence string
	// Index is the requested position.
	Index int
	// Len is the sequence length at the time of the call.
	Len int
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.Sequence, e.Index, e.Len)
}

// Is matches ErrIndexOutOfRange.
func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}
