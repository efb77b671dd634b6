// Package core holds the shared vocabulary of mindshard: the error taxonomy,
// the memory entry and document types, and the configuration layer.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for the failure kinds callers are expected to check.
var (
	// ErrNotFound indicates an unknown instance, group or entry id.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a duplicate registration.
	ErrAlreadyExists = errors.New("already exists")

	// ErrArgumentMismatch indicates parallel slices of different lengths.
	ErrArgumentMismatch = errors.New("argument length mismatch")

	// ErrInvalidArgument indicates an argument outside its allowed range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreUnavailable indicates that a vector backend could not be reached
	// or failed an I/O operation.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotConfigured indicates that an optional capability was required
	// but never supplied (for example a summarizer).
	ErrNotConfigured = errors.New("not configured")

	// ErrUnsupportedOperation indicates that a backend lacks a capability.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyScratchpad indicates a commit of an empty working tier.
	ErrEmptyScratchpad = errors.New("scratchpad is empty")
)

// MemoryError wraps errors with operation context.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "RegisterInstance",
//	    Err: ErrAlreadyExists,
//	}
//	// Error() returns: "mindshard: RegisterInstance: already exists"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "mindshard: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("mindshard: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As see through
// the wrapper.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil:
//
//	if err != nil {
//	    return NewMemoryError("CreateGroup", err)
//	}
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}

// Errorf wraps kind with a formatted detail message under op.
//
//	core.Errorf("GetInstance", core.ErrNotFound, "instance %q", id)
//	// mindshard: GetInstance: not found: instance "kb"
func Errorf(op string, kind error, format string, args ...interface{}) error {
	return &MemoryError{
		Op:  op,
		Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)),
	}
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, "NotFound"},
	{ErrAlreadyExists, "AlreadyExists"},
	{ErrArgumentMismatch, "ArgumentMismatch"},
	{ErrInvalidArgument, "InvalidArgument"},
	{ErrStoreUnavailable, "StoreUnavailable"},
	{ErrNotConfigured, "NotConfigured"},
	{ErrUnsupportedOperation, "UnsupportedOperation"},
	{ErrInvalidConfig, "InvalidConfig"},
	{ErrEmptyScratchpad, "EmptyScratchpad"},
}

// Kind returns the taxonomy name of err ("NotFound", "StoreUnavailable", ...),
// "Unknown" for errors outside the taxonomy and "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}
