package compute

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by a loss operation wraps exactly one
// of these sentinels, so callers can classify with errors.Is.
var (
	// ErrInvalidArgument covers shape and batch mismatches, empty point
	// sets and non-finite input. Raised before any parallel work starts.
	ErrInvalidArgument = errors.New("pointloss: invalid argument")

	// ErrResourceExhausted indicates an output or workspace buffer could
	// not be allocated.
	ErrResourceExhausted = errors.New("pointloss: resource exhausted")

	// ErrDeviceExecution indicates the execution backend reported a fault
	// after work was launched. There is no automatic retry: the kernels
	// are deterministic and a retry would reproduce the fault.
	ErrDeviceExecution = errors.New("pointloss: device execution failure")
)

// ShapeError reports a shape or batch-dimension mismatch between operation
// arguments. It unwraps to ErrInvalidArgument.
type ShapeError struct {
	Op   string
	Arg  string
	Want string
	Got  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s has shape %s, want %s", e.Op, e.Arg, e.Got, e.Want)
}

func (e *ShapeError) Unwrap() error { return ErrInvalidArgument }

// NotFiniteError reports NaN or Inf coordinates in an input buffer.
// It unwraps to ErrInvalidArgument.
type NotFiniteError struct {
	Op  string
	Arg string
}

func (e *NotFiniteError) Error() string {
	return fmt.Sprintf("%s: %s contains non-finite coordinates", e.Op, e.Arg)
}

func (e *NotFiniteError) Unwrap() error { return ErrInvalidArgument }

func shape3(b, n int) string {
	return fmt.Sprintf("[%d, %d, 3]", b, n)
}

// EmptySetError reports a point set with zero points. It unwraps to
// ErrInvalidArgument.
type EmptySetError struct {
	Op  string
	Arg string
}

func (e *EmptySetError) Error() string {
	return fmt.Sprintf("%s: %s is empty", e.Op, e.Arg)
}

func (e *EmptySetError) Unwrap() error { return ErrInvalidArgument }
