package uringrt

import (
	"errors"
	"fmt"
)

// ErrRuntimeClosed is returned by operations attempted after the owning
// Runtime has been torn down.
var ErrRuntimeClosed = errors.New("uringrt: runtime is closed")

// ErrNoRuntimeContext is the precondition violation raised when an
// ambient function (Spawn, SubmitOp, PrepareBatch, or an Await) is called
// from a goroutine with no installed runtime context — i.e. not running
// inside Runtime.Run. This is meant to be a loud, defined failure rather
// than silent misbehavior, so ambient functions panic with this error
// rather than returning it.
var ErrNoRuntimeContext = errors.New("uringrt: called outside a running Runtime")

// ErrMultiShotCompletion is the precondition violation raised when a
// completion arrives for an op key already in the Completed state.
// Multi-shot opcodes are not supported by this runtime.
var ErrMultiShotCompletion = errors.New("uringrt: completion for an already-completed op (multi-shot unsupported)")

// PanicError wraps a precondition violation detected by the runtime
// (double-spawn of a task key, polling a cancelled op, an unknown
// completion key). These represent programming bugs, not recoverable
// runtime conditions, and are always raised via panic.
type PanicError struct {
	Cause error
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("uringrt: precondition violation: %v", e.Cause)
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *PanicError) Unwrap() error {
	return e.Cause
}

func panicPrecondition(cause error) {
	panic(&PanicError{Cause: cause})
}

// RingSetupError wraps a failure constructing the kernel ring (the
// io_uring_setup/mmap sequence in internal/ring).
type RingSetupError struct {
	Cause error
}

func (e *RingSetupError) Error() string {
	return fmt.Sprintf("uringrt: ring setup failed: %v", e.Cause)
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *RingSetupError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents a deadline firing before an op completed. The
// core scheduler itself has no notion of time; deadline-aware ops (see
// the net package) build this by hard-linking a cancellation timeout
// after the op they're guarding, and translate the resulting -ECANCELED
// completion into a TimeoutError.
type TimeoutError struct {
	Cause   error
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "uringrt: operation timed out"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// WrapError wraps cause with a message, preserving it for errors.Is/As.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
