package sched

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrNoDispatchers is returned by New and Setup when asked for zero engines.
	ErrNoDispatchers = errors.New("sched: at least one dispatcher is required")

	// ErrAlreadySetup is returned when Setup is called more than once.
	ErrAlreadySetup = errors.New("sched: default scheduler already set up")

	// ErrNotSetup is returned by package-level helpers used before Setup.
	ErrNotSetup = errors.New("sched: default scheduler not set up")

	// ErrResourceExhausted is returned when a thread cannot be created because
	// the scheduler's thread limit has been reached.
	ErrResourceExhausted = errors.New("sched: out of resources for a new thread")

	// ErrNotJoinable is returned by Join for threads not created with Joinable.
	ErrNotJoinable = errors.New("sched: thread is not joinable")

	// ErrSchedulerClosed is returned when operations are attempted on a closed scheduler.
	ErrSchedulerClosed = errors.New("sched: scheduler has been closed")

	// ErrInvalidTransition is wrapped by TransitionError.
	ErrInvalidTransition = errors.New("sched: invalid thread state transition")

	// ErrContextReused indicates a context was restored while it was not
	// captured, i.e. two engines attempted to resume the same thread.
	ErrContextReused = errors.New("sched: execution context restored twice")

	// ErrNotRunning indicates Sleep was called by a thread that does not
	// currently hold an engine.
	ErrNotRunning = errors.New("sched: thread is not running on a dispatcher")

	// ErrNilEntry is returned when creating a thread without an entry function.
	ErrNilEntry = errors.New("sched: nil thread entry")
)

// TransitionError reports a rejected thread state transition.
type TransitionError struct {
	ThreadID uint64
	From     ThreadState
	To       ThreadState
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("sched: thread %d: invalid transition %s -> %s", e.ThreadID, e.From, e.To)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// PanicError wraps a value recovered from a panicking thread entry.
type PanicError struct {
	Value    any
	ThreadID uint64
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("sched: thread %d panicked: %v", e.ThreadID, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type,
// enabling [errors.Is] and [errors.As] through the panic.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ContractViolation is the panic value raised on misuse of the scheduler
// that leaves it in an unknown state, e.g. resuming a thread that is not
// runnable. It is never recovered by the scheduler, and is re-raised if
// recovered within a thread entry.
type ContractViolation struct {
	Err error
}

// Error implements the error interface.
func (e *ContractViolation) Error() string {
	return "sched: contract violation: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ContractViolation) Unwrap() error {
	return e.Err
}
