package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidBatchOperation is the single error kind for every sequencing or
// invariant violation. Use errors.Is against it; inspect the Reason on the
// concrete *Error for the specific violation.
var ErrInvalidBatchOperation = errors.New("invalid batch operation")

// Reason identifies which invariant a failed call violated.
type Reason int

const (
	// ReasonInvalidStateTransition means the call is not legal from the
	// writer's current state.
	ReasonInvalidStateTransition Reason = iota

	// ReasonActiveChangeset means a changeset was opened while one was
	// already open.
	ReasonActiveChangeset

	// ReasonMissingActiveChangeset means EndChangeset was called with no
	// changeset open.
	ReasonMissingActiveChangeset

	// ReasonActiveChangesetAtBatchEnd means EndBatch was called while a
	// changeset was still open.
	ReasonActiveChangesetAtBatchEnd

	// ReasonUnsafeMethodInChangeset means a read-only HTTP method was used
	// for a request inside a changeset.
	ReasonUnsafeMethodInChangeset

	// ReasonMissingContentID means a request inside a changeset carried no
	// Content-ID.
	ReasonMissingContentID

	// ReasonMissingContentIDReference means a request URI referenced a
	// Content-ID that no completed operation has registered.
	ReasonMissingContentIDReference

	// ReasonInStreamError means an in-stream error was signaled; this wire
	// format has no in-payload error representation.
	ReasonInStreamError
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonInvalidStateTransition:
		return "invalid state transition"
	case ReasonActiveChangeset:
		return "active changeset"
	case ReasonMissingActiveChangeset:
		return "missing active changeset"
	case ReasonActiveChangesetAtBatchEnd:
		return "active changeset at batch end"
	case ReasonUnsafeMethodInChangeset:
		return "unsafe method in changeset"
	case ReasonMissingContentID:
		return "missing content id"
	case ReasonMissingContentIDReference:
		return "missing content id reference"
	case ReasonInStreamError:
		return "in-stream error"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Error is the concrete invalid-batch-operation error.
type Error struct {
	// Reason is the violated invariant.
	Reason Reason

	// Message describes the violation in context.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("invalid batch operation: %s: %s", e.Reason, e.Message)
}

// Is reports whether target is ErrInvalidBatchOperation, so callers can match
// any sequencing failure with errors.Is.
func (e *Error) Is(target error) bool {
	return target == ErrInvalidBatchOperation
}

func newError(reason Reason, format string, args ...interface{}) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
