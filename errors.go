package cmdq

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failures the runtime can report.
//
// Allocation-time failures (KindOutOfMemory, KindDeviceLost) are returned
// synchronously from the failing call. Execution-time failures
// (KindExecutionError) are deferred: they surface only through a command
// buffer's StatusError terminal state. KindTimeout is returned only from
// CPU-side event waits. KindInvalidUsage marks programming errors; the
// runtime treats those as fatal precondition violations and panics with an
// *Error rather than returning it.
type ErrorKind int

const (
	// KindDeviceLost indicates the device is gone. Every subsequent
	// operation on objects derived from it fails the same way; the caller
	// must recreate the device and everything created from it.
	KindDeviceLost ErrorKind = iota + 1

	// KindTimeout indicates a CPU-side wait gave up before the awaited
	// value arrived. Never fatal; the caller may retry.
	KindTimeout

	// KindOutOfMemory indicates a heap or device allocation could not be
	// satisfied. No partial object is produced.
	KindOutOfMemory

	// KindInvalidUsage indicates an API contract violation: double commit,
	// encoding after commit, two open encoders, unbalanced debug groups,
	// or use of an aliasable resource.
	KindInvalidUsage

	// KindExecutionError indicates the device faulted while executing
	// committed commands. Captured on the command buffer and surfaced only
	// through its StatusError state.
	KindExecutionError
)

// errorKindNames maps ErrorKind values to their string representation.
var errorKindNames = [...]string{
	KindDeviceLost:     "DeviceLost",
	KindTimeout:        "Timeout",
	KindOutOfMemory:    "OutOfMemory",
	KindInvalidUsage:   "InvalidUsage",
	KindExecutionError: "ExecutionError",
}

// String returns the string representation of an ErrorKind.
func (k ErrorKind) String() string {
	if k >= 1 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "Unknown"
}

// Error is the structured error payload carried by every failure the
// runtime reports: a kind for programmatic handling and a human-readable
// description.
type Error struct {
	Kind        ErrorKind
	Description string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("cmdq: %s: %s", e.Kind, e.Description)
}

// Is reports whether target matches this error. It allows
// errors.Is(err, &Error{Kind: k}) style matching on the kind alone when
// the target carries no description.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Description == "" || t.Description == e.Description)
}

// Kind extracts the ErrorKind from err, or 0 if err was not produced by
// this package.
func Kind(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// errorf builds an *Error with a formatted description.
func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Description: fmt.Sprintf(format, args...)}
}

// invalidUsage panics with a KindInvalidUsage error. Contract violations
// are unrecoverable: continuing would corrupt the command stream, so they
// fail loudly instead of returning an error the caller would have to
// thread through every encoding call.
func invalidUsage(format string, args ...any) {
	panic(errorf(KindInvalidUsage, format, args...))
}
