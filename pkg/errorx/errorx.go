// Package errorx implements the error-kind taxonomy from spec.md §7. Error
// wraps a Kind, a message, and an optional cause, generalized directly from
// the teacher's toolerrors.ToolError chain (Message/Cause/Unwrap) to cover
// every kind the runtime needs to classify rather than only tool failures.
package errorx

import (
	"errors"
	"fmt"
)

// Kind categorizes a runtime failure per spec.md §7.
type Kind string

const (
	// InputMissing: a required binding/type is absent from the blackboard.
	InputMissing Kind = "input_missing"
	// PreconditionViolated: an action was dispatched but its preconditions
	// no longer hold.
	PreconditionViolated Kind = "precondition_violated"
	// PlanNotFound: the planner returned no plan for any goal.
	PlanNotFound Kind = "plan_not_found"
	// MultipleUnknownsUnhandled: GOAP optimization hit more unknown
	// conditions than the configured strategy can resolve.
	MultipleUnknownsUnhandled Kind = "multiple_unknowns_unhandled"
	// ExternalTransient: rate-limit, 5xx, or network failure; retried per QoS.
	ExternalTransient Kind = "external_transient"
	// ExternalFatal: auth or non-429 4xx failure; not retried.
	ExternalFatal Kind = "external_fatal"
	// UnsupportedOperation: e.g. streaming requested on a non-streaming collaborator.
	UnsupportedOperation Kind = "unsupported_operation"
	// Cancelled: the process was terminated externally or by policy.
	Cancelled Kind = "cancelled"
)

// Error is a structured failure carrying a Kind, a human-readable message,
// and an optional causal chain.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind with the provided message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf formats according to a format specifier and returns an Error of the
// given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap constructs an Error of the given kind that wraps cause. If message
// is empty, cause's message is reused.
func Wrap(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/As through the causal chain.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, letting
// callers write errors.Is(err, errorx.New(errorx.PlanNotFound, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// returning ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
