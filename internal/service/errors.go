package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for the transport layers
type Kind int

const (
	// KindStorageFailure is an unclassified backend error
	KindStorageFailure Kind = iota
	// KindInvalidInput covers missing or malformed fields and bad enum values
	KindInvalidInput
	// KindConflict covers duplicate order numbers and referenced products
	KindConflict
	// KindNotFound is returned for unknown order or product ids
	KindNotFound
	// KindInvalidState is returned when editing a Completed order
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "storage_failure"
	}
}

// Error is the error type returned by every service operation. Message is
// safe to show to API callers; Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindStorageFailure {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err. Errors that did not originate in this
// package are storage failures.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindStorageFailure
}

// IsKind reports whether err is a service error of kind k
func IsKind(err error, k Kind) bool {
	var svcErr *Error
	return errors.As(err, &svcErr) && svcErr.Kind == k
}

func invalidInput(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func conflict(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Err: cause}
}

func notFound(cause error, message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: cause}
}

func invalidState(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

func storageFailure(op string, err error) *Error {
	return &Error{Kind: KindStorageFailure, Message: "failed to " + op, Err: err}
}
