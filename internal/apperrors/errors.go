// Package apperrors defines the error taxonomy shared by the ledger
// operations. Every error carries a kind used by the HTTP layer to pick a
// status code and by the executor to decide whether a retry makes sense.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindInsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	KindInsufficientShares Kind = "INSUFFICIENT_SHARES"
	KindInvalidState       Kind = "INVALID_STATE"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindConflict           Kind = "CONFLICT"
)

// Error is an operation failure with a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NotFound reports a missing user, machine, balance, holding or transaction.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InsufficientFunds reports a debit that would drive a balance below zero.
func InsufficientFunds(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInsufficientFunds, Message: fmt.Sprintf(format, args...)}
}

// InsufficientShares reports a share purchase exceeding availability.
func InsufficientShares(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInsufficientShares, Message: fmt.Sprintf(format, args...)}
}

// InvalidState reports an operation against an entity in the wrong state,
// such as selling an inactive holding or deciding a non-pending withdrawal.
func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input such as a non-positive amount.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports write contention that survived the retry budget.
func Conflict(cause error) *Error {
	return &Error{Kind: KindConflict, Message: "operation aborted after repeated write conflicts", cause: cause}
}

// KindOf returns the kind of err, or an empty kind for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTerminal reports whether err is a validation-class failure that must
// never be retried.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindInsufficientFunds, KindInsufficientShares, KindInvalidState, KindValidation:
		return true
	}
	return false
}
