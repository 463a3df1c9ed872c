// Package errors provides the engine's typed error taxonomy.
// Import it as apperr to avoid clashing with the standard library.
package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// Code classifies an engine failure.
type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNotFound          Code = "NOT_FOUND"
	CodeNoEligibleRecords Code = "NO_ELIGIBLE_RECORDS"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeConflict          Code = "CONFLICT"
	CodeUnavailable       Code = "UNAVAILABLE"
)

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrValidation        = &Error{code: CodeValidation, msg: "validation failed"}
	ErrNotFound          = &Error{code: CodeNotFound, msg: "not found"}
	ErrNoEligibleRecords = &Error{code: CodeNoEligibleRecords, msg: "no eligible records"}
	ErrInsufficientFunds = &Error{code: CodeInsufficientFunds, msg: "insufficient wallet balance"}
	ErrConflict          = &Error{code: CodeConflict, msg: "conflict"}
	ErrUnavailable       = &Error{code: CodeUnavailable, msg: "unavailable"}
)

// Error is a coded error with optional field, operation and cause.
type Error struct {
	code  Code
	msg   string
	field string
	op    string
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.msg
	if e.op != "" {
		msg = e.op + ": " + msg
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code returns the error code.
func (e *Error) Code() Code { return e.code }

// Message returns the human readable message without op or cause.
func (e *Error) Message() string { return e.msg }

// Field returns the offending field, if any.
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set.
func (e *Error) Op() string { return e.op }

// WithOp returns a copy of e tagged with op.
func (e *Error) WithOp(op string) *Error {
	c := *e
	c.op = op
	return &c
}

// New builds an error with the given code.
func New(code Code, format string, args ...any) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause.
func Wrap(cause error, code Code, format string, args ...any) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...), cause: cause}
}

// Validation reports bad or missing input on field.
func Validation(field, format string, args ...any) *Error {
	return &Error{code: CodeValidation, field: field, msg: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown reference.
func NotFound(kind, id string) *Error {
	return &Error{code: CodeNotFound, msg: fmt.Sprintf("%s %q not found", kind, id)}
}

// NoEligibleRecords reports an empty selection.
func NoEligibleRecords(accountID string) *Error {
	return &Error{code: CodeNoEligibleRecords, msg: fmt.Sprintf("no eligible records for account %q", accountID)}
}

// InsufficientFunds reports a wallet below the required amount.
func InsufficientFunds(balance, required string) *Error {
	return &Error{
		code: CodeInsufficientFunds,
		msg:  fmt.Sprintf("wallet balance %s below required %s", balance, required),
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.code
	}
	return CodeUnknown
}

// HTTPStatus maps a code onto an HTTP status.
func HTTPStatus(c Code) int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNoEligibleRecords:
		return http.StatusUnprocessableEntity
	case CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
