package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in workflow terms, not HTTP terms.
type Code string

const (
	// Input errors: recoverable by user correction.
	CodeValidation   Code = "validation_failed"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"

	// Connectivity errors: terminal until the user retries the connection step.
	CodeUnavailable Code = "unavailable"

	// Ledger call errors: reason preserved, never retried automatically.
	CodeLedgerRejected  Code = "ledger_rejected"
	CodeNetworkMismatch Code = "network_mismatch"
	CodeQueryFailed     Code = "query_failed"

	// Rendering errors.
	CodeRenderUnavailable Code = "render_unavailable"

	CodeInternal Code = "internal_error"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across workflow, gateway, and transport layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the domain code carried by err, or CodeInternal when err
// is not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsUserCorrectable reports whether err belongs to the input error class:
// reported inline and never logged as a system fault.
func IsUserCorrectable(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeInvalidInput, CodeNotFound:
		return true
	default:
		return false
	}
}
