package scraperr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error is a typed extraction error carrying a taxonomy code. The message
// defaults per code and may be overridden per occurrence.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New creates an Error with the code's default message.
func New(code Code) *Error {
	return &Error{Code: code, Message: DefaultMessage(code)}
}

// Newf creates an Error with an occurrence-specific message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the code's default message and an underlying
// cause preserved for errors.Is/As inspection.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Message: DefaultMessage(code), cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the error's code is in the retryable subset.
func (e *Error) Retryable() bool {
	return Retryable(e.Code)
}

// AsError extracts a *Error from an error chain, or nil.
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// FromTransport downgrades an unexpected transport-level fault into a typed
// error. Timeouts and cancellations map to TIMEOUT, everything else to
// NETWORK_ERROR; an already-typed error passes through unchanged. The engine
// never lets an unhandled fault escape to its caller.
func FromTransport(err error) *Error {
	if err == nil {
		return nil
	}
	if se := AsError(err); se != nil {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(CodeTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(CodeTimeout, err)
	}
	return Wrap(CodeNetworkError, err)
}
