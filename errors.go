// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes session failures so callers can react without parsing
// error text: transport faults suggest a network problem, auth failures a bad
// password, protocol and decode failures a desynchronized or hostile stream.
type ErrorCode int

const (
	// ErrTransport indicates an I/O failure, reset or timeout on the byte
	// stream. Always fatal to the current session; the engine never retries.
	ErrTransport ErrorCode = iota
	// ErrProtocol indicates malformed or out-of-spec bytes: unsupported
	// version, truncated message, out-of-bounds rectangle. Fatal, since the
	// stream cannot be resynchronized mid-message.
	ErrProtocol
	// ErrAuth indicates rejected credentials or a failed security handshake.
	ErrAuth
	// ErrDecode indicates encoding-specific corruption in a rectangle payload.
	ErrDecode
	// ErrValidation indicates locally produced input that fails protocol
	// constraints before it reaches the wire.
	ErrValidation
	// ErrUnsupported indicates a feature, version or encoding the client does
	// not implement.
	ErrUnsupported
)

// String returns the string representation of the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrTransport:
		return "transport"
	case ErrProtocol:
		return "protocol"
	case ErrAuth:
		return "auth"
	case ErrDecode:
		return "decode"
	case ErrValidation:
		return "validation"
	case ErrUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the structured error type used throughout the package. Every fatal
// session error is an *Error carrying the failing operation, a category code,
// a human-readable message and the wrapped cause. Decode failures additionally
// record the wire encoding id of the rectangle that failed.
type Error struct {
	Op       string
	Code     ErrorCode
	Message  string
	Encoding int32 // set for ErrDecode, otherwise zero
	Err      error
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e.Code == ErrDecode {
		if e.Err != nil {
			return fmt.Sprintf("rfb %s: %s: encoding %d: %s: %v", e.Code, e.Op, e.Encoding, e.Message, e.Err)
		}
		return fmt.Sprintf("rfb %s: %s: encoding %d: %s", e.Code, e.Op, e.Encoding, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("rfb %s: %s: %s: %v", e.Code, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("rfb %s: %s: %s", e.Code, e.Op, e.Message)
}

// Unwrap returns the underlying error for error chain unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target error.
func (e *Error) Is(target error) bool {
	var rfbErr *Error
	if errors.As(target, &rfbErr) {
		return e.Code == rfbErr.Code && e.Op == rfbErr.Op
	}
	return false
}

// NewError creates a new Error with the specified parameters.
func NewError(op string, code ErrorCode, message string, err error) *Error {
	return &Error{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsError checks if an error is an *Error and optionally matches specific
// error codes. With no codes it reports whether err is any *Error; with codes
// it reports whether err matches one of them.
func IsError(err error, code ...ErrorCode) bool {
	var rfbErr *Error
	if !errors.As(err, &rfbErr) {
		return false
	}

	if len(code) == 0 {
		return true
	}

	for _, c := range code {
		if rfbErr.Code == c {
			return true
		}
	}
	return false
}

// CodeOf extracts the error code from an *Error.
// Returns -1 if the error is not an *Error.
func CodeOf(err error) ErrorCode {
	var rfbErr *Error
	if errors.As(err, &rfbErr) {
		return rfbErr.Code
	}
	return ErrorCode(-1)
}

// transportError creates a new transport error.
func transportError(op, message string, err error) error {
	return NewError(op, ErrTransport, message, err)
}

// protocolError creates a new protocol error.
func protocolError(op, message string, err error) error {
	return NewError(op, ErrProtocol, message, err)
}

// authError creates a new authentication error.
func authError(op, message string, err error) error {
	return NewError(op, ErrAuth, message, err)
}

// decodeError creates a new decode error tagged with the encoding id.
func decodeError(op string, encoding int32, message string, err error) error {
	return &Error{
		Op:       op,
		Code:     ErrDecode,
		Message:  message,
		Encoding: encoding,
		Err:      err,
	}
}

// validationError creates a new validation error.
func validationError(op, message string, err error) error {
	return NewError(op, ErrValidation, message, err)
}

// unsupportedError creates a new unsupported operation error.
func unsupportedError(op, message string, err error) error {
	return NewError(op, ErrUnsupported, message, err)
}
