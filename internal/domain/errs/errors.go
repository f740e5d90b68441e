package errs

import (
	"errors"
	"fmt"
)

// Code classifies a domain error so the HTTP layer can map it to a status
// without inspecting messages.
type Code string

const (
	CodeValidation         Code = "VALIDATION"
	CodeEmailTaken         Code = "EMAIL_TAKEN"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeNotFound           Code = "NOT_FOUND"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// Error is a typed domain error. The Message is safe to echo to clients;
// the wrapped Err is for logs only.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is makes sentinel comparisons (errors.Is(err, errs.ErrNotFound)) match on code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a domain classification to an underlying error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation builds a validation error with a user-correctable message.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Common sentinels.
var (
	ErrEmailTaken         = New(CodeEmailTaken, "email already registered")
	ErrInvalidCredentials = New(CodeInvalidCredentials, "invalid credentials")
	ErrNotFound           = New(CodeNotFound, "user not found")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrStorageUnavailable = New(CodeStorageUnavailable, "storage unavailable")
	ErrDuplicateKey       = New(CodeEmailTaken, "duplicate key")
)

// CodeOf extracts the classification of err, CodeInternal when untyped.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
