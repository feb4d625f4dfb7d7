// Package errors defines coded errors reported by the ingestion pipeline.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"maps"

	"github.com/maruel/docitem/internal/document"
	"github.com/maruel/docitem/internal/item"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// ErrUnknownField is returned when a record sets a field its item class
	// does not declare
	ErrUnknownField ErrorCode = "UNKNOWN_FIELD"
	// ErrValidationFailed is returned when a record fails validation
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrStorageError is returned when a storage operation fails
	ErrStorageError ErrorCode = "STORAGE_ERROR"
	// ErrDecode is returned when input cannot be parsed
	ErrDecode ErrorCode = "DECODE_ERROR"
	// ErrConfiguration is returned for invalid class or schema setup
	ErrConfiguration ErrorCode = "CONFIGURATION"
	// ErrInternal is returned when an unexpected error occurs
	ErrInternal ErrorCode = "INTERNAL"
)

// Error is an error with a code and optional details.
type Error struct {
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		code:    code,
		message: message,
		details: make(map[string]any),
	}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	maps.Copy(e.details, details)
	return e
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code    ErrorCode      `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	}{e.code, e.Error(), e.details}
	return json.Marshal(out)
}

// UnknownField reports a field the item class does not declare.
func UnknownField(class, field string) *Error {
	return New(ErrUnknownField, fmt.Sprintf("%s does not support field: %s", class, field)).
		WithDetail("class", class).
		WithDetail("field", field)
}

// ValidationFailed reports per-field validation errors.
func ValidationFailed(class string, fields map[string]error) *Error {
	details := make(map[string]any, len(fields))
	for name, err := range fields {
		details[name] = err.Error()
	}
	return New(ErrValidationFailed, fmt.Sprintf("%s failed validation", class)).WithDetails(details)
}

// Decode reports unparsable input.
func Decode(message string, err error) *Error {
	return New(ErrDecode, message).Wrap(err)
}

// Internal returns an error for an unexpected failure.
func Internal(message string) *Error {
	return New(ErrInternal, message)
}

// Classify returns err as an *Error, deriving the code from the errors it
// wraps. It returns nil for a nil error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	var uerr *item.UnknownFieldError
	if stderrors.As(err, &uerr) {
		return UnknownField(uerr.Class, uerr.Field).Wrap(err)
	}
	var verr *document.ValidationError
	if stderrors.As(err, &verr) {
		return New(ErrValidationFailed, "document failed validation").
			WithDetails(ValidationFailed(verr.Schema, verr.Errors).Details()).
			Wrap(err)
	}
	var serr *json.SyntaxError
	var terr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &serr), stderrors.As(err, &terr):
		return Decode("invalid record", err)
	case stderrors.Is(err, item.ErrUnknownField):
		return New(ErrUnknownField, "unknown field").Wrap(err)
	case stderrors.Is(err, item.ErrNoSchema), stderrors.Is(err, item.ErrNotPersistable):
		return New(ErrConfiguration, "invalid item class").Wrap(err)
	case stderrors.Is(err, fs.ErrNotExist), stderrors.Is(err, fs.ErrPermission):
		return New(ErrStorageError, "storage failure").Wrap(err)
	}
	var perr *fs.PathError
	if stderrors.As(err, &perr) {
		return New(ErrStorageError, "storage failure").Wrap(err)
	}
	return Internal("unexpected failure").Wrap(err)
}
