package models

import (
	"errors"
	"fmt"
)

// ErrorKind tags a domain failure so callers can map it without string
// matching. Absence of data is never an error; engines return neutral
// values for empty windows.
type ErrorKind string

const (
	ErrKindUnknownService ErrorKind = "unknown_service"
	ErrKindInvalidInput   ErrorKind = "invalid_input"
	ErrKindConflict       ErrorKind = "conflict"
	ErrKindNotFound       ErrorKind = "not_found"
	ErrKindInternal       ErrorKind = "internal"
)

// Error is the typed failure engines surface. Service carries the name or
// id of the service the failure relates to, when known.
type Error struct {
	Kind    ErrorKind
	Service string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UnknownServiceByID builds the canonical unknown-service failure.
func UnknownServiceByID(id int64) *Error {
	return &Error{
		Kind:    ErrKindUnknownService,
		Service: fmt.Sprintf("%d", id),
		Message: fmt.Sprintf("Service %d not found", id),
	}
}

// UnknownServiceByName builds the canonical unknown-service failure.
func UnknownServiceByName(name string) *Error {
	return &Error{
		Kind:    ErrKindUnknownService,
		Service: name,
		Message: fmt.Sprintf("Service '%s' not found", name),
	}
}

// InvalidInput builds a caller-input failure.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: ErrKindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure, tagging the affected service.
func Internal(service string, err error) *Error {
	return &Error{Kind: ErrKindInternal, Service: service, Err: err}
}

// KindOf extracts the ErrorKind from an error chain; unrecognized errors
// report ErrKindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrKindInternal
}

// IsUnknownService reports whether err is an unknown-service failure.
func IsUnknownService(err error) bool {
	return KindOf(err) == ErrKindUnknownService
}
