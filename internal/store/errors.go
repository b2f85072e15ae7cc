package store

import (
	"errors"
	"fmt"
)

// Error is a storage failure every backend reports in the same shape.
type Error struct {
	Kind    string // stable identifier, compared by Is
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so wrapped copies still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Message: msg, Err: e.Err}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Kind:    "not_found",
		Message: "document not found",
	}

	// ErrAlreadyExists reports a primary key or unique index collision.
	ErrAlreadyExists = &Error{
		Kind:    "already_exists",
		Message: "document already exists",
	}

	// ErrConflict reports a concurrent write that lost; the caller may retry.
	ErrConflict = &Error{
		Kind:    "conflict",
		Message: "concurrent modification",
	}

	ErrUnknownIndex = &Error{
		Kind:    "unknown_index",
		Message: "unknown index",
	}
)

// IndexConflict builds the ErrAlreadyExists returned for a unique index collision.
func IndexConflict(index, value string) error {
	return ErrAlreadyExists.WithMessage(fmt.Sprintf("index %s conflict on %q", index, value))
}
