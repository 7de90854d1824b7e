// Package apperr defines the typed errors returned by core operations.
// The HTTP boundary translates each kind to a status code and the shared
// error envelope; nothing else inspects messages.
package apperr

import "errors"

// Kind classifies an operation failure.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindConflict
	KindUnauthorized
	KindNotFound
)

// Error carries a kind, a human-readable message, and optional structured
// detail (e.g. the offending field names). Detail values must never contain
// secrets such as submitted passwords.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	err     error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// BadRequest reports missing or invalid request fields.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// BadRequestWith is BadRequest with structured detail.
func BadRequestWith(message string, details map[string]any) *Error {
	return &Error{Kind: KindBadRequest, Message: message, Details: details}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// ConflictWith is Conflict with structured detail.
func ConflictWith(message string, details map[string]any) *Error {
	return &Error{Kind: KindConflict, Message: message, Details: details}
}

// Unauthorized reports a missing, invalid, or expired credential.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// NotFound reports a direct lookup that matched nothing.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Internal wraps an infrastructure failure behind a generic message so raw
// store or signer errors never leak to callers.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal for
// anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
