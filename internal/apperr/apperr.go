package apperr

import "errors"

// Kind classifies an error for callers that need to react to it (HTTP status,
// metrics labels) without matching individual sentinel values.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindValidation        Kind = "validation"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindUnauthorized      Kind = "unauthorized"
	KindInternal          Kind = "internal"
)

// Error is a sentinel error carrying a Kind.
type Error struct {
	kind Kind
	msg  string
}

// New creates a sentinel error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the error kind.
func (e *Error) Kind() Kind { return e.kind }

type kinded interface {
	Kind() Kind
}

// KindOf walks the error chain and returns the first kind found.
// Errors without a kind are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
