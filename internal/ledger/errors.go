package ledger

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the *Error carrying them holds the reason text.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
)

// Error is returned by every rejected ledger operation. Kind is one of the sentinels above.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }

func unauthorized(format string, args ...any) error {
	return &Error{Kind: ErrUnauthorized, Reason: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Reason: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Reason: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Reason: fmt.Sprintf(format, args...)}
}

// KindOf names the error kind of err, or returns "" when err is not a ledger error.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "AUTHORIZATION"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	}
	return ""
}
