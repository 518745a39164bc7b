// Package apperr classifies failures so the HTTP layer can pick a status
// code and a user-safe message without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindUnknown is the zero value for errors that were never classified.
	KindUnknown Kind = iota
	// KindConfiguration covers missing credentials or unrecognized
	// provider names, detected at start-up.
	KindConfiguration
	// KindProvider covers vendor API or transport failures.
	KindProvider
	// KindStorage covers database failures.
	KindStorage
	// KindValidation covers missing or malformed request input.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindProvider:
		return "provider"
	case KindStorage:
		return "storage"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error carries a kind and a message safe to surface to the end user.
// Credentials must never appear in Msg.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with no underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. Returns nil when err is nil.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from anywhere in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
