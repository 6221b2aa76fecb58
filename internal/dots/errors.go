package dots

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the recoverable rule violations a caller can hit.
// Handlers branch on the kind, never on the message text.
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION"
	KindAuthorization ErrorKind = "AUTHORIZATION"
	KindLifecycle     ErrorKind = "LIFECYCLE"
	KindCapacity      ErrorKind = "CAPACITY"
	KindNotFound      ErrorKind = "NOT_FOUND"
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Errorf builds a rule error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a rule error, or "" for any other error
// (including nil). Infrastructure errors are never rule errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
