package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies authentication failures.
type ErrorKind string

const (
	KindConfiguration    ErrorKind = "configuration"
	KindMissingHeader    ErrorKind = "missing_header"
	KindMalformedHeader  ErrorKind = "malformed_header"
	KindMissingToken     ErrorKind = "missing_token"
	KindInvalidToken     ErrorKind = "invalid_token"
	KindTransientNetwork ErrorKind = "transient_network"
)

// Error is a tagged authentication error. Two Errors match under errors.Is
// when their kinds are equal.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

var (
	ErrConfiguration   = newError(KindConfiguration, "authentication is not configured", nil)
	ErrMissingHeader   = newError(KindMissingHeader, "missing authorization header", nil)
	ErrMalformedHeader = newError(KindMalformedHeader, "authorization header must use the Bearer scheme", nil)
	ErrMissingToken    = newError(KindMissingToken, "missing bearer token", nil)
	ErrInvalidToken    = newError(KindInvalidToken, "invalid or expired token", nil)
)

// TransientError marks a failure talking to a key set endpoint that may
// succeed if attempted again.
type TransientError struct {
	Endpoint string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s: %v", KindTransientNetwork, e.Endpoint, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" if err is not an auth error.
func KindOf(err error) ErrorKind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return KindTransientNetwork
	}
	return ""
}

// IsUnauthenticated reports whether err means the caller presented no usable
// credentials, as opposed to a server-side problem.
func IsUnauthenticated(err error) bool {
	switch KindOf(err) {
	case KindMissingHeader, KindMalformedHeader, KindMissingToken, KindInvalidToken:
		return true
	}
	return false
}
