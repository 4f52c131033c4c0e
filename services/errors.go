package services

import (
	"errors"
	"fmt"
)

// ErrorType is the category of a domain error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnavailable  ErrorType = "unavailable"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError is a categorized error with optional structured details
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// WithDetails returns a copy of e carrying details; sentinels are never mutated.
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	cp := *e
	cp.Details = details
	return &cp
}

var (
	ErrConversationNotFound = NewDomainError(ErrorTypeNotFound, "conversation not found", nil)
	ErrInvalidInput         = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrUnauthorized         = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrForbidden            = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrStoreUnavailable     = NewDomainError(ErrorTypeUnavailable, "conversation store is not configured", nil)
	ErrInternal             = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// GetErrorType returns the type of a domain error, or "" for other errors
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details of a domain error, or nil
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// IsNotFoundError reports whether err is a not found error
func IsNotFoundError(err error) bool { return GetErrorType(err) == ErrorTypeNotFound }

// IsValidationError reports whether err is a validation error
func IsValidationError(err error) bool { return GetErrorType(err) == ErrorTypeValidation }

// IsUnauthorizedError reports whether err is an unauthorized error
func IsUnauthorizedError(err error) bool { return GetErrorType(err) == ErrorTypeUnauthorized }

// IsForbiddenError reports whether err is a forbidden error
func IsForbiddenError(err error) bool { return GetErrorType(err) == ErrorTypeForbidden }

// IsConflictError reports whether err is a conflict error
func IsConflictError(err error) bool { return GetErrorType(err) == ErrorTypeConflict }

// IsUnavailableError reports whether err is an unavailable error
func IsUnavailableError(err error) bool { return GetErrorType(err) == ErrorTypeUnavailable }

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
