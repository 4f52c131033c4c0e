package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.Nil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name:    "error with wrapped error",
			err:     NewDomainError(ErrorTypeNotFound, "conversation not found", errors.New("db error")),
			wantMsg: "not_found: conversation not found (db error)",
		},
		{
			name:    "error without wrapped error",
			err:     NewDomainError(ErrorTypeValidation, "invalid input", nil),
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	assert.Equal(t, baseErr, errors.Unwrap(NewDomainError(ErrorTypeInternal, "internal error", baseErr)))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same error type", NewDomainError(ErrorTypeNotFound, "not found", nil), ErrConversationNotFound, true},
		{"wrapped same type", fmt.Errorf("ctx: %w", WrapInternal("boom", nil)), ErrInternal, true},
		{"different error type", NewDomainError(ErrorTypeValidation, "validation", nil), ErrConversationNotFound, false},
		{"not a domain error", NewDomainError(ErrorTypeNotFound, "not found", nil), errors.New("regular error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetailsCopies(t *testing.T) {
	detailed := ErrInvalidInput.WithDetails(map[string]interface{}{"title": "too long"})

	assert.Equal(t, "too long", GetErrorDetails(detailed)["title"])
	assert.Nil(t, ErrInvalidInput.Details)
	assert.ErrorIs(t, detailed, ErrInvalidInput)
	assert.Nil(t, GetErrorDetails(errors.New("regular")))
}

func TestErrorTypePredicates(t *testing.T) {
	tests := []struct {
		name  string
		check func(error) bool
		yes   error
		no    error
	}{
		{"not found", IsNotFoundError, fmt.Errorf("wrapped: %w", ErrConversationNotFound), ErrInvalidInput},
		{"validation", IsValidationError, ErrInvalidInput, ErrConversationNotFound},
		{"unauthorized", IsUnauthorizedError, ErrUnauthorized, ErrForbidden},
		{"forbidden", IsForbiddenError, ErrForbidden, ErrUnauthorized},
		{"conflict", IsConflictError, NewDomainError(ErrorTypeConflict, "duplicate", nil), ErrInternal},
		{"unavailable", IsUnavailableError, ErrStoreUnavailable, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.yes))
			assert.False(t, tt.check(tt.no))
			assert.False(t, tt.check(errors.New("regular")))
			assert.False(t, tt.check(nil))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeNotFound, GetErrorType(ErrConversationNotFound))
	assert.Equal(t, ErrorTypeUnavailable, GetErrorType(ErrStoreUnavailable))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("regular")))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to connect", baseErr)

	var domainErr *DomainError
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, ErrorTypeInternal, domainErr.Type)
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}
