package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type titleRequest struct {
	Title string `validate:"required,max=10"`
	Ref   string `validate:"omitempty,uuid"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   titleRequest
		wantErr bool
		field   string
		message string
	}{
		{name: "valid", input: titleRequest{Title: "notes"}},
		{name: "missing title", input: titleRequest{}, wantErr: true, field: "title", message: "title is required"},
		{name: "title too long", input: titleRequest{Title: strings.Repeat("x", 11)}, wantErr: true, field: "title", message: "title must be at most 10 characters"},
		{name: "bad uuid", input: titleRequest{Title: "ok", Ref: "nope"}, wantErr: true, field: "ref", message: "ref must be a valid UUID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, tt.message, GetValidationFields(err)[tt.field])
		})
	}
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	err := ValidateStruct("plain string")
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}

func TestGetValidationFields_OtherError(t *testing.T) {
	assert.Nil(t, GetValidationFields(assert.AnError))
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()

	parsed, err := ParseUUID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseUUID("not-a-uuid")
	assert.EqualError(t, err, "invalid UUID format: not-a-uuid")
}
