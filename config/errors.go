package config

import (
	"errors"
	"strings"
)

// MissingVariablesError reports every required environment variable that was
// not set. It is fatal at startup and never retried.
type MissingVariablesError struct {
	Vars []string
}

func (e *MissingVariablesError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// IsMissingVariables reports whether err (or anything it wraps) is a MissingVariablesError.
func IsMissingVariables(err error) bool {
	var target *MissingVariablesError
	return errors.As(err, &target)
}
