// SPDX-License-Identifier: MPL-2.0

package process

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel wrapped by every build-time validation failure.
var ErrValidation = errors.New("invalid process spec")

type (
	// Field names the part of a process spec that failed validation.
	Field string

	// ValidationError reports a process spec that can never be launched as
	// described. It is returned before anything is started.
	ValidationError struct {
		Field  Field
		Value  string
		Reason string
	}
)

const (
	FieldCommand    Field = "command"
	FieldArgs       Field = "args"
	FieldDir        Field = "dir"
	FieldStdout     Field = "stdout"
	FieldStderr     Field = "stderr"
	FieldStdin      Field = "stdin"
	FieldShell      Field = "shell"
	FieldScript     Field = "script"
	FieldEnv        Field = "env"
	FieldShellQuote Field = "quoting"
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrValidation for errors.Is() compatibility.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field Field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}
