// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStep is returned for a step or group name that is neither in
	// the catalog nor a configured command.
	ErrUnknownStep = errors.New("unknown bootstrap step")
	// ErrShellUnavailable is wrapped by the error of a step that needs the
	// user's shell when the shell could not be resolved.
	ErrShellUnavailable = errors.New("user shell unavailable")
)

// UnknownStepError names a step that cannot be planned.
type UnknownStepError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown bootstrap step %q", e.Name)
}

// Unwrap returns ErrUnknownStep for errors.Is() compatibility.
func (e *UnknownStepError) Unwrap() error { return ErrUnknownStep }
