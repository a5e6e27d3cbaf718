// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"

	"github.com/homeops/dasboot/internal/process"
)

var (
	// ErrStepTimeout is wrapped by the error of a step killed at its deadline.
	ErrStepTimeout = errors.New("step timed out")
	// ErrStepLaunch is wrapped by the error of a step that could not start.
	ErrStepLaunch = errors.New("step could not be launched")
	// ErrStepCanceled is wrapped by the error of a step stopped by cancellation.
	ErrStepCanceled = errors.New("step canceled")
	// ErrNoSpec is recorded for a step built without a spec or an error.
	ErrNoSpec = errors.New("step has no process spec")
)

// Step is one entry of a pipeline: a runnable spec, or the error that
// prevented building one. Steps carrying an error are recorded as invalid
// when their turn comes; they are never skipped silently.
type Step struct {
	ID   string
	Spec *process.Spec
	Err  error
}

// NewStep returns a runnable step.
func NewStep(id string, spec *process.Spec) Step {
	return Step{ID: id, Spec: spec}
}

// InvalidStep returns a step that failed construction.
func InvalidStep(id string, err error) Step {
	return Step{ID: id, Err: err}
}

// FromBuild wraps the result of process.Build or process.BuildScript.
func FromBuild(id string, spec *process.Spec, err error) Step {
	if err != nil {
		return InvalidStep(id, err)
	}
	return NewStep(id, spec)
}
