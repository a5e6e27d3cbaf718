// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"slices"
	"time"
)

const (
	OutcomeSucceeded    Outcome = "succeeded"
	OutcomeFailed       Outcome = "failed"
	OutcomeTimedOut     Outcome = "timed-out"
	OutcomeLaunchFailed Outcome = "launch-failed"
	OutcomeInvalid      Outcome = "invalid"
	OutcomeCanceled     Outcome = "canceled"

	AllSucceeded Status = "all-succeeded"
	Failed       Status = "failed"
)

type (
	// Outcome classifies how a step ended.
	Outcome string

	// Status is the aggregate verdict of a run.
	Status string

	// StepResult records one executed step. Index is the step's position in
	// the list passed to Run, independent of execution order.
	StepResult struct {
		Index    int
		ID       string
		ExitCode ExitCode
		Outcome  Outcome
		Err      error
		Duration time.Duration
	}

	// Result is the outcome of one pipeline run, in execution order.
	Result struct {
		steps   []StepResult
		skipped []int
	}
)

// Steps returns a copy of the step results in execution order.
func (r Result) Steps() []StepResult { return slices.Clone(r.steps) }

// Skipped returns the indexes of steps never started because the run stopped.
func (r Result) Skipped() []int { return slices.Clone(r.skipped) }

// Status is AllSucceeded when every executed step exited zero and no step
// was skipped, and Failed otherwise.
func (r Result) Status() Status {
	if len(r.skipped) > 0 {
		return Failed
	}
	for _, s := range r.steps {
		if !s.ExitCode.IsSuccess() {
			return Failed
		}
	}
	return AllSucceeded
}

// Succeeded reports whether Status is AllSucceeded.
func (r Result) Succeeded() bool { return r.Status() == AllSucceeded }

// FailedSteps returns the results whose exit code is non-zero.
func (r Result) FailedSteps() []StepResult {
	var failed []StepResult
	for _, s := range r.steps {
		if !s.ExitCode.IsSuccess() {
			failed = append(failed, s)
		}
	}
	return failed
}

// FirstFailure returns the first failing step in execution order.
func (r Result) FirstFailure() (StepResult, bool) {
	for _, s := range r.steps {
		if !s.ExitCode.IsSuccess() {
			return s, true
		}
	}
	return StepResult{}, false
}
