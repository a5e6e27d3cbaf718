// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs an ordered list of process specs one at a time and
// aggregates their exit statuses into a single verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/homeops/dasboot/internal/process"
)

// waitDelay bounds how long Wait keeps copying output after the process is
// killed, in case a grandchild still holds the pipes open.
const waitDelay = 2 * time.Second

type (
	// Options control one run.
	Options struct {
		// Reverse runs the steps back to front.
		Reverse bool
		// StopOnFailure halts the run after the first failing step. The
		// default runs every step and aggregates.
		StopOnFailure bool
		// StepTimeout kills a step that runs longer. Zero means no limit.
		// A step run under a timeout gets its own process group, so the
		// whole group is killed, and it cannot read from a terminal.
		StepTimeout time.Duration

		// Stdin, Stdout and Stderr are inherited by steps without a redirect.
		// nil Stdout and Stderr default to the parent's streams.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Executor runs pipelines. The zero value is not usable; use NewExecutor.
	Executor struct {
		logger *slog.Logger
	}
)

// NewExecutor creates an Executor. A nil logger uses slog.Default().
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Run executes steps sequentially and returns the aggregate result. Step
// failures of every kind are recorded in the result rather than returned.
// Canceling ctx kills the running step, records it as canceled and stops.
func (e *Executor) Run(ctx context.Context, steps []Step, opts Options) Result {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	order := make([]int, len(steps))
	for i := range order {
		if opts.Reverse {
			order[i] = len(steps) - 1 - i
		} else {
			order[i] = i
		}
	}

	var res Result
	started := time.Now()
	for pos, idx := range order {
		if ctx.Err() != nil {
			res.skipped = append(res.skipped, order[pos:]...)
			e.logger.Warn("pipeline canceled", "remaining", len(order)-pos)
			break
		}

		sr := e.runStep(ctx, idx, steps[idx], opts)
		res.steps = append(res.steps, sr)
		e.logStep(sr)

		if sr.Outcome == OutcomeCanceled || (opts.StopOnFailure && !sr.ExitCode.IsSuccess()) {
			res.skipped = append(res.skipped, order[pos+1:]...)
			if len(res.skipped) > 0 {
				e.logger.Warn("stopping pipeline", "after", sr.ID, "skipped", len(res.skipped))
			}
			break
		}
	}

	e.logger.Info("pipeline finished",
		"status", string(res.Status()),
		"steps", len(res.steps),
		"failed", len(res.FailedSteps()),
		"duration", time.Since(started).Round(time.Millisecond))
	return res
}

func (e *Executor) runStep(ctx context.Context, index int, step Step, opts Options) StepResult {
	sr := StepResult{Index: index, ID: step.ID}

	if step.Err != nil || step.Spec == nil {
		err := step.Err
		if err == nil {
			err = ErrNoSpec
		}
		sr.ExitCode, sr.Outcome, sr.Err = ExitInvalid, OutcomeInvalid, err
		return sr
	}

	stepCtx, cancel := ctx, context.CancelFunc(func() {})
	if opts.StepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, opts.StepTimeout)
	}
	defer cancel()

	e.logger.Info("running step", "step", step.ID, "index", index, "command", step.Spec.String())

	cmd, cleanup, err := step.Spec.Command(stepCtx, process.Stdio{In: opts.Stdin, Out: opts.Stdout, Err: opts.Stderr})
	if err != nil {
		sr.ExitCode, sr.Outcome = ExitLaunch, OutcomeLaunchFailed
		sr.Err = fmt.Errorf("%w: %w", ErrStepLaunch, err)
		return sr
	}
	defer cleanup()

	if opts.StepTimeout > 0 {
		killProcessGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			sr.ExitCode, sr.Outcome = ExitCanceled, OutcomeCanceled
			sr.Err = fmt.Errorf("%w: %w", ErrStepCanceled, context.Cause(ctx))
			return sr
		}
		sr.ExitCode, sr.Outcome = ExitLaunch, OutcomeLaunchFailed
		sr.Err = fmt.Errorf("%w: %w", ErrStepLaunch, err)
		return sr
	}
	err = cmd.Wait()
	sr.Duration = time.Since(start)

	switch {
	case err == nil:
		sr.ExitCode, sr.Outcome = 0, OutcomeSucceeded
	case ctx.Err() != nil:
		sr.ExitCode, sr.Outcome = ExitCanceled, OutcomeCanceled
		sr.Err = fmt.Errorf("%w: %w", ErrStepCanceled, context.Cause(ctx))
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded):
		sr.ExitCode, sr.Outcome = ExitTimeout, OutcomeTimedOut
		sr.Err = fmt.Errorf("%w after %s", ErrStepTimeout, opts.StepTimeout)
	default:
		sr.ExitCode, sr.Outcome = exitCodeOf(err), OutcomeFailed
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			sr.Err = err
		}
	}
	return sr
}

// exitCodeOf maps a Wait error to an exit code. Signals map to 128+n.
func exitCodeOf(err error) ExitCode {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	if sig, ok := signalOf(exitErr); ok {
		return ExitCode(128 + sig)
	}
	code := ExitCode(exitErr.ExitCode())
	if ok, _ := code.IsValid(); !ok || code == 0 {
		return 1
	}
	return code
}

func (e *Executor) logStep(sr StepResult) {
	attrs := []any{"step", sr.ID, "index", sr.Index, "exit_code", int(sr.ExitCode), "duration", sr.Duration.Round(time.Millisecond)}
	if sr.Err != nil {
		attrs = append(attrs, "error", sr.Err)
	}
	switch sr.Outcome {
	case OutcomeSucceeded:
		e.logger.Info("step succeeded", attrs...)
	case OutcomeFailed:
		e.logger.Warn("step failed", attrs...)
	default:
		e.logger.Error("step "+string(sr.Outcome), attrs...)
	}
}
