// SPDX-License-Identifier: MPL-2.0

// Package process builds validated, inert descriptions of external commands.
// A Spec does nothing until it is materialized into an *exec.Cmd by Command.
package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/homeops/dasboot/internal/shell"
)

type (
	// Spec is a runnable description of one external command. Specs are only
	// produced by Build and BuildScript, so every Spec has passed validation.
	Spec struct {
		command string
		args    []string
		argv    []string
		dir     string
		stdout  string
		stderr  string
		stdin   string
		env     []string
		shell   shell.Kind
	}

	// Stdio supplies the streams a Spec inherits when it has no redirect
	// target for them. nil values mean the null device.
	Stdio struct {
		In  io.Reader
		Out io.Writer
		Err io.Writer
	}
)

// Name returns the command name as supplied to Build.
func (s *Spec) Name() string { return s.command }

// Args returns a copy of the arguments as supplied to Build.
func (s *Spec) Args() []string { return slices.Clone(s.args) }

// Argv returns a copy of the final argument vector, including the wrapping
// shell invocation when the spec is shell-wrapped.
func (s *Spec) Argv() []string { return slices.Clone(s.argv) }

// Dir returns the working directory, or "" to inherit the caller's.
func (s *Spec) Dir() string { return s.dir }

// Shell returns the kind of shell the command is wrapped in.
func (s *Spec) Shell() shell.Kind { return s.shell }

// Env returns a copy of the environment overlay as KEY=VALUE pairs.
func (s *Spec) Env() []string { return slices.Clone(s.env) }

// Redirects returns the stdout, stderr and stdin redirect targets.
func (s *Spec) Redirects() (stdout, stderr, stdin string) {
	return s.stdout, s.stderr, s.stdin
}

// String renders the argv for display.
func (s *Spec) String() string {
	joined, err := shell.Join(shell.Sh, s.argv)
	if err != nil {
		return strings.Join(s.argv, " ")
	}
	return joined
}

// Command materializes the spec as an *exec.Cmd bound to ctx. Redirect
// targets are opened here (stdout and stderr are truncated); streams without
// a target fall back to stdio. The returned cleanup closes opened files and
// must be called once the command has exited.
func (s *Spec) Command(ctx context.Context, stdio Stdio) (*exec.Cmd, func(), error) {
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Dir = s.dir
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}
	cmd.Stdin = stdio.In
	cmd.Stdout = stdio.Out
	cmd.Stderr = stdio.Err

	var opened []*os.File
	cleanup := func() {
		for _, f := range opened {
			f.Close() //nolint:errcheck // redirect files are flushed by the child
		}
	}

	open := func(path string, flag int) (*os.File, error) {
		f, err := os.OpenFile(path, flag, 0)
		if err != nil {
			return nil, err
		}
		opened = append(opened, f)
		return f, nil
	}

	if s.stdin != "" {
		f, err := open(s.stdin, os.O_RDONLY)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cmd.Stdin = f
	}
	if s.stdout != "" {
		f, err := open(s.stdout, os.O_WRONLY|os.O_TRUNC)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cmd.Stdout = f
	}
	if s.stderr != "" {
		if s.stderr == s.stdout {
			cmd.Stderr = cmd.Stdout
		} else {
			f, err := open(s.stderr, os.O_WRONLY|os.O_TRUNC)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			cmd.Stderr = f
		}
	}

	return cmd, cleanup, nil
}

// IsValidationError reports whether err is a build-time validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
