// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/homeops/dasboot/internal/issue"
	"github.com/homeops/dasboot/internal/pipeline"
	"github.com/homeops/dasboot/internal/process"
	"github.com/homeops/dasboot/internal/shell"
)

// shellAuto selects the user's shell from $SHELL.
const shellAuto = "auto"

type execFlags struct {
	shell   string
	script  bool
	dir     string
	stdout  string
	stderr  string
	stdin   string
	env     []string
	timeout time.Duration
}

func newExecCommand(app *App) *cobra.Command {
	var flags execFlags
	cmd := &cobra.Command{
		Use:   "exec [flags] -- <command> [args...]",
		Short: "Run one command the way bootstrap steps run",
		Long: `Run one command the way bootstrap steps run: validated up front, optionally
wrapped as '<shell> -c', with redirects to existing files and an environment
overlay. The command's exit code becomes dasboot's exit code.

With --script the single argument is a complete shell statement, such as a
pipeline, run through the shell.`,
		Example: `  dasboot exec -- git --version
  dasboot exec --shell auto --script -- 'brew list | wc -l'
  dasboot exec --dir ~/src --stdout /tmp/out.log -- make`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execCommand(cmd, app, flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.shell, "shell", string(shell.None), "wrapping shell: auto, zsh, bash, sh or none")
	cmd.Flags().BoolVar(&flags.script, "script", false, "treat the single argument as a shell statement")
	cmd.Flags().StringVar(&flags.dir, "dir", "", "working directory (must exist)")
	cmd.Flags().StringVar(&flags.stdout, "stdout", "", "redirect stdout to this existing file")
	cmd.Flags().StringVar(&flags.stderr, "stderr", "", "redirect stderr to this existing file")
	cmd.Flags().StringVar(&flags.stdin, "stdin", "", "read stdin from this existing file")
	cmd.Flags().StringArrayVarP(&flags.env, "env", "e", nil, "set KEY=VALUE in the command's environment (repeatable)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "kill the command after this long (0 for no limit)")
	return cmd
}

func execCommand(cmd *cobra.Command, app *App, flags execFlags, args []string) error {
	factory, err := execFactory(app, flags.shell)
	if err != nil {
		return app.failWithCode(cmd, err, int(pipeline.ExitInvalid))
	}
	for _, kv := range flags.env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return app.failWithCode(cmd, issue.NewErrorContext().
				WithOperation("parse --env").
				WithResource(kv).
				WithSuggestion("Use KEY=VALUE").
				BuildError(), int(pipeline.ExitInvalid))
		}
	}

	opts := process.Options{
		Dir:    expandHomeArg(app, flags.dir),
		Stdout: expandHomeArg(app, flags.stdout),
		Stderr: expandHomeArg(app, flags.stderr),
		Stdin:  expandHomeArg(app, flags.stdin),
		Env:    flags.env,
	}

	var step pipeline.Step
	switch {
	case flags.script && len(args) != 1:
		return app.failWithCode(cmd, issue.NewErrorContext().
			WithOperation("run a script").
			WithSuggestion("Quote the whole statement as one argument").
			Wrap(fmt.Errorf("--script takes exactly one argument, got %d", len(args))).
			BuildError(), int(pipeline.ExitInvalid))
	case flags.script:
		spec, err := factory.BuildScript(args[0], opts)
		step = pipeline.FromBuild("exec", spec, err)
	default:
		spec, err := factory.Build(args[0], args[1:], opts)
		step = pipeline.FromBuild("exec", spec, err)
	}

	res := pipeline.NewExecutor(app.logger).Run(cmd.Context(), []pipeline.Step{step}, pipeline.Options{
		StepTimeout: flags.timeout,
		Stdin:       app.stdin,
		Stdout:      app.stdout,
		Stderr:      app.stderr,
	})

	sr, failed := res.FirstFailure()
	if !failed {
		return nil
	}
	if sr.Err == nil {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return &ExitError{Code: int(sr.ExitCode)}
	}
	return app.failWithCode(cmd, issue.NewErrorContext().
		WithOperation("run "+args[0]).
		Wrap(sr.Err).
		BuildError(), int(sr.ExitCode))
}

func execFactory(app *App, name string) (process.Factory, error) {
	if name == shellAuto {
		sh, err := app.userShell()
		if err != nil {
			return process.Factory{}, shellError(err)
		}
		return process.Factory{Shell: sh.Kind, ShellPath: sh.Path}, nil
	}
	kind, err := shell.ParseKind(name)
	if err != nil {
		return process.Factory{}, issue.NewErrorContext().
			WithOperation("select a shell").
			WithSuggestion("Use one of: auto, zsh, bash, sh, none").
			Wrap(err).
			BuildError()
	}
	return process.Factory{Shell: kind}, nil
}

// expandHomeArg expands a leading ~/ against the resolved home directory,
// for paths passed quoted or from scripts.
func expandHomeArg(app *App, path string) string {
	if path == "~" {
		return app.dirs.Home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(app.dirs.Home, rest)
	}
	return path
}
