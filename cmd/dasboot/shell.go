// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/homeops/dasboot/internal/issue"
	"github.com/homeops/dasboot/internal/shell"
)

func newShellCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Show the shell that wraps bootstrap commands",
		Long: `Show the shell resolved from $` + shell.EnvVar + `. Steps that run a
statement rather than a program are executed as '<shell> -c <statement>'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := app.userShell()
			if err != nil {
				return app.fail(cmd, shellError(err))
			}
			fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("kind:"), sh.Kind)
			fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("path:"), sh.Executable())
			return nil
		},
	}
}

func shellError(err error) error {
	return issue.NewErrorContext().
		WithOperation("resolve your shell").
		WithIssue(issue.ShellNotFoundId).
		WithSuggestion("Set $" + shell.EnvVar + " to the path of zsh, bash or sh").
		Wrap(err).
		BuildError()
}
