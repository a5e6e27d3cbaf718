// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for dasboot.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "dasboot",
		Short: "Bootstrap a workstation from layered configuration",
		Long: TitleStyle.Render("dasboot") + SubtitleStyle.Render(" - Bootstrap a workstation from layered configuration") + `

dasboot installs packages, fetches tools and applies dotfiles by running an
ordered list of steps. What runs, and how, comes from a cascade of layers:
the base default.toml, your config.toml, your chezmoi data and the host
inventory gathered on the first run.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Write the default base layer:   dasboot config init
  2. Preview the steps:              dasboot run --dry-run
  3. Bootstrap:                      dasboot run

` + SubtitleStyle.Render("Examples:") + `
  dasboot run --only apt,chezmoi   Run only the apt and chezmoi steps
  dasboot config get brew.path     Print one merged value
  dasboot config set bootstrap.stop_on_failure true
  dasboot exec -- git --version    Run one command the way steps run`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&app.verbose, "verbose", "v", false, "show the error chain and remediation guides")
	pf.String(config.SettingLogLevel, "info", "log level (debug, info, warn, error)")
	pf.String(config.SettingConfigDir, "", "app config directory (default is $XDG_CONFIG_HOME/home-ops)")
	pf.String(config.SettingDataDir, "", "app data directory (default is $XDG_DATA_HOME/automation/home-ops)")

	root.SetIn(app.stdin)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.AddCommand(
		newRunCommand(app),
		newPathsCommand(app),
		newConfigCommand(app),
		newShellCommand(app),
		newExecCommand(app),
		newHostCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the command tree. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
