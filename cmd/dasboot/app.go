// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/homeops/dasboot/internal/bootstrap"
	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/issue"
	"github.com/homeops/dasboot/internal/paths"
	"github.com/homeops/dasboot/internal/shell"
)

type (
	// App is the composition root for the CLI layer. Every command handler
	// receives it; nothing is read from package-level state. Settings, the
	// logger and the resolved directories are filled in by the root
	// command's PersistentPreRunE.
	App struct {
		fs        afero.Fs
		lookupEnv paths.LookupEnvFunc
		goos      string
		stdin     io.Reader
		stdout    io.Writer
		stderr    io.Writer
		// guideStyle is the glamour style used for issue guides.
		guideStyle string

		verbose  bool
		settings config.Settings
		logger   *slog.Logger
		dirs     paths.WellKnown
	}

	// Dependencies are the injection points for NewApp. Nil fields are
	// replaced with the running process's defaults.
	Dependencies struct {
		FS        afero.Fs
		LookupEnv paths.LookupEnvFunc
		GOOS      string
		Stdin     io.Reader
		Stdout    io.Writer
		Stderr    io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	if deps.LookupEnv == nil {
		deps.LookupEnv = os.LookupEnv
	}
	if deps.GOOS == "" {
		deps.GOOS = runtime.GOOS
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{
		fs:         deps.FS,
		lookupEnv:  deps.LookupEnv,
		goos:       deps.GOOS,
		stdin:      deps.Stdin,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		guideStyle: "dark",
		logger:     slog.Default(),
	}
}

// init loads the tool's own settings, installs the logger and resolves the
// well-known directories.
func (a *App) init(cmd *cobra.Command) error {
	settings, err := config.LoadSettings(cmd.Flags())
	if err != nil {
		return err
	}
	a.settings = settings
	a.logger = newLogger(a.stderr, settings.LogLevel)
	slog.SetDefault(a.logger)

	dirs, err := paths.Resolve(a.lookupEnv)
	if err != nil {
		return a.fail(cmd, issue.NewErrorContext().
			WithOperation("resolve directories").
			WithSuggestion("set HOME to your home directory").
			Wrap(err).
			BuildError())
	}
	a.dirs = dirs.WithOverrides(settings.ConfigDir, settings.DataDir)
	a.logger.Debug("resolved directories",
		"app-config", a.dirs.Path(paths.AppConfig),
		"app-data", a.dirs.Path(paths.AppData))
	return nil
}

// newLogger returns a slog logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, level string) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Prefix: "dasboot",
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		handler.SetLevel(lvl)
	}
	return slog.New(handler)
}

// loadConfig builds the cascade and turns load failures into actionable
// errors that point at the matching guide.
func (a *App) loadConfig() (*config.Cascade, error) {
	cfg, err := bootstrap.Load(a.fs, a.dirs, a.goos, config.WithLogger(a.logger))
	if err == nil {
		return cfg, nil
	}

	ec := issue.NewErrorContext().WithOperation("load configuration").Wrap(err)
	var loadErr *config.LoadError
	switch {
	case errors.As(err, &loadErr) && loadErr.Layer == config.BaseLayerName && errors.Is(err, fs.ErrNotExist):
		ec.WithResource(loadErr.Path).
			WithIssue(issue.BaseLayerMissingId).
			WithSuggestion("Run 'dasboot config init' to write the default base layer")
	case errors.As(err, &loadErr) && loadErr.Path == "":
		ec.WithIssue(issue.SchemaViolationId).
			WithSuggestion("Fix the offending key with 'dasboot config set' or in the layer that sets it")
	case errors.As(err, &loadErr):
		ec.WithResource(loadErr.Path).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check the file for syntax errors")
	default:
		ec.WithIssue(issue.SchemaViolationId).
			WithSuggestion("Run 'dasboot config show' to see which layer sets each key")
	}
	return nil, ec.BuildError()
}

// userShell resolves the user's shell. The error is kept rather than
// returned: only steps that run through the shell fail on it.
func (a *App) userShell() (shell.Resolution, error) {
	sh, err := shell.Locate(a.lookupEnv)
	if err != nil {
		a.logger.Debug("user shell unavailable", "error", err)
	}
	return sh, err
}

// fail renders err to stderr, with its guide in verbose mode, silences
// cobra's own error output and returns an ExitError wrapping err.
func (a *App) fail(cmd *cobra.Command, err error) error {
	return a.failWithCode(cmd, err, 1)
}

func (a *App) failWithCode(cmd *cobra.Command, err error, code int) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	fmt.Fprintf(a.stderr, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, a.verbose))

	var ae *issue.ActionableError
	if a.verbose && errors.As(err, &ae) && ae.Issue != 0 {
		if guide := issue.Get(ae.Issue); guide != nil {
			rendered, renderErr := guide.Render(a.guideStyle)
			if renderErr != nil {
				a.logger.Warn("failed to render issue guide", "issue", ae.Issue, "error", renderErr)
			} else {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	return &ExitError{Code: code, Err: err}
}
