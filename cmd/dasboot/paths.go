// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/issue"
	"github.com/homeops/dasboot/internal/paths"
)

func newPathsCommand(app *App) *cobra.Command {
	pathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "List the well-known directories",
		Long: `List the well-known directories dasboot relies on: the XDG user
directories, the system directories and the app's own config and data roots.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listPaths(app)
			return nil
		},
	}

	ensureCmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create every missing well-known directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ensurePaths(cmd, app)
		},
	}
	ensureCmd.Flags().Bool(config.SettingSystemDirs, false, "also create the system directories (usually needs root)")

	pathsCmd.AddCommand(ensureCmd)
	return pathsCmd
}

func listPaths(app *App) {
	sections := []struct {
		title string
		dirs  []paths.Dir
	}{
		{"General", app.dirs.General},
		{"System", app.dirs.System},
		{"App", app.dirs.App},
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(app.stdout)
		}
		fmt.Fprintln(app.stdout, TitleStyle.Render(s.title))
		for _, d := range s.dirs {
			mark := SuccessStyle.Render("✓")
			if ok, _ := afero.DirExists(app.fs, d.Path); !ok {
				mark = SubtitleStyle.Render("·")
			}
			fmt.Fprintf(app.stdout, "  %s %s %s\n", mark, CmdStyle.Render(pad(string(d.Category), 13)), d.Path)
		}
	}
}

func ensurePaths(cmd *cobra.Command, app *App) error {
	n, err := app.ensureDirs()
	if err != nil {
		return app.fail(cmd, err)
	}
	fmt.Fprintf(app.stdout, "%s %d directories in place\n", SuccessStyle.Render("✓"), n)
	return nil
}

// ensureDirs creates the well-known directories and returns how many it
// manages. System directories are created only with the system-dirs setting.
func (a *App) ensureDirs() (int, error) {
	m := paths.NewManager(a.fs, a.dirs, a.logger)
	m.IncludeSystem = a.settings.SystemDirs
	if m.EnsureAll() {
		return len(m.Dirs()), nil
	}
	ec := issue.NewErrorContext().
		WithOperation("create the well-known directories").
		WithSuggestion("The log lines above name each directory that failed").
		Wrap(errors.New("one or more directories could not be created"))
	if !m.IncludeSystem {
		ec.WithSuggestion("Create missing system directories with --" + config.SettingSystemDirs + " (usually needs root)")
	}
	return 0, ec.BuildError()
}
