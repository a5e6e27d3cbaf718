// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"time"

	"github.com/spf13/cobra"

	"github.com/homeops/dasboot/internal/bootstrap"
	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/hostinfo"
	"github.com/homeops/dasboot/internal/issue"
	"github.com/homeops/dasboot/internal/paths"
	"github.com/homeops/dasboot/internal/watch"
)

// newConfigCommand creates the `dasboot config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage dasboot configuration",
		Long: `Manage dasboot configuration.

Values are merged from these layers, later ones winning:
  - planner defaults built into dasboot
  - default.toml in the app config directory (required)
  - config.toml in the app config directory (written by 'config set')
  - .chezmoidata.toml or .chezmoidata.yaml in the dotfiles source
  - host.json, the inventory written by the host-info step`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default base layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, app, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing default.toml")

	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the merged configuration and where each value comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one merged value, or every value below a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getConfigValue(cmd, app, args[0])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in config.toml",
		Long: `Set a value in config.toml. The value is read as TOML when it parses as
one (true, 42, ["git", "jq"]) and as a plain string otherwise. The previous
file is backed up before it is replaced.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd, app, args[0], args[1])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a value from config.toml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return unsetConfigValue(cmd, app, args[0])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			showConfigPath(app)
			return nil
		},
	})

	var debounce time.Duration
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the configuration whenever a layer file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchConfig(cmd, app, debounce)
		},
	}
	watchCmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before reloading (default 500ms)")
	cfgCmd.AddCommand(watchCmd)

	return cfgCmd
}

func initConfig(cmd *cobra.Command, app *App, force bool) error {
	appConfig := app.dirs.Path(paths.AppConfig)
	path, written, err := config.WriteBase(app.fs, appConfig, force)
	if err != nil {
		return app.fail(cmd, issue.NewErrorContext().
			WithOperation("write the base layer").
			WithResource(path).
			Wrap(err).
			BuildError())
	}
	if !written {
		fmt.Fprintf(app.stdout, "%s %s already exists (use --force to overwrite)\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfig(cmd *cobra.Command, app *App) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return app.fail(cmd, err)
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)
	for _, name := range cfg.Layers() {
		layer, _ := cfg.Layer(name)
		source := layer.Path
		if source == "" {
			source = "(built in)"
		}
		fmt.Fprintf(app.stdout, "%s %s %s\n", SubtitleStyle.Render("layer"), CmdStyle.Render(pad(name, 8)), source)
	}
	fmt.Fprintln(app.stdout)

	for _, key := range cfg.Keys() {
		v, _ := cfg.Get(key)
		text, err := config.FormatValue(v)
		if err != nil {
			text = fmt.Sprintf("%v", v)
		}
		origin, _ := cfg.Origin(key)
		fmt.Fprintf(app.stdout, "%s = %s %s\n", CmdStyle.Render(key), SuccessStyle.Render(text), SubtitleStyle.Render("# "+origin))
	}
	return nil
}

func getConfigValue(cmd *cobra.Command, app *App, key string) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return app.fail(cmd, err)
	}

	if v, ok := cfg.Get(key); ok {
		if list, isList := v.([]string); isList {
			for _, item := range list {
				fmt.Fprintln(app.stdout, item)
			}
			return nil
		}
		if s, isString := v.(string); isString {
			fmt.Fprintln(app.stdout, s)
			return nil
		}
		text, err := config.FormatValue(v)
		if err != nil {
			return app.fail(cmd, err)
		}
		fmt.Fprintln(app.stdout, text)
		return nil
	}

	section := cfg.Section(key)
	if len(section) == 0 {
		return app.fail(cmd, issue.NewErrorContext().
			WithOperation("read configuration").
			Wrap(&config.MissingKeyError{Key: key}).
			WithSuggestion("Run 'dasboot config show' to list every key").
			BuildError())
	}
	for _, e := range section {
		text, err := config.FormatValue(e.Value)
		if err != nil {
			return app.fail(cmd, err)
		}
		fmt.Fprintf(app.stdout, "%s = %s\n", e.Key, text)
	}
	return nil
}

func setConfigValue(cmd *cobra.Command, app *App, key, value string) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return app.fail(cmd, err)
	}

	if err := cfg.Set(key, config.ParseValue(value)); err != nil {
		return app.fail(cmd, issue.NewErrorContext().
			WithOperation("set "+key).
			Wrap(err).
			BuildError())
	}
	if err := cfg.Validate(); err != nil {
		return app.fail(cmd, issue.NewErrorContext().
			WithOperation("set "+key).
			WithIssue(issue.SchemaViolationId).
			WithSuggestion("Nothing was written; check the value's type").
			Wrap(err).
			BuildError())
	}
	return saveConfig(cmd, app, cfg, fmt.Sprintf("Set %s = %s", key, value))
}

func unsetConfigValue(cmd *cobra.Command, app *App, key string) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return app.fail(cmd, err)
	}

	removed, err := cfg.Unset(key)
	if err != nil {
		return app.fail(cmd, issue.WrapWithOperation(err, "unset "+key))
	}
	if !removed {
		fmt.Fprintf(app.stdout, "%s %s is not set in %s\n", WarningStyle.Render("!"), key, cfg.MutablePath())
		return nil
	}
	return saveConfig(cmd, app, cfg, "Removed "+key)
}

func saveConfig(cmd *cobra.Command, app *App, cfg *config.Cascade, done string) error {
	backup, err := cfg.Save()
	if err != nil {
		ec := issue.NewErrorContext().
			WithOperation("save configuration").
			WithResource(cfg.MutablePath()).
			Wrap(err)
		if backup != "" {
			ec.WithSuggestion("The previous file was backed up to " + backup)
		}
		return app.fail(cmd, ec.BuildError())
	}
	fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓"), done)
	if backup != "" {
		fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("backup:"), backup)
	}
	return nil
}

func showConfigPath(app *App) {
	appConfig := app.dirs.Path(paths.AppConfig)
	fmt.Fprintf(app.stdout, "Config directory: %s\n", appConfig)
	fmt.Fprintf(app.stdout, "Base layer: %s\n", filepath.Join(appConfig, config.BaseFileName))
	fmt.Fprintf(app.stdout, "User layer: %s\n", filepath.Join(appConfig, config.UserFileName))
	fmt.Fprintf(app.stdout, "Host inventory: %s\n", hostinfo.Path(appConfig))
	fmt.Fprintf(app.stdout, "Dotfiles source (default): %s\n", bootstrap.DotfilesDir(app.dirs))
}

// layerFiles returns the files backing the cascade's layers plus the host
// inventory, which may not exist yet.
func layerFiles(app *App, cfg *config.Cascade) []string {
	var files []string
	for _, name := range cfg.Layers() {
		if layer, ok := cfg.Layer(name); ok && layer.Path != "" && name != hostinfo.LayerName {
			files = append(files, layer.Path)
		}
	}
	return append(files, hostinfo.Path(app.dirs.Path(paths.AppConfig)))
}

func watchConfig(cmd *cobra.Command, app *App, debounce time.Duration) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return app.fail(cmd, err)
	}

	current := cfg
	w, err := watch.New(watch.Config{
		Files:    layerFiles(app, cfg),
		Debounce: debounce,
		Logger:   app.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			next, err := app.loadConfig()
			if err != nil {
				fmt.Fprintf(app.stderr, "%s %s\n", WarningStyle.Render("!"), formatErrorForDisplay(err, app.verbose))
				return nil
			}
			keys := changedKeys(current, next)
			current = next
			fmt.Fprintf(app.stdout, "%s Reloaded after %d file change(s): %d key(s) changed\n",
				CmdStyle.Render("→"), len(changed), len(keys))
			for _, k := range keys {
				fmt.Fprintf(app.stdout, "  %s\n", k)
			}
			return nil
		},
	})
	if err != nil {
		return app.fail(cmd, issue.WrapWithOperation(err, "watch the configuration"))
	}

	fmt.Fprintf(app.stdout, "%s Watching %d file(s) (Ctrl+C to stop)\n", CmdStyle.Render("→"), len(w.Files()))
	for _, f := range w.Files() {
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render(f))
	}
	if err := w.Run(cmd.Context()); err != nil {
		return app.fail(cmd, issue.WrapWithOperation(err, "watch the configuration"))
	}
	return nil
}

// changedKeys lists the keys added, removed or changed between two loads.
func changedKeys(before, after *config.Cascade) []string {
	var keys []string
	for _, k := range after.Keys() {
		old, ok := before.Get(k)
		v, _ := after.Get(k)
		if !ok || !reflect.DeepEqual(old, v) {
			keys = append(keys, k)
		}
	}
	for _, k := range before.Keys() {
		if !after.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}
