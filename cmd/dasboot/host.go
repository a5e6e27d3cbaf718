// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/homeops/dasboot/internal/bootstrap"
	"github.com/homeops/dasboot/internal/hostinfo"
	"github.com/homeops/dasboot/internal/issue"
	"github.com/homeops/dasboot/internal/paths"
	"github.com/homeops/dasboot/internal/pipeline"
)

func newHostCommand(app *App) *cobra.Command {
	hostCmd := &cobra.Command{
		Use:   "host",
		Short: "Inspect the host inventory",
		Long: `Inspect the host inventory in host.json. The inventory is written by the
host-info step and feeds the host.* keys of the configuration, which decide
for example whether apt steps apply.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	hostCmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Run the host-info step on its own",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return refreshHost(cmd, app)
		},
	})

	hostCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the facts read from host.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHost(cmd, app)
		},
	})
	return hostCmd
}

func refreshHost(cmd *cobra.Command, app *App) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return app.fail(cmd, err)
	}
	if _, err := bootstrap.Prepare(app.fs, app.dirs, cfg, app.logger); err != nil {
		return app.fail(cmd, issue.WrapWithOperation(err, "prepare the workstation"))
	}

	planner := app.planner(cfg)
	env, err := planner.Environment()
	if err != nil {
		return app.fail(cmd, planError(err))
	}
	command, err := cfg.GetStringList(bootstrap.KeyHostInfoCommand)
	if err != nil {
		return app.fail(cmd, planError(err))
	}
	spec, err := hostinfo.InventorySpec(command, app.dirs.Path(paths.AppConfig), env)
	step := pipeline.FromBuild(bootstrap.StepHostInfo, spec, err)

	opts, err := app.options(planner)
	if err != nil {
		return app.fail(cmd, planError(err))
	}
	opts.Stdin, opts.Stdout, opts.Stderr = app.stdin, app.stdout, app.stderr
	res := pipeline.NewExecutor(app.logger).Run(cmd.Context(), []pipeline.Step{step}, opts)
	if sr, failed := res.FirstFailure(); failed {
		cause := sr.Err
		if cause == nil {
			cause = fmt.Errorf("exit status %d", sr.ExitCode)
		}
		return app.failWithCode(cmd, issue.NewErrorContext().
			WithOperation("gather the host inventory").
			WithResource(strings.Join(command, " ")).
			WithSuggestion("Set hostinfo.command to a command that prints systeminformation JSON").
			Wrap(cause).
			BuildError(), int(sr.ExitCode))
	}
	return showHost(cmd, app)
}

func showHost(cmd *cobra.Command, app *App) error {
	path := hostinfo.Path(app.dirs.Path(paths.AppConfig))
	host, err := hostinfo.Load(app.fs, path)
	if err != nil {
		ec := issue.NewErrorContext().
			WithOperation("read the host inventory").
			WithResource(path).
			Wrap(err)
		if errors.Is(err, hostinfo.ErrNoData) || errors.Is(err, fs.ErrNotExist) {
			ec.WithIssue(issue.HostInventoryMissingId).
				WithSuggestion("Run 'dasboot host refresh' to gather it")
		}
		return app.fail(cmd, ec.BuildError())
	}
	renderHost(app.stdout, host)
	return nil
}

func renderHost(w io.Writer, h *hostinfo.Host) {
	section := func(title string, facts ...[2]string) {
		fmt.Fprintln(w, TitleStyle.Render(title))
		for _, f := range facts {
			if f[1] == "" {
				continue
			}
			fmt.Fprintf(w, "  %s %s\n", CmdStyle.Render(pad(f[0]+":", 14)), f[1])
		}
	}

	family := "no"
	if h.IsDebianFamily() {
		family = "yes"
	}
	section("Operating system",
		[2]string{"platform", h.OS.Platform},
		[2]string{"distro", h.OS.Distro},
		[2]string{"release", h.OS.Release},
		[2]string{"codename", h.OS.Codename},
		[2]string{"kernel", h.OS.Kernel},
		[2]string{"arch", h.OS.Arch},
		[2]string{"hostname", h.OS.Hostname},
		[2]string{"debian family", family},
	)
	fmt.Fprintln(w)
	section("System",
		[2]string{"manufacturer", h.System.Manufacturer},
		[2]string{"model", h.System.Model},
		[2]string{"virtual", fmt.Sprintf("%t", h.System.Virtual)},
		[2]string{"uuid", h.System.UUID},
	)
	fmt.Fprintln(w)
	section("Firmware",
		[2]string{"bios vendor", h.BIOS.Vendor},
		[2]string{"bios version", h.BIOS.Version},
		[2]string{"baseboard", h.Baseboard.Manufacturer},
		[2]string{"chassis", h.Chassis.Type},
	)
}
