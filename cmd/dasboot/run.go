// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/homeops/dasboot/internal/bootstrap"
	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/issue"
	"github.com/homeops/dasboot/internal/pipeline"
)

type runFlags struct {
	only   []string
	dryRun bool
}

func newRunCommand(app *App) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bootstrap steps",
		Long: `Run the bootstrap steps listed in bootstrap.steps, one at a time, after
creating the well-known directories.

Every step runs even when an earlier one fails, unless --stop-on-failure is
given; the command exits non-zero when any step failed. Flags override the
bootstrap.* policy keys of the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(cmd, app, flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.only, "only", nil, "run only these steps or groups (comma-separated)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the plan without running it")
	cmd.Flags().Bool(config.SettingStopOnFailure, false, "stop after the first failing step")
	cmd.Flags().Bool(config.SettingReverse, false, "run the steps in reverse order")
	cmd.Flags().Duration(config.SettingStepTimeout, 0, "kill a step that runs longer than this (0 for no limit)")
	cmd.Flags().Bool(config.SettingSystemDirs, false, "also create the system directories (usually needs root)")
	return cmd
}

func runBootstrap(cmd *cobra.Command, app *App, flags runFlags) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return app.fail(cmd, err)
	}

	if !flags.dryRun {
		if _, err := app.ensureDirs(); err != nil {
			return app.fail(cmd, err)
		}
		if _, err := bootstrap.Prepare(app.fs, app.dirs, cfg, app.logger); err != nil {
			return app.fail(cmd, issue.WrapWithOperation(err, "prepare the workstation"))
		}
	}

	planner := app.planner(cfg)
	plan, err := planner.Plan(flags.only)
	if err != nil {
		return app.fail(cmd, planError(err))
	}
	opts, err := app.options(planner)
	if err != nil {
		return app.fail(cmd, planError(err))
	}

	if flags.dryRun {
		renderPlan(app.stdout, plan, opts)
		return nil
	}

	for _, o := range plan.Omitted {
		fmt.Fprintf(app.stdout, "%s %s: %s\n", WarningStyle.Render("-"), o.ID, o.Reason)
	}

	opts.Stdin, opts.Stdout, opts.Stderr = app.stdin, app.stdout, app.stderr
	res := pipeline.NewExecutor(app.logger).Run(cmd.Context(), plan.Steps, opts)
	renderResult(app.stdout, plan.Steps, res)

	if res.Status() == pipeline.Failed {
		failed := make([]string, 0, len(res.FailedSteps()))
		for _, sr := range res.FailedSteps() {
			failed = append(failed, sr.ID)
		}
		ec := issue.NewErrorContext().
			WithOperation("bootstrap").
			WithIssue(issue.StepsFailedId).
			Wrap(fmt.Errorf("steps failed: %s", strings.Join(failed, ", ")))
		if len(failed) > 0 {
			ec.WithSuggestion("Re-run the failed steps with 'dasboot run --only " + strings.Join(failed, ",") + "'")
		}
		return app.fail(cmd, ec.BuildError())
	}
	return nil
}

// planner returns a Planner for the running host.
func (a *App) planner(cfg *config.Cascade) *bootstrap.Planner {
	sh, shErr := a.userShell()
	p := bootstrap.NewPlanner(cfg, a.dirs, sh, shErr)
	p.FS = a.fs
	p.GOOS = a.goos
	p.Logger = a.logger
	return p
}

// options returns the cascade's pipeline policy with flag and environment
// settings applied over it.
func (a *App) options(p *bootstrap.Planner) (pipeline.Options, error) {
	opts, err := p.Options()
	if err != nil {
		return opts, err
	}
	if a.settings.StopOnFailure != nil {
		opts.StopOnFailure = *a.settings.StopOnFailure
	}
	if a.settings.Reverse != nil {
		opts.Reverse = *a.settings.Reverse
	}
	if a.settings.StepTimeout != nil {
		opts.StepTimeout = *a.settings.StepTimeout
	}
	return opts, nil
}

func planError(err error) error {
	ec := issue.NewErrorContext().WithOperation("plan the bootstrap").Wrap(err)
	var unknown *bootstrap.UnknownStepError
	switch {
	case errors.As(err, &unknown):
		ec.WithResource(unknown.Name).
			WithIssue(issue.UnknownStepId).
			WithSuggestion("Preview the known steps with 'dasboot run --dry-run'")
	case errors.Is(err, config.ErrConfigType), errors.Is(err, config.ErrMissingKey):
		ec.WithIssue(issue.SchemaViolationId).
			WithSuggestion("Run 'dasboot config show' to see which layer sets each key")
	}
	return ec.BuildError()
}
