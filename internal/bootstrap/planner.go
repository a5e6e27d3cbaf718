// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cast"

	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/hostinfo"
	"github.com/homeops/dasboot/internal/paths"
	"github.com/homeops/dasboot/internal/pipeline"
	"github.com/homeops/dasboot/internal/process"
	"github.com/homeops/dasboot/internal/shell"
)

type (
	// Planner derives pipeline steps from a loaded cascade.
	Planner struct {
		Config *config.Cascade
		Dirs   paths.WellKnown
		// Shell is the user's shell; ShellErr is why it could not be
		// resolved. Only steps that need a shell fail on ShellErr.
		Shell    shell.Resolution
		ShellErr error

		// FS is consulted for installed tools. Defaults to the OS filesystem.
		FS afero.Fs
		// GOOS, GOARCH and LookPath default to the running host.
		GOOS     string
		GOARCH   string
		LookPath func(file string) (string, error)
		Logger   *slog.Logger
	}

	// Plan is the ordered list of steps to run plus the catalog entries that
	// were left out, with the reason for each.
	Plan struct {
		Steps   []pipeline.Step
		Omitted []Omission
	}

	// Omission records a step that does not apply.
	Omission struct {
		ID     string
		Reason string
	}
)

// NewPlanner returns a Planner for the running host.
func NewPlanner(cfg *config.Cascade, dirs paths.WellKnown, sh shell.Resolution, shellErr error) *Planner {
	return &Planner{Config: cfg, Dirs: dirs, Shell: sh, ShellErr: shellErr}
}

func (p *Planner) init() {
	if p.FS == nil {
		p.FS = afero.NewOsFs()
	}
	if p.GOOS == "" {
		p.GOOS = runtime.GOOS
	}
	if p.GOARCH == "" {
		p.GOARCH = runtime.GOARCH
	}
	if p.LookPath == nil {
		p.LookPath = exec.LookPath
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
}

// Environment returns bootstrap.constants as KEY=VALUE pairs in key order.
func (p *Planner) Environment() ([]string, error) {
	entries := p.Config.Section(KeyConstants)
	env := make([]string, 0, len(entries))
	for _, e := range entries {
		v, err := constantValue(e)
		if err != nil {
			return nil, err
		}
		env = append(env, e.Key+"="+v)
	}
	return env, nil
}

func constantValue(e config.Entry) (string, error) {
	v, err := cast.ToStringE(e.Value)
	if err != nil {
		return "", &config.TypeError{Key: KeyConstants + "." + e.Key, Want: "scalar", Value: e.Value, Err: err}
	}
	return v, nil
}

// Options returns the pipeline policy stored in the cascade.
func (p *Planner) Options() (pipeline.Options, error) {
	var opts pipeline.Options
	var errs []error
	var err error
	if opts.StopOnFailure, err = p.Config.GetBool(KeyStopOnFailure); err != nil {
		errs = append(errs, err)
	}
	if opts.Reverse, err = p.Config.GetBool(KeyReverse); err != nil {
		errs = append(errs, err)
	}
	if opts.StepTimeout, err = p.Config.GetDuration(KeyStepTimeout); err != nil {
		errs = append(errs, err)
	}
	return opts, errors.Join(errs...)
}

// Plan expands bootstrap.steps into pipeline steps. When only is non-empty,
// just the steps whose ID or group appears in it are kept. Unknown names in
// bootstrap.steps become invalid steps; unknown names in only are an error.
// Configuration type errors abort planning.
func (p *Planner) Plan(only []string) (Plan, error) {
	p.init()

	names, err := p.Config.GetStringList(KeySteps)
	if err != nil {
		return Plan{}, err
	}
	for _, name := range only {
		if !p.known(name) {
			return Plan{}, &UnknownStepError{Name: name}
		}
	}
	env, err := p.Environment()
	if err != nil {
		return Plan{}, err
	}

	var plan Plan
	seen := map[string]bool{}
	for _, name := range names {
		for _, id := range p.expand(name) {
			if seen[id] {
				continue
			}
			seen[id] = true
			if len(only) > 0 && !selected(only, name, id) {
				continue
			}

			step, omit, err := p.build(id, env)
			if err != nil {
				return Plan{}, err
			}
			if omit != "" {
				p.Logger.Debug("omitting step", "step", id, "reason", omit)
				plan.Omitted = append(plan.Omitted, Omission{ID: id, Reason: omit})
				continue
			}
			plan.Steps = append(plan.Steps, step)
		}
	}
	return plan, nil
}

// build returns the step for id. Configuration type errors are returned;
// every other failure becomes an invalid step.
func (p *Planner) build(id string, env []string) (pipeline.Step, string, error) {
	var spec *process.Spec
	var omit string
	var err error

	switch b, ok := catalog[id]; {
	case ok:
		spec, omit, err = b(p, env)
	case strings.HasPrefix(id, CommandStepPrefix):
		spec, omit, err = p.command(strings.TrimPrefix(id, CommandStepPrefix), env)
	default:
		return pipeline.InvalidStep(id, &UnknownStepError{Name: id}), "", nil
	}

	if errors.Is(err, config.ErrConfigType) || errors.Is(err, config.ErrMissingKey) {
		return pipeline.Step{}, "", err
	}
	if omit != "" {
		return pipeline.Step{}, omit, nil
	}
	return pipeline.FromBuild(id, spec, err), "", nil
}

// expand resolves a step or group name into step IDs.
func (p *Planner) expand(name string) []string {
	if ids, ok := groups[name]; ok {
		return ids
	}
	if name == GroupCommands {
		children := p.Config.Children(KeyCommands)
		ids := make([]string, len(children))
		for i, c := range children {
			ids[i] = CommandStepPrefix + c
		}
		return ids
	}
	return []string{name}
}

func (p *Planner) known(name string) bool {
	if _, ok := catalog[name]; ok {
		return true
	}
	if _, ok := groups[name]; ok || name == GroupCommands {
		return true
	}
	if cmd, ok := strings.CutPrefix(name, CommandStepPrefix); ok {
		return slices.Contains(p.Config.Children(KeyCommands), cmd)
	}
	return false
}

func selected(only []string, group, id string) bool {
	return slices.Contains(only, id) || slices.Contains(only, group)
}

// direct returns a factory that runs commands without a shell.
func (p *Planner) direct(env []string) process.Factory {
	return process.Factory{Shell: shell.None, Env: env}
}

// script builds a statement for the user's shell.
func (p *Planner) script(statement string, env []string) (*process.Spec, string, error) {
	if p.ShellErr != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrShellUnavailable, p.ShellErr)
	}
	f := process.Factory{Shell: p.Shell.Kind, ShellPath: p.Shell.Path, Env: env}
	spec, err := f.BuildScript(statement, process.Options{})
	return spec, "", err
}

// quote quotes s for the user's shell, falling back to POSIX sh rules.
func (p *Planner) quote(s string) string {
	kind := p.Shell.Kind
	if !kind.Wraps() {
		kind = shell.Sh
	}
	q, err := shell.Quote(kind, s)
	if err != nil {
		// unprintable input
		return "''"
	}
	return q
}

func (p *Planner) expandHome(path string) string { return expandHome(p.Dirs.Home, path) }

func expandHome(home, path string) string {
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}

func (p *Planner) brewInstalled() bool {
	brew, err := p.Config.GetString(KeyBrewPath)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(p.FS, brew)
	return err == nil && ok
}

// aptUnavailable returns why apt steps do not apply, or "" when they do.
// The host inventory decides when present; otherwise apt-get on PATH does.
func (p *Planner) aptUnavailable() string {
	if p.GOOS == "darwin" {
		return "apt is not available on macOS"
	}
	if p.Config.Has(KeyHostDistro) {
		distro, err := p.Config.GetString(KeyHostDistro)
		if err == nil && distro != "" {
			if hostinfo.DebianFamily(distro) {
				return ""
			}
			return fmt.Sprintf("unsupported distro %q", distro)
		}
	}
	if _, err := p.LookPath("apt-get"); err != nil {
		return "apt-get not found on PATH"
	}
	return ""
}
