// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"fmt"
	"strings"

	"github.com/homeops/dasboot/internal/hostinfo"
	"github.com/homeops/dasboot/internal/paths"
	"github.com/homeops/dasboot/internal/process"
	"github.com/homeops/dasboot/internal/shell"
)

// Step IDs of the built-in catalog.
const (
	StepHostInfo     = "host-info"
	StepBrewInstall  = "brew-install"
	StepAptUpdate    = "apt-update"
	StepAptInstall   = "apt-install"
	StepBrewPackages = "brew-packages"
	StepKeePassXC    = "keepassxc"
	StepChezmoiInit  = "chezmoi-init"
	StepChezmoiApply = "chezmoi-apply"
)

// Group names expand to several steps.
const (
	GroupApt      = "apt"
	GroupChezmoi  = "chezmoi"
	GroupCommands = "commands"
)

// CommandStepPrefix prefixes the ID of a step built from commands.<name>.
const CommandStepPrefix = "commands."

var groups = map[string][]string{
	GroupApt:     {StepAptUpdate, StepAptInstall},
	GroupChezmoi: {StepChezmoiInit, StepChezmoiApply},
}

// builder returns the step's spec, or a non-empty omit reason when the step
// does not apply to this host or configuration.
type builder func(p *Planner, env []string) (spec *process.Spec, omit string, err error)

var catalog = map[string]builder{
	StepHostInfo:     (*Planner).hostInfo,
	StepBrewInstall:  (*Planner).brewInstall,
	StepAptUpdate:    (*Planner).aptUpdate,
	StepAptInstall:   (*Planner).aptInstall,
	StepBrewPackages: (*Planner).brewPackages,
	StepKeePassXC:    (*Planner).keePassXC,
	StepChezmoiInit:  chezmoi("init"),
	StepChezmoiApply: chezmoi("apply"),
}

func (p *Planner) hostInfo(env []string) (*process.Spec, string, error) {
	command, err := p.Config.GetStringList(KeyHostInfoCommand)
	if err != nil {
		return nil, "", err
	}
	spec, err := hostinfo.InventorySpec(command, p.Dirs.Path(paths.AppConfig), env)
	return spec, "", err
}

func (p *Planner) brewInstall(env []string) (*process.Spec, string, error) {
	install, err := p.Config.GetBool(KeyBrewInstall)
	if err != nil {
		return nil, "", err
	}
	if !install {
		return nil, KeyBrewInstall + " is false", nil
	}
	if p.brewInstalled() {
		return nil, "brew is already installed", nil
	}
	url, err := p.Config.GetString(KeyBrewInstallerURL)
	if err != nil {
		return nil, "", err
	}
	return p.script(fmt.Sprintf("curl -fsSL %s | bash", p.quote(url)), append(env, "NONINTERACTIVE=1"))
}

func (p *Planner) aptUpdate(env []string) (*process.Spec, string, error) {
	if reason := p.aptUnavailable(); reason != "" {
		return nil, reason, nil
	}
	spec, err := p.direct(env).Build("sudo", []string{"apt-get", "-y", "update"}, process.Options{})
	return spec, "", err
}

func (p *Planner) aptInstall(env []string) (*process.Spec, string, error) {
	if reason := p.aptUnavailable(); reason != "" {
		return nil, reason, nil
	}
	pkgs, err := p.Config.GetStringList(KeyAptPackages)
	if err != nil {
		return nil, "", err
	}
	if len(pkgs) == 0 {
		return nil, KeyAptPackages + " is empty", nil
	}
	spec, err := p.direct(env).Build("sudo", append([]string{"apt-get", "-y", "install"}, pkgs...), process.Options{})
	return spec, "", err
}

func (p *Planner) brewPackages(env []string) (*process.Spec, string, error) {
	pkgs, err := p.Config.GetStringList(KeyBrewPackages)
	if err != nil {
		return nil, "", err
	}
	if len(pkgs) == 0 {
		return nil, KeyBrewPackages + " is empty", nil
	}
	brew, err := p.Config.GetString(KeyBrewPath)
	if err != nil {
		return nil, "", err
	}
	quoted := make([]string, len(pkgs))
	for i, pkg := range pkgs {
		quoted[i] = p.quote(pkg)
	}
	script := fmt.Sprintf(`eval "$(%s shellenv)" && brew update && brew upgrade && brew install %s`,
		p.quote(brew), strings.Join(quoted, " "))
	return p.script(script, env)
}

func (p *Planner) keePassXC(env []string) (*process.Spec, string, error) {
	enabled, err := p.Config.GetBool(KeyKeePassXCEnabled)
	if err != nil {
		return nil, "", err
	}
	if !enabled {
		return nil, KeyKeePassXCEnabled + " is false", nil
	}

	if p.GOOS != "darwin" {
		if reason := p.aptUnavailable(); reason != "" {
			return nil, reason, nil
		}
		spec, err := p.direct(env).Build("sudo", []string{"apt-get", "-y", "install", "keepassxc"}, process.Options{})
		return spec, "", err
	}

	version, err := p.Config.GetString(KeyKeePassXCVersion)
	if err != nil {
		return nil, "", err
	}
	arch := "x86_64"
	if p.GOARCH == "arm64" {
		arch = "arm64"
	}
	dmg := fmt.Sprintf("KeePassXC-%s-%s.dmg", version, arch)
	url := fmt.Sprintf("https://github.com/keepassxreboot/keepassxc/releases/download/%s/%s", version, dmg)
	script := strings.Join([]string{
		`cd "$(mktemp -d)"`,
		"curl -fsSLO " + p.quote(url),
		"curl -fsSLO " + p.quote(url+".DIGEST"),
		"shasum -a 256 -c " + p.quote(dmg+".DIGEST"),
		"hdiutil attach " + p.quote(dmg),
		"sudo cp -R /Volumes/KeePassXC/KeePassXC.app /Applications/",
		"hdiutil detach /Volumes/KeePassXC",
	}, " && ")
	return p.script(script, env)
}

func chezmoi(verb string) builder {
	return func(p *Planner, env []string) (*process.Spec, string, error) {
		enabled, err := p.Config.GetBool(KeyChezmoiEnabled)
		if err != nil {
			return nil, "", err
		}
		if !enabled {
			return nil, KeyChezmoiEnabled + " is false", nil
		}
		source, err := p.Config.GetString(KeyChezmoiSource)
		if err != nil {
			return nil, "", err
		}
		spec, err := p.direct(env).Build("chezmoi", []string{verb, "--source", p.expandHome(source)}, process.Options{})
		return spec, "", err
	}
}

// command builds commands.<name>. Commands run through the user's shell
// unless their shell key says otherwise.
func (p *Planner) command(name string, env []string) (*process.Spec, string, error) {
	key := func(field string) string { return KeyCommands + "." + name + "." + field }

	if p.Config.Has(key("enabled")) {
		enabled, err := p.Config.GetBool(key("enabled"))
		if err != nil {
			return nil, "", err
		}
		if !enabled {
			return nil, key("enabled") + " is false", nil
		}
	}

	cmd, err := p.Config.GetString(key("cmd"))
	if err != nil {
		return nil, "", err
	}
	var args []string
	if p.Config.Has(key("args")) {
		if args, err = p.Config.GetStringList(key("args")); err != nil {
			return nil, "", err
		}
	}
	var opts process.Options
	if p.Config.Has(key("working_dir")) {
		dir, err := p.Config.GetString(key("working_dir"))
		if err != nil {
			return nil, "", err
		}
		opts.Dir = p.expandHome(dir)
	}
	kind := "auto"
	if p.Config.Has(key("shell")) {
		if kind, err = p.Config.GetString(key("shell")); err != nil {
			return nil, "", err
		}
	}

	var factory process.Factory
	switch kind {
	case "auto":
		if p.ShellErr != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrShellUnavailable, p.ShellErr)
		}
		factory = process.Factory{Shell: p.Shell.Kind, ShellPath: p.Shell.Path}
	default:
		k, err := shell.ParseKind(kind)
		if err != nil {
			return nil, "", err
		}
		factory = process.Factory{Shell: k}
	}
	factory.Env = env
	spec, err := factory.Build(cmd, args, opts)
	return spec, "", err
}
