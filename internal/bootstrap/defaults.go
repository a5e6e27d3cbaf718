// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"path/filepath"
	"time"

	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/hostinfo"
	"github.com/homeops/dasboot/internal/paths"
)

// Configuration keys read by the planner.
const (
	KeySteps         = "bootstrap.steps"
	KeyStopOnFailure = "bootstrap.stop_on_failure"
	KeyReverse       = "bootstrap.reverse"
	KeyStepTimeout   = "bootstrap.step_timeout"
	KeyConstants     = "bootstrap.constants"

	KeyHostInfoCommand = "hostinfo.command"
	KeyHostDistro      = "host.os.distro"

	KeyBrewInstall      = "brew.install"
	KeyBrewInstallerURL = "brew.installer_url"
	KeyBrewPath         = "brew.path"
	KeyBrewPackages     = "brew.packages"

	KeyAptPackages = "apt.packages"

	KeyKeePassXCEnabled = "keepassxc.enabled"
	KeyKeePassXCVersion = "keepassxc.version"

	KeyChezmoiEnabled = "chezmoi.enabled"
	KeyChezmoiSource  = "chezmoi.source"

	KeyCommands = "commands"
)

const (
	defaultInstallerURL     = "https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh"
	defaultKeePassXCVersion = "2.7.9"
)

// DefaultSteps is the catalog order used when bootstrap.steps is unset.
var DefaultSteps = []string{
	StepHostInfo,
	StepBrewInstall,
	GroupApt,
	StepBrewPackages,
	StepKeePassXC,
	GroupChezmoi,
	GroupCommands,
}

// BrewPath returns where the Homebrew installer puts brew on goos.
func BrewPath(goos string) string {
	if goos == "darwin" {
		return "/opt/homebrew/bin/brew"
	}
	return "/home/linuxbrew/.linuxbrew/bin/brew"
}

// DotfilesDir is the default chezmoi source directory.
func DotfilesDir(dirs paths.WellKnown) string {
	return filepath.Join(dirs.Path(paths.AppData), "scripts", "dotfiles")
}

// Defaults declares every key the planner reads with the value used when no
// layer sets it.
func Defaults(dirs paths.WellKnown, goos string) *config.Spec {
	return config.NewSpec().
		Define(KeySteps, DefaultSteps).
		Define(KeyStopOnFailure, false).
		Define(KeyReverse, false).
		Define(KeyStepTimeout, time.Duration(0)).
		Define(KeyHostInfoCommand, hostinfo.DefaultCommand).
		Define(KeyBrewInstall, true).
		Define(KeyBrewInstallerURL, defaultInstallerURL).
		Define(KeyBrewPath, BrewPath(goos)).
		Define(KeyBrewPackages, []string{}).
		Define(KeyAptPackages, []string{}).
		Define(KeyKeePassXCEnabled, true).
		Define(KeyKeePassXCVersion, defaultKeePassXCVersion).
		Define(KeyChezmoiEnabled, true).
		Define(KeyChezmoiSource, DotfilesDir(dirs))
}
