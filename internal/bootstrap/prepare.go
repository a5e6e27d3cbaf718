// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/hostinfo"
	"github.com/homeops/dasboot/internal/paths"
)

// Prepared reports what Prepare created or wrote.
type Prepared struct {
	HostFile    string
	DotfilesDir string
	EnvFile     string
	// EnvWritten lists the constants appended to EnvFile.
	EnvWritten []string
}

// Prepare creates the files and directories that planned steps redirect
// into or read from, and appends the environment constants to ~/.env. It is
// idempotent: a second call creates nothing and appends nothing.
func Prepare(fsys afero.Fs, dirs paths.WellKnown, cfg *config.Cascade, logger *slog.Logger) (Prepared, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var out Prepared

	appConfig := dirs.Path(paths.AppConfig)
	if err := fsys.MkdirAll(appConfig, 0o755); err != nil {
		return out, fmt.Errorf("create %s: %w", appConfig, err)
	}
	out.HostFile = hostinfo.Path(appConfig)
	exists, err := afero.Exists(fsys, out.HostFile)
	if err != nil {
		return out, err
	}
	if !exists {
		if err := afero.WriteFile(fsys, out.HostFile, nil, 0o644); err != nil {
			return out, fmt.Errorf("create %s: %w", out.HostFile, err)
		}
		logger.Info("created host inventory file", "path", out.HostFile)
	}

	source, err := cfg.GetString(KeyChezmoiSource)
	if err != nil {
		return out, err
	}
	out.DotfilesDir = expandHome(dirs.Home, source)
	if err := fsys.MkdirAll(out.DotfilesDir, 0o755); err != nil {
		return out, fmt.Errorf("create %s: %w", out.DotfilesDir, err)
	}

	env, err := (&Planner{Config: cfg}).Environment()
	if err != nil {
		return out, err
	}
	out.EnvFile = filepath.Join(dirs.Home, EnvFileName)
	if out.EnvWritten, err = AppendEnv(fsys, out.EnvFile, env); err != nil {
		return out, fmt.Errorf("update %s: %w", out.EnvFile, err)
	}
	if len(out.EnvWritten) > 0 {
		logger.Info("appended constants", "path", out.EnvFile, "keys", out.EnvWritten)
	}
	return out, nil
}
