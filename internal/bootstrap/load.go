// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"errors"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/hostinfo"
	"github.com/homeops/dasboot/internal/paths"
)

// Load builds the cascade for dirs: base and user layers under the app
// config directory, the dotfiles layer from the chezmoi source, the host
// layer when a readable inventory exists, and the planner defaults beneath
// all. An inventory that does not decode is skipped with a warning so the
// host-info step can replace it.
//
// The dotfiles location is itself configurable, so when base or user
// layers move chezmoi.source the cascade is loaded a second time from there.
func Load(fsys afero.Fs, dirs paths.WellKnown, goos string, opts ...config.Option) (*config.Cascade, error) {
	appConfig := dirs.Path(paths.AppConfig)
	dotfiles := DotfilesDir(dirs)

	cfg, err := config.Load(fsys, config.StandardSources(fsys, appConfig, dotfiles), opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Has(KeyChezmoiSource) {
		source, err := cfg.GetString(KeyChezmoiSource)
		if err != nil {
			return nil, err
		}
		source = expandHome(dirs.Home, source)
		if source != dotfiles {
			slog.Debug("reloading with dotfiles source", "source", source)
			if cfg, err = config.Load(fsys, config.StandardSources(fsys, appConfig, source), opts...); err != nil {
				return nil, err
			}
		}
	}

	host, err := hostinfo.LoadLayer(fsys, appConfig)
	if errors.Is(err, hostinfo.ErrCorrupt) {
		slog.Warn("skipping unreadable host inventory", "path", hostinfo.Path(appConfig), "error", err)
		host, err = nil, nil
	}
	if err != nil {
		return nil, &config.LoadError{Layer: hostinfo.LayerName, Path: hostinfo.Path(appConfig), Err: err}
	}
	if host != nil {
		cfg.Merge(host)
	}

	if err := Defaults(dirs, goos).Apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
