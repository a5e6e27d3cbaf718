// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	BaseLayerName     = "base"
	UserLayerName     = "user"
	DotfilesLayerName = "dotfiles"

	BaseFileName = "default.toml"
	UserFileName = "config.toml"
)

// dotfilesDataNames are the chezmoi data files read as the dotfiles layer,
// in order of preference.
var dotfilesDataNames = []string{".chezmoidata.toml", ".chezmoidata.yaml", ".chezmoidata.yml"}

//go:embed default.toml
var defaultBase []byte

// DefaultBase returns the contents written by `dasboot config init`.
func DefaultBase() []byte {
	out := make([]byte, len(defaultBase))
	copy(out, defaultBase)
	return out
}

// StandardSources returns the file layers under appConfig plus the dotfiles
// layer found in dotfilesDir, in precedence order.
func StandardSources(fsys afero.Fs, appConfig, dotfilesDir string) []LayerSource {
	sources := []LayerSource{
		{Name: BaseLayerName, Path: filepath.Join(appConfig, BaseFileName), Required: true},
		{Name: UserLayerName, Path: filepath.Join(appConfig, UserFileName), Mutable: true},
	}
	if dotfilesDir != "" {
		sources = append(sources, LayerSource{
			Name:      DotfilesLayerName,
			Path:      dotfilesData(fsys, dotfilesDir),
			Canonical: true,
		})
	}
	return sources
}

func dotfilesData(fsys afero.Fs, dir string) string {
	for _, name := range dotfilesDataNames {
		path := filepath.Join(dir, name)
		if _, err := fsys.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			return path
		}
	}
	return filepath.Join(dir, dotfilesDataNames[0])
}

// WriteBase writes the default base layer to appConfig unless it exists.
// It reports whether a file was written.
func WriteBase(fsys afero.Fs, appConfig string, force bool) (string, bool, error) {
	path := filepath.Join(appConfig, BaseFileName)
	if !force {
		exists, err := afero.Exists(fsys, path)
		if err != nil {
			return path, false, err
		}
		if exists {
			return path, false, nil
		}
	}
	if err := fsys.MkdirAll(appConfig, 0o755); err != nil {
		return path, false, err
	}
	if err := afero.WriteFile(fsys, path, defaultBase, 0o644); err != nil {
		return path, false, err
	}
	return path, true, nil
}
