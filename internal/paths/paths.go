// SPDX-License-Identifier: MPL-2.0

// Package paths resolves the well-known directories dasboot depends on and
// makes sure they exist.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppName is the directory name used under the XDG config and data roots.
const AppName = "home-ops"

const (
	Bin          Category = "bin"
	Lib          Category = "lib"
	Config       Category = "config"
	Data         Category = "data"
	State        Category = "state"
	Cache        Category = "cache"
	Runtime      Category = "runtime"
	SystemConfig Category = "system-config"
	SystemData   Category = "system-data"
	AppConfig    Category = "app-config"
	AppData      Category = "app-data"
)

// ErrNoHome is returned when the home directory cannot be determined.
var ErrNoHome = errors.New("home directory unknown")

type (
	// Category names one well-known directory.
	Category string

	// LookupEnvFunc reads a variable from an environment. It mirrors os.LookupEnv.
	LookupEnvFunc func(key string) (string, bool)

	// Dir is a well-known directory.
	Dir struct {
		Category Category
		Path     string
	}

	// WellKnown holds the two disjoint directory sets: general OS-standard
	// directories and the application's own roots.
	WellKnown struct {
		Home    string
		General []Dir
		System  []Dir
		App     []Dir
	}
)

// Resolve computes the well-known directories from XDG base-directory
// variables, falling back to the conventional locations under $HOME.
func Resolve(lookupEnv LookupEnvFunc) (WellKnown, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	home, ok := lookupEnv("HOME")
	if !ok || strings.TrimSpace(home) == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return WellKnown{}, fmt.Errorf("%w: %w", ErrNoHome, err)
		}
		home = h
	}

	userDir := func(envVar string, rel ...string) string {
		if v, ok := lookupEnv(envVar); ok && filepath.IsAbs(v) {
			return filepath.Clean(v)
		}
		return filepath.Join(append([]string{home}, rel...)...)
	}
	firstOf := func(envVar, fallback string) string {
		v, _ := lookupEnv(envVar)
		for _, p := range filepath.SplitList(v) {
			if filepath.IsAbs(p) {
				return filepath.Clean(p)
			}
		}
		return fallback
	}

	config := userDir("XDG_CONFIG_HOME", ".config")
	data := userDir("XDG_DATA_HOME", ".local", "share")

	return WellKnown{
		Home: home,
		General: []Dir{
			{Bin, userDir("XDG_BIN_HOME", ".local", "bin")},
			{Lib, userDir("XDG_LIB_HOME", ".local", "lib")},
			{Config, config},
			{Data, data},
			{State, userDir("XDG_STATE_HOME", ".local", "state")},
			{Cache, userDir("XDG_CACHE_HOME", ".cache")},
			{Runtime, userDir("XDG_RUNTIME_DIR", ".run")},
		},
		System: []Dir{
			{SystemConfig, firstOf("XDG_CONFIG_DIRS", "/etc/xdg")},
			{SystemData, firstOf("XDG_DATA_DIRS", "/usr/local/share")},
		},
		App: []Dir{
			{AppConfig, filepath.Join(config, AppName)},
			{AppData, filepath.Join(data, "automation", AppName)},
		},
	}, nil
}

// Path returns the directory for category, or "" when it is not part of w.
func (w WellKnown) Path(category Category) string {
	for _, set := range [][]Dir{w.General, w.System, w.App} {
		for _, d := range set {
			if d.Category == category {
				return d.Path
			}
		}
	}
	return ""
}

// All returns every directory: general, then system, then app.
func (w WellKnown) All() []Dir {
	all := make([]Dir, 0, len(w.General)+len(w.System)+len(w.App))
	all = append(all, w.General...)
	all = append(all, w.System...)
	return append(all, w.App...)
}

// WithOverrides replaces the app roots with non-empty overrides.
func (w WellKnown) WithOverrides(appConfig, appData string) WellKnown {
	app := make([]Dir, len(w.App))
	copy(app, w.App)
	for i := range app {
		switch {
		case app[i].Category == AppConfig && appConfig != "":
			app[i].Path = filepath.Clean(appConfig)
		case app[i].Category == AppData && appData != "":
			app[i].Path = filepath.Clean(appData)
		}
	}
	w.App = app
	return w
}
