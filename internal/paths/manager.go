// SPDX-License-Identifier: MPL-2.0

package paths

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/spf13/afero"
)

const dirPerm fs.FileMode = 0o755

// Manager makes sure the well-known directories exist.
type Manager struct {
	fs     afero.Fs
	dirs   WellKnown
	logger *slog.Logger

	// IncludeSystem lets EnsureAll create the system-wide directories. They
	// usually need root, so by default they are only checked.
	IncludeSystem bool
}

// NewManager creates a Manager. A nil logger uses slog.Default().
func NewManager(fsys afero.Fs, dirs WellKnown, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{fs: fsys, dirs: dirs, logger: logger}
}

// Dirs returns the directories EnsureAll works on.
func (m *Manager) Dirs() []Dir {
	dirs := make([]Dir, 0, len(m.dirs.General)+len(m.dirs.System)+len(m.dirs.App))
	dirs = append(dirs, m.dirs.General...)
	if m.IncludeSystem {
		dirs = append(dirs, m.dirs.System...)
	}
	return append(dirs, m.dirs.App...)
}

// EnsureAll creates every missing directory with its parents. Existing
// directories are left alone. A failure is logged and folded into the result
// without stopping the remaining directories. System directories outside
// IncludeSystem are only checked, never created. EnsureAll returns true only
// if every well-known directory exists afterwards.
func (m *Manager) EnsureAll() bool {
	ok := true
	for _, d := range m.Dirs() {
		ok = m.Ensure(d) && ok
	}
	if !m.IncludeSystem {
		for _, d := range m.dirs.System {
			ok = m.Exists(d) && ok
		}
	}
	return ok
}

// Ensure creates one directory if it is missing and reports whether it exists.
func (m *Manager) Ensure(d Dir) bool {
	log := m.logger.With("category", string(d.Category), "path", d.Path)

	found, ok := m.stat(d, log)
	if found || !ok {
		return found && ok
	}
	if err := m.fs.MkdirAll(d.Path, dirPerm); err != nil {
		log.Error("create directory", "error", err)
		return false
	}
	log.Info("created directory")
	return true
}

// Exists reports whether d is an existing directory without creating it.
func (m *Manager) Exists(d Dir) bool {
	log := m.logger.With("category", string(d.Category), "path", d.Path)

	found, ok := m.stat(d, log)
	if !found && ok {
		log.Warn("directory missing")
	}
	return found && ok
}

// stat reports whether d is an existing directory (found) and whether the
// path is usable at all (ok). A missing path is (false, true).
func (m *Manager) stat(d Dir, log *slog.Logger) (found, ok bool) {
	info, err := m.fs.Stat(d.Path)
	switch {
	case err == nil && info.IsDir():
		log.Info("directory exists")
		return true, true
	case err == nil:
		log.Error("path exists but is not a directory")
		return false, false
	case !errors.Is(err, fs.ErrNotExist):
		log.Error("stat directory", "error", err)
		return false, false
	}
	return false, true
}
