// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	// BackupDirName is created under the temp directory to hold backups.
	BackupDirName = "dasboot-backups"

	backupTimeFormat = "20060102T150405.000000000"
	userFileHeader   = "Managed by dasboot. Values here override default.toml."
)

type (
	// LayerSource describes where a layer comes from and how it behaves.
	LayerSource struct {
		Name string
		Path string
		// Required layers must exist; a missing optional layer is empty.
		Required bool
		// Mutable marks the layer that Set writes to and Save persists.
		// At most one source may be mutable; its file is created if missing.
		Mutable bool
		// Canonical layers apply after every non-canonical layer.
		Canonical bool
	}

	// Cascade is the ordered merge of every layer into one store.
	Cascade struct {
		fs        afero.Fs
		logger    *slog.Logger
		now       func() time.Time
		backupDir string

		layers  []*Layer
		mutable *Layer
		merged  *Layer
	}

	// Option configures a Cascade.
	Option func(*Cascade)
)

// WithLogger sets the logger used by Load and Save.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cascade) { c.logger = logger }
}

// WithClock sets the time source used to name backups.
func WithClock(now func() time.Time) Option {
	return func(c *Cascade) { c.now = now }
}

// WithBackupDir sets where Save writes backups. The default is
// <os temp dir>/dasboot-backups.
func WithBackupDir(dir string) Option {
	return func(c *Cascade) { c.backupDir = dir }
}

// New returns an empty cascade with no layers.
func New(fsys afero.Fs, opts ...Option) *Cascade {
	c := &Cascade{
		fs:        fsys,
		logger:    slog.Default(),
		now:       time.Now,
		backupDir: filepath.Join(os.TempDir(), BackupDirName),
		merged:    NewLayer("merged", KindFile),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads every source in order and merges them. A missing required
// layer, or any layer that fails to parse, is a *LoadError. The mutable
// layer's file is created empty when it does not exist yet.
func Load(fsys afero.Fs, sources []LayerSource, opts ...Option) (*Cascade, error) {
	c := New(fsys, opts...)

	for _, src := range sources {
		layer, err := c.loadSource(src)
		if err != nil {
			return nil, err
		}
		if src.Mutable {
			if c.mutable != nil {
				return nil, &LoadError{Layer: src.Name, Path: src.Path, Err: fmt.Errorf("layer %q is already mutable", c.mutable.Name)}
			}
			c.mutable = layer
		}
		c.insert(layer)
	}

	c.recompute()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cascade) loadSource(src LayerSource) (*Layer, error) {
	kind := KindFile
	if src.Canonical {
		kind = KindCanonical
	}
	log := c.logger.With("layer", src.Name, "path", src.Path)

	data, err := afero.ReadFile(c.fs, src.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && src.Required:
		return nil, &LoadError{Layer: src.Name, Path: src.Path, Err: err}
	case errors.Is(err, fs.ErrNotExist) && src.Mutable:
		if err := c.createEmpty(src.Path); err != nil {
			return nil, &LoadError{Layer: src.Name, Path: src.Path, Err: err}
		}
		log.Info("created empty config layer")
		data = nil
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("config layer not found, using an empty layer")
		data = nil
	case err != nil:
		return nil, &LoadError{Layer: src.Name, Path: src.Path, Err: err}
	}

	layer, err := Decode(src.Name, kind, FormatOf(src.Path), data)
	if err != nil {
		return nil, &LoadError{Layer: src.Name, Path: src.Path, Err: err}
	}
	layer.Path = src.Path
	log.Debug("loaded config layer", "keys", layer.Len())
	return layer, nil
}

func (c *Cascade) createEmpty(path string) error {
	if err := c.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(c.fs, path, nil, 0o644)
}

// Merge adds layer at its precedence slot: defaults before file layers,
// file layers before canonical layers, and after existing layers of the
// same kind. The merged view is recomputed.
func (c *Cascade) Merge(layer *Layer) {
	c.insert(layer)
	c.recompute()
}

func (c *Cascade) insert(layer *Layer) {
	i := slices.IndexFunc(c.layers, func(l *Layer) bool { return l.Kind > layer.Kind })
	if i < 0 {
		c.layers = append(c.layers, layer)
		return
	}
	c.layers = slices.Insert(c.layers, i, layer)
}

func (c *Cascade) recompute() {
	merged := NewLayer("merged", KindFile)
	for _, l := range c.layers {
		merged.overlay(l)
	}
	c.merged = merged
}

// Layers returns the layer names from lowest to highest precedence.
func (c *Cascade) Layers() []string {
	names := make([]string, len(c.layers))
	for i, l := range c.layers {
		names[i] = l.Name
	}
	return names
}

// Layer returns the named layer.
func (c *Cascade) Layer(name string) (*Layer, bool) {
	for _, l := range c.layers {
		if l.Name == name {
			return l, true
		}
	}
	return nil, false
}

// Get returns the merged value for key.
func (c *Cascade) Get(key string) (any, bool) {
	return c.merged.Get(key)
}

// Has reports whether any layer defines key.
func (c *Cascade) Has(key string) bool {
	_, ok := c.merged.Get(key)
	return ok
}

// Keys returns every merged key in first-seen order.
func (c *Cascade) Keys() []string {
	return c.merged.Keys()
}

// Origin returns the name of the highest-precedence layer defining key.
func (c *Cascade) Origin(key string) (string, bool) {
	for _, l := range slices.Backward(c.layers) {
		if _, ok := l.Get(key); ok {
			return l.Name, true
		}
	}
	return "", false
}

// Children returns the distinct next segments below prefix, in first-seen
// order. Children("commands") lists the names of the command table.
func (c *Cascade) Children(prefix string) []string {
	var out []string
	for _, key := range c.merged.keys {
		rest, ok := strings.CutPrefix(key, prefix+".")
		if !ok {
			continue
		}
		child, _, _ := strings.Cut(rest, ".")
		if !slices.Contains(out, child) {
			out = append(out, child)
		}
	}
	return out
}

// Set writes value to the mutable layer and updates the merged view.
func (c *Cascade) Set(key string, value any) error {
	if c.mutable == nil {
		return ErrNotMutable
	}
	if err := c.mutable.Set(key, value); err != nil {
		return err
	}
	c.recompute()
	return nil
}

// Unset removes key from the mutable layer and reports whether it was there.
func (c *Cascade) Unset(key string) (bool, error) {
	if c.mutable == nil {
		return false, ErrNotMutable
	}
	removed := c.mutable.Delete(key)
	c.recompute()
	return removed, nil
}

// MutablePath returns the file backing the mutable layer.
func (c *Cascade) MutablePath() string {
	if c.mutable == nil {
		return ""
	}
	return c.mutable.Path
}

// Save persists the mutable layer to its file. The current file is first
// copied to a timestamped backup; only after the backup is synced is the
// new content written to a temporary file and renamed over the original.
// It returns the backup path, or "" when there was nothing to back up.
func (c *Cascade) Save() (string, error) {
	if c.mutable == nil {
		return "", ErrNotMutable
	}
	path := c.mutable.Path

	data, err := Encode(c.mutable, userFileHeader)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}

	backup, err := c.backup(path)
	if err != nil {
		return "", fmt.Errorf("back up %s: %w", path, err)
	}

	if err := c.writeAtomic(path, data); err != nil {
		return backup, fmt.Errorf("write %s: %w", path, err)
	}
	c.logger.Info("saved config layer", "layer", c.mutable.Name, "path", path, "backup", backup)
	return backup, nil
}

func (c *Cascade) backup(path string) (string, error) {
	current, err := afero.ReadFile(c.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if err := c.fs.MkdirAll(c.backupDir, 0o700); err != nil {
		return "", err
	}
	ext := filepath.Ext(path)
	name := fmt.Sprintf("%s-%s%s", strings.TrimSuffix(filepath.Base(path), ext), c.now().UTC().Format(backupTimeFormat), ext)
	dest := filepath.Join(c.backupDir, name)

	if err := writeSynced(c.fs, dest, current, 0o600); err != nil {
		return "", err
	}
	return dest, nil
}

func (c *Cascade) writeAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := writeSynced(c.fs, tmp, data, 0o644); err != nil {
		c.fs.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := c.fs.Rename(tmp, path); err != nil {
		c.fs.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return err
	}
	return nil
}

func writeSynced(fsys afero.Fs, path string, data []byte, perm fs.FileMode) error {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck // write error takes precedence
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck // sync error takes precedence
		return err
	}
	return f.Close()
}
