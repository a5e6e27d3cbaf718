// SPDX-License-Identifier: MPL-2.0

package paths

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/homeops/dasboot/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()

	w, err := Resolve(testutil.Env(map[string]string{"HOME": "/home/ada"}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := map[Category]string{
		Bin:          "/home/ada/.local/bin",
		Lib:          "/home/ada/.local/lib",
		Config:       "/home/ada/.config",
		Data:         "/home/ada/.local/share",
		State:        "/home/ada/.local/state",
		Cache:        "/home/ada/.cache",
		Runtime:      "/home/ada/.run",
		SystemConfig: "/etc/xdg",
		SystemData:   "/usr/local/share",
		AppConfig:    "/home/ada/.config/home-ops",
		AppData:      "/home/ada/.local/share/automation/home-ops",
	}
	got := make(map[Category]string)
	for _, d := range w.All() {
		got[d.Category] = d.Path
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveHonorsXDG(t *testing.T) {
	t.Parallel()

	w, err := Resolve(testutil.Env(map[string]string{
		"HOME":            "/home/ada",
		"XDG_CONFIG_HOME": "/cfg",
		"XDG_DATA_HOME":   "/data/",
		"XDG_DATA_DIRS":   "relative:/opt/share:/usr/share",
		"XDG_CACHE_HOME":  "not-absolute",
	}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	checks := map[Category]string{
		Config:     "/cfg",
		AppConfig:  "/cfg/home-ops",
		AppData:    "/data/automation/home-ops",
		SystemData: "/opt/share",
		Cache:      "/home/ada/.cache",
	}
	for cat, want := range checks {
		if got := w.Path(cat); got != want {
			t.Errorf("Path(%s) = %q, want %q", cat, got, want)
		}
	}
}

func TestWellKnownSetsAreDisjoint(t *testing.T) {
	t.Parallel()

	w, err := Resolve(testutil.Env(map[string]string{"HOME": "/home/ada"}))
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]Category)
	for _, d := range w.All() {
		if prev, dup := seen[d.Path]; dup {
			t.Errorf("%s and %s share path %q", prev, d.Category, d.Path)
		}
		seen[d.Path] = d.Category
	}
}

func TestWithOverrides(t *testing.T) {
	t.Parallel()

	w, err := Resolve(testutil.Env(map[string]string{"HOME": "/home/ada"}))
	if err != nil {
		t.Fatal(err)
	}
	o := w.WithOverrides("/tmp/cfg", "")
	if got := o.Path(AppConfig); got != "/tmp/cfg" {
		t.Errorf("AppConfig = %q", got)
	}
	if got := o.Path(AppData); got != w.Path(AppData) {
		t.Errorf("AppData changed to %q", got)
	}
	if w.Path(AppConfig) == "/tmp/cfg" {
		t.Error("WithOverrides mutated the receiver")
	}
}

// countingFs records every mutating call made through it.
type countingFs struct {
	afero.Fs
	mutations int
}

func (c *countingFs) Mkdir(name string, perm os.FileMode) error {
	c.mutations++
	return c.Fs.Mkdir(name, perm)
}

func (c *countingFs) MkdirAll(path string, perm os.FileMode) error {
	c.mutations++
	return c.Fs.MkdirAll(path, perm)
}

func (c *countingFs) Create(name string) (afero.File, error) {
	c.mutations++
	return c.Fs.Create(name)
}

func (c *countingFs) Remove(name string) error {
	c.mutations++
	return c.Fs.Remove(name)
}

func (c *countingFs) Chmod(name string, mode os.FileMode) error {
	c.mutations++
	return c.Fs.Chmod(name, mode)
}

func testDirs(root string) WellKnown {
	return WellKnown{
		General: []Dir{
			{Bin, filepath.Join(root, "home/.local/bin")},
			{Config, filepath.Join(root, "home/.config")},
		},
		System: []Dir{{SystemConfig, filepath.Join(root, "etc/xdg")}},
		App: []Dir{
			{AppConfig, filepath.Join(root, "home/.config/home-ops")},
			{AppData, filepath.Join(root, "home/.local/share/automation/home-ops")},
		},
	}
}

func TestEnsureAllIsIdempotent(t *testing.T) {
	t.Parallel()

	fsys := &countingFs{Fs: afero.NewMemMapFs()}
	m := NewManager(fsys, testDirs("/"), discardLogger())
	m.IncludeSystem = true

	if !m.EnsureAll() {
		t.Fatal("first EnsureAll() = false")
	}
	for _, d := range m.Dirs() {
		if ok, err := afero.DirExists(fsys, d.Path); err != nil || !ok {
			t.Errorf("%s not created (exists=%v, err=%v)", d.Path, ok, err)
		}
	}

	fsys.mutations = 0
	if !m.EnsureAll() {
		t.Fatal("second EnsureAll() = false")
	}
	if fsys.mutations != 0 {
		t.Errorf("second EnsureAll() made %d mutations, want 0", fsys.mutations)
	}
}

func TestEnsureAllSkipsSystemByDefault(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	m := NewManager(fsys, testDirs("/"), discardLogger())
	if m.EnsureAll() {
		t.Error("EnsureAll() = true with a missing system directory")
	}
	if ok, _ := afero.DirExists(fsys, "/etc/xdg"); ok {
		t.Error("system directory created without IncludeSystem")
	}

	m.IncludeSystem = true
	if !m.EnsureAll() {
		t.Error("EnsureAll() = false with IncludeSystem")
	}
	if ok, _ := afero.DirExists(fsys, "/etc/xdg"); !ok {
		t.Error("system directory not created with IncludeSystem")
	}
}

func TestEnsureAllChecksExistingSystemDirs(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/etc/xdg", 0o755); err != nil {
		t.Fatal(err)
	}
	m := NewManager(fsys, testDirs("/"), discardLogger())
	if !m.EnsureAll() {
		t.Error("EnsureAll() = false with the system directory in place")
	}

	if err := fsys.RemoveAll("/etc/xdg"); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fsys, "/etc/xdg", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if m.EnsureAll() {
		t.Error("EnsureAll() = true with a file in place of the system directory")
	}
}

func TestEnsureAllFoldsFailures(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	dirs := testDirs("/")
	// A regular file where a directory should be.
	if err := afero.WriteFile(fsys, dirs.General[0].Path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(fsys, dirs, discardLogger())
	if m.EnsureAll() {
		t.Fatal("EnsureAll() = true with a blocking file")
	}
	for _, d := range m.Dirs()[1:] {
		if ok, _ := afero.DirExists(fsys, d.Path); !ok {
			t.Errorf("%s skipped after an earlier failure", d.Path)
		}
	}
}

func TestEnsureAllReadOnly(t *testing.T) {
	t.Parallel()

	m := NewManager(afero.NewReadOnlyFs(afero.NewMemMapFs()), testDirs("/"), discardLogger())
	if m.EnsureAll() {
		t.Error("EnsureAll() = true on a read-only filesystem")
	}
}
