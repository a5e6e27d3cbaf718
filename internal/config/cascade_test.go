// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/homeops/dasboot/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func threeLayers() []LayerSource {
	return []LayerSource{
		{Name: "base", Path: "/cfg/default.toml", Required: true},
		{Name: "user", Path: "/cfg/config.toml", Mutable: true},
		{Name: "dotfiles", Path: "/dots/.chezmoidata.toml", Canonical: true},
	}
}

func TestCascadePrecedence(t *testing.T) {
	t.Parallel()

	line := func(v string) string {
		if v == "" {
			return ""
		}
		return "k = \"" + v + "\"\n"
	}

	tests := []struct {
		name             string
		base, user, dots string
		want             string
	}{
		{name: "canonical wins", base: "base", user: "user", dots: "dots", want: "dots"},
		{name: "user wins without canonical", base: "base", user: "user", want: "user"},
		{name: "base when others omit", base: "base", want: "base"},
		{name: "canonical over base", base: "base", dots: "dots", want: "dots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := afero.NewMemMapFs()
			testutil.MustWriteFile(t, fsys, "/cfg/default.toml", line(tt.base))
			testutil.MustWriteFile(t, fsys, "/cfg/config.toml", line(tt.user))
			testutil.MustWriteFile(t, fsys, "/dots/.chezmoidata.toml", line(tt.dots))

			c, err := Load(fsys, threeLayers(), WithLogger(quietLogger()))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			got, err := c.GetString("k")
			if err != nil {
				t.Fatalf("GetString() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("k = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonicalAppliesLastRegardlessOfOrder(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/a.toml", "k = 'canonical'\n")
	testutil.MustWriteFile(t, fsys, "/b.toml", "k = 'file'\n")

	c, err := Load(fsys, []LayerSource{
		{Name: "canon", Path: "/a.toml", Canonical: true},
		{Name: "file", Path: "/b.toml"},
	}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := c.GetString("k"); got != "canonical" {
		t.Errorf("k = %q, want canonical", got)
	}
	if diff := cmp.Diff([]string{"file", "canon"}, c.Layers()); diff != "" {
		t.Errorf("Layers() mismatch (-want +got):\n%s", diff)
	}
}

func TestListsAreReplacedNotConcatenated(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/cfg/default.toml", "[apt]\npackages = ['curl', 'git']\n")
	testutil.MustWriteFile(t, fsys, "/cfg/config.toml", "apt.packages = ['zsh']\n")

	c, err := Load(fsys, threeLayers()[:2], WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.GetStringList("apt.packages")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"zsh"}, got); diff != "" {
		t.Errorf("apt.packages mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingBaseIsFatal(t *testing.T) {
	t.Parallel()

	_, err := Load(afero.NewMemMapFs(), threeLayers(), WithLogger(quietLogger()))
	if err == nil {
		t.Fatal("Load() succeeded without a base layer")
	}
	if !errors.Is(err, ErrConfigLoad) {
		t.Errorf("errors.Is(err, ErrConfigLoad) = false for %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("errors.Is(err, os.ErrNotExist) = false for %v", err)
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Layer != "base" {
		t.Errorf("error = %#v, want *LoadError for base", err)
	}
}

func TestMissingOptionalLayersAreEmpty(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/cfg/default.toml", "k = 'base'\n")

	c, err := Load(fsys, threeLayers(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, _ := c.GetString("k"); got != "base" {
		t.Errorf("k = %q, want base", got)
	}
	if ok, _ := afero.Exists(fsys, "/cfg/config.toml"); !ok {
		t.Error("mutable layer file was not created")
	}
	if ok, _ := afero.Exists(fsys, "/dots/.chezmoidata.toml"); ok {
		t.Error("canonical layer file was created")
	}
}

func TestUnparseableLayerIsLoadError(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/cfg/default.toml", "k = 'base'\n")
	testutil.MustWriteFile(t, fsys, "/cfg/config.toml", "this is = = not toml\n")

	_, err := Load(fsys, threeLayers(), WithLogger(quietLogger()))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Layer != "user" {
		t.Fatalf("Load() error = %v, want *LoadError for user", err)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/cfg/default.toml", `
zeta = 1
alpha = 2

[middle]
b = true
a = false
`)
	testutil.MustWriteFile(t, fsys, "/cfg/config.toml", "alpha = 3\nnew = 'x'\n")

	c, err := Load(fsys, threeLayers()[:2], WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"zeta", "alpha", "middle.b", "middle.a", "new"}
	if diff := cmp.Diff(want, c.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSlots(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/cfg/default.toml", "k = 'base'\n")
	c, err := Load(fsys, threeLayers(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	host := NewLayer("host", KindCanonical)
	if err := host.Set("host.os.distro", "Debian GNU/Linux"); err != nil {
		t.Fatal(err)
	}
	c.Merge(host)

	defaults := NewLayer(DefaultsLayerName, KindDefaults)
	if err := defaults.Set("k", "default"); err != nil {
		t.Fatal(err)
	}
	c.Merge(defaults)

	want := []string{"defaults", "base", "user", "dotfiles", "host"}
	if diff := cmp.Diff(want, c.Layers()); diff != "" {
		t.Errorf("Layers() mismatch (-want +got):\n%s", diff)
	}
	if got, _ := c.GetString("k"); got != "base" {
		t.Errorf("k = %q, defaults must not override base", got)
	}
	if origin, _ := c.Origin("host.os.distro"); origin != "host" {
		t.Errorf("Origin() = %q, want host", origin)
	}
}

func TestChildrenAndSection(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/cfg/default.toml", `
[commands.zx]
cmd = "npm"
args = ["i", "-g", "zx"]

[commands.gum]
cmd = "brew"

[bootstrap.constants]
B = "2"
A = 1
`)
	c, err := Load(fsys, threeLayers()[:1], WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"zx", "gum"}, c.Children("commands")); diff != "" {
		t.Errorf("Children() mismatch (-want +got):\n%s", diff)
	}
	want := []Entry{{Key: "B", Value: "2"}, {Key: "A", Value: int64(1)}}
	if diff := cmp.Diff(want, c.Section("bootstrap.constants")); diff != "" {
		t.Errorf("Section() mismatch (-want +got):\n%s", diff)
	}
}

func TestSetWritesMutableLayerOnly(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/cfg/default.toml", "k = 'base'\n")
	c, err := Load(fsys, threeLayers(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Set("k", "user"); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.GetString("k"); got != "user" {
		t.Errorf("k = %q after Set", got)
	}
	base, _ := c.Layer("base")
	if v, _ := base.Get("k"); v != "base" {
		t.Errorf("base layer changed to %v", v)
	}

	removed, err := c.Unset("k")
	if err != nil || !removed {
		t.Fatalf("Unset() = %v, %v", removed, err)
	}
	if got, _ := c.GetString("k"); got != "base" {
		t.Errorf("k = %q after Unset, want base", got)
	}

	if err := New(fsys).Set("k", "v"); !errors.Is(err, ErrNotMutable) {
		t.Errorf("Set() without mutable layer error = %v", err)
	}
}

func TestSetRejectsKeyConflicts(t *testing.T) {
	t.Parallel()

	l := NewLayer("user", KindFile)
	if err := l.Set("a.b", "x"); err != nil {
		t.Fatal(err)
	}
	if err := l.Set("a.b.c", "y"); !errors.Is(err, ErrKeyConflict) {
		t.Errorf("Set(a.b.c) error = %v, want ErrKeyConflict", err)
	}
	if err := l.Set("a", "y"); !errors.Is(err, ErrKeyConflict) {
		t.Errorf("Set(a) error = %v, want ErrKeyConflict", err)
	}
	if err := l.Set("a..b", "y"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Set(a..b) error = %v, want ErrInvalidKey", err)
	}
}

func TestSaveWritesBackupBeforeLive(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/cfg/default.toml", "k = 'base'\n")
	testutil.MustWriteFile(t, fsys, "/cfg/config.toml", "old = true\n")

	clock := testutil.NewFakeClock(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC))
	c, err := Load(fsys, threeLayers(), WithLogger(quietLogger()),
		WithBackupDir("/tmp/backups"), WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set("brew.packages", []string{"jq", "gum"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("name", "it's a \"test\""); err != nil {
		t.Fatal(err)
	}

	backup, err := c.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if want := "/tmp/backups/config-20260301T123000.000000000.toml"; backup != want {
		t.Errorf("backup path = %q, want %q", backup, want)
	}
	old, err := afero.ReadFile(fsys, backup)
	if err != nil {
		t.Fatal(err)
	}
	if string(old) != "old = true\n" {
		t.Errorf("backup content = %q", old)
	}

	// The saved file must round-trip through the loader, in the same order.
	reloaded, err := Load(fsys, threeLayers(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	user, _ := reloaded.Layer("user")
	if diff := cmp.Diff([]string{"old", "brew.packages", "name"}, user.Keys()); diff != "" {
		t.Errorf("saved key order mismatch (-want +got):\n%s", diff)
	}
	if got, _ := reloaded.GetString("name"); got != "it's a \"test\"" {
		t.Errorf("name = %q", got)
	}
	if got, _ := reloaded.GetStringList("brew.packages"); !cmp.Equal(got, []string{"jq", "gum"}) {
		t.Errorf("brew.packages = %q", got)
	}
	if ok, _ := afero.Exists(fsys, "/cfg/.config.toml.tmp"); ok {
		t.Error("temporary file left behind")
	}
}

// failingRenameFs fails every rename, standing in for a crash while
// replacing the live file.
type failingRenameFs struct{ afero.Fs }

func (failingRenameFs) Rename(string, string) error { return errors.New("disk full") }

func TestSaveFailureKeepsOriginalAndBackup(t *testing.T) {
	t.Parallel()

	mem := afero.NewMemMapFs()
	testutil.MustWriteFile(t, mem, "/cfg/default.toml", "k = 'base'\n")
	testutil.MustWriteFile(t, mem, "/cfg/config.toml", "old = true\n")
	fsys := failingRenameFs{Fs: mem}

	c, err := Load(fsys, threeLayers(), WithLogger(quietLogger()), WithBackupDir("/bak"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set("old", false); err != nil {
		t.Fatal(err)
	}

	backup, err := c.Save()
	if err == nil {
		t.Fatal("Save() succeeded with a failing rename")
	}
	live, _ := afero.ReadFile(mem, "/cfg/config.toml")
	if string(live) != "old = true\n" {
		t.Errorf("live file = %q, want original content", live)
	}
	saved, _ := afero.ReadFile(mem, backup)
	if string(saved) != "old = true\n" {
		t.Errorf("backup = %q, want original content", saved)
	}
}

func TestSchemaRejectsWrongShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "packages must be a list", content: "apt.packages = 'curl'\n", wantErr: "apt.packages"},
		{name: "stop_on_failure must be bool", content: "bootstrap.stop_on_failure = 'yes'\n", wantErr: "stop_on_failure"},
		{name: "command needs cmd", content: "commands.zx.args = ['x']\n", wantErr: "cmd"},
		{name: "command rejects unknown field", content: "commands.zx.cmd = 'npm'\ncommands.zx.dir = '/'\n", wantErr: "dir"},
		{name: "unknown shell", content: "commands.zx.cmd = 'npm'\ncommands.zx.shell = 'fish'\n", wantErr: "shell"},
		{name: "hostinfo command not empty", content: "hostinfo.command = []\n", wantErr: "hostinfo.command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := afero.NewMemMapFs()
			testutil.MustWriteFile(t, fsys, "/cfg/default.toml", tt.content)
			_, err := Load(fsys, threeLayers()[:1], WithLogger(quietLogger()))
			if !errors.Is(err, ErrConfigLoad) {
				t.Fatalf("Load() error = %v, want ErrConfigLoad", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaAcceptsDefaultBase(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	if _, wrote, err := WriteBase(fsys, "/cfg", false); err != nil || !wrote {
		t.Fatalf("WriteBase() = %v, %v", wrote, err)
	}
	c, err := Load(fsys, threeLayers(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Load() of default base error = %v", err)
	}
	if _, err := c.GetStringList("bootstrap.steps"); err != nil {
		t.Errorf("bootstrap.steps: %v", err)
	}

	if _, wrote, _ := WriteBase(fsys, "/cfg", false); wrote {
		t.Error("WriteBase() overwrote an existing file without force")
	}
}

func TestDotfilesYAMLLayer(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fsys, "/cfg/default.toml", "brew.packages = ['jq']\n")
	testutil.MustWriteFile(t, fsys, "/dots/.chezmoidata.yaml", `
brew:
  packages:
    - ripgrep
    - fd
git:
  email: ada@example.com
`)

	c, err := Load(fsys, StandardSources(fsys, "/cfg", "/dots"), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, _ := c.GetStringList("brew.packages")
	if diff := cmp.Diff([]string{"ripgrep", "fd"}, got); diff != "" {
		t.Errorf("brew.packages mismatch (-want +got):\n%s", diff)
	}
	if origin, _ := c.Origin("git.email"); origin != DotfilesLayerName {
		t.Errorf("Origin(git.email) = %q", origin)
	}
}
