// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/homeops/dasboot/internal/config"
	"github.com/homeops/dasboot/internal/paths"
)

func TestPrepareIsIdempotent(t *testing.T) {
	t.Parallel()

	dirs, err := paths.Resolve(func(key string) (string, bool) {
		if key == "HOME" {
			return "/home/u", true
		}
		return "", false
	})
	if err != nil {
		t.Fatal(err)
	}
	fsys := afero.NewMemMapFs()
	if _, _, err := config.WriteBase(fsys, dirs.Path(paths.AppConfig), false); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fsys, dirs, "linux", config.WithLogger(discard))
	if err != nil {
		t.Fatal(err)
	}

	first, err := Prepare(fsys, dirs, cfg, discard)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if first.HostFile != "/home/u/.config/home-ops/host.json" || first.EnvFile != "/home/u/.env" {
		t.Errorf("Prepare() = %+v", first)
	}
	if ok, _ := afero.Exists(fsys, first.HostFile); !ok {
		t.Error("host.json not created")
	}
	if ok, _ := afero.DirExists(fsys, "/home/u/.local/share/automation/home-ops/scripts/dotfiles"); !ok {
		t.Error("dotfiles source not created")
	}
	if len(first.EnvWritten) != 1 || first.EnvWritten[0] != "HOMEBREW_NO_ANALYTICS" {
		t.Errorf("EnvWritten = %v", first.EnvWritten)
	}

	if err := afero.WriteFile(fsys, first.HostFile, []byte(ubuntuHost), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := Prepare(fsys, dirs, cfg, discard)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.EnvWritten) != 0 {
		t.Errorf("second EnvWritten = %v, want none", second.EnvWritten)
	}
	if got, _ := afero.ReadFile(fsys, first.HostFile); string(got) != ubuntuHost {
		t.Error("Prepare must not truncate an existing inventory")
	}
}
