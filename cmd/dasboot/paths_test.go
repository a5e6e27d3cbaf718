// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestPathsEnsureAndList(t *testing.T) {
	h := newHarness(t)
	bin := filepath.Join(h.home, ".local", "bin")

	h.mustRun("paths")
	if !strings.Contains(h.stdout.String(), "· bin") {
		t.Errorf("missing directory not marked absent:\n%s", h.stdout.String())
	}

	h.mustRun("paths", "ensure")
	if !strings.Contains(h.stdout.String(), "9 directories in place") {
		t.Errorf("ensure stdout = %q", h.stdout.String())
	}
	if ok, _ := afero.DirExists(h.fs, bin); !ok {
		t.Errorf("%s not created", bin)
	}

	h.mustRun("paths")
	out := h.stdout.String()
	for _, want := range []string{"General", "System", "App", "✓ bin", bin, filepath.Join(h.system, "xdg")} {
		if !strings.Contains(out, want) {
			t.Errorf("paths output missing %q:\n%s", want, out)
		}
	}
}

func TestPathsEnsureSystemDirs(t *testing.T) {
	h := newHarness(t)
	missing := filepath.Join(h.system, "missing")
	h.env["XDG_DATA_DIRS"] = missing

	err := h.run("paths", "ensure")
	if got := exitCode(t, err); got != 1 {
		t.Errorf("exit code = %d, want 1", got)
	}
	if !strings.Contains(h.stderr.String(), "--system-dirs") {
		t.Errorf("stderr does not suggest --system-dirs:\n%s", h.stderr.String())
	}
	if ok, _ := afero.DirExists(h.fs, missing); ok {
		t.Errorf("%s created without --system-dirs", missing)
	}

	h.mustRun("paths", "ensure", "--system-dirs")
	if !strings.Contains(h.stdout.String(), "11 directories in place") {
		t.Errorf("ensure stdout = %q", h.stdout.String())
	}
	if ok, _ := afero.DirExists(h.fs, missing); !ok {
		t.Errorf("%s not created with --system-dirs", missing)
	}
}

func TestPathsHonorXDGOverrides(t *testing.T) {
	h := newHarness(t)
	custom := filepath.Join(h.home, "xdg-config")
	h.env["XDG_CONFIG_HOME"] = custom

	h.mustRun("config", "init")
	if ok, _ := afero.Exists(h.fs, filepath.Join(custom, "home-ops", "default.toml")); !ok {
		t.Errorf("base layer not written under XDG_CONFIG_HOME")
	}
}
