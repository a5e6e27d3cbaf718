// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"strings"
	"testing"

	"github.com/homeops/dasboot/internal/testutil"
)

func TestHostShowWithoutInventory(t *testing.T) {
	h := newHarness(t)

	err := h.run("host", "show")
	if got := exitCode(t, err); got != 1 {
		t.Errorf("exit code = %d, want 1", got)
	}
	if !strings.Contains(h.stderr.String(), "dasboot host refresh") {
		t.Errorf("stderr does not point at host refresh:\n%s", h.stderr.String())
	}
}

func TestHostRefreshWritesInventory(t *testing.T) {
	h := newHarness(t)
	h.mustRun("config", "init")
	h.writeUser(`[hostinfo]
command = ["echo", '{"os": {"platform": "linux", "distro": "Ubuntu", "release": "24.04"}, "system": {"virtual": true}}']
`)

	h.mustRun("host", "refresh")
	out := h.stdout.String()
	for _, want := range []string{"Operating system", "Ubuntu", "24.04", "debian family: yes"} {
		if !strings.Contains(out, want) {
			t.Errorf("refresh output missing %q:\n%s", want, out)
		}
	}

	got := testutil.MustReadFile(t, h.fs, h.appConfig("host.json"))
	if !strings.Contains(got, `"distro": "Ubuntu"`) {
		t.Errorf("host.json = %q", got)
	}

	h.mustRun("config", "get", "host.os.distro")
	if got := h.stdout.String(); got != "Ubuntu\n" {
		t.Errorf("host.os.distro = %q, want the gathered distro", got)
	}
}

func TestHostRefreshReplacesCorruptInventory(t *testing.T) {
	h := newHarness(t)
	h.mustRun("config", "init")
	testutil.MustWriteFile(t, h.fs, h.appConfig("host.json"), `{"os": {"distro": `)
	h.writeUser(`[hostinfo]
command = ["echo", '{"os": {"distro": "Debian"}}']
`)

	h.mustRun("host", "refresh")
	if !strings.Contains(h.stdout.String(), "Debian") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestHostRefreshFailure(t *testing.T) {
	h := newHarness(t)
	h.mustRun("config", "init")
	h.writeUser(`[hostinfo]
command = ["sh", "-c", "exit 3"]
`)

	err := h.run("host", "refresh")
	if got := exitCode(t, err); got != 3 {
		t.Errorf("exit code = %d, want 3", got)
	}
	if !strings.Contains(h.stderr.String(), "hostinfo.command") {
		t.Errorf("stderr does not mention hostinfo.command:\n%s", h.stderr.String())
	}
}
