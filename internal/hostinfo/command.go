// SPDX-License-Identifier: MPL-2.0

package hostinfo

import (
	"errors"

	"github.com/homeops/dasboot/internal/process"
	"github.com/homeops/dasboot/internal/shell"
)

// DefaultCommand is the inventory command used when hostinfo.command is unset.
var DefaultCommand = []string{"npx", "systeminformation"}

// ErrNoCommand is returned when the configured inventory command is empty.
var ErrNoCommand = errors.New("host inventory command is empty")

// InventorySpec builds the inventory process: run directly in appConfig with stdout
// redirected to the inventory file, which must already exist.
func InventorySpec(command []string, appConfig string, env []string) (*process.Spec, error) {
	if len(command) == 0 {
		return nil, ErrNoCommand
	}
	return process.Build(shell.None, command[0], command[1:], process.Options{
		Dir:    appConfig,
		Stdout: Path(appConfig),
		Env:    env,
	})
}
