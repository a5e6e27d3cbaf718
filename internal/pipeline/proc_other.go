// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package pipeline

import "os/exec"

// killProcessGroup relies on exec.CommandContext killing the direct child.
func killProcessGroup(*exec.Cmd) {}

func signalOf(*exec.ExitError) (int, bool) { return 0, false }
