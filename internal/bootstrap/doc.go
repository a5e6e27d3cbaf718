// SPDX-License-Identifier: MPL-2.0

// Package bootstrap turns the merged configuration into the ordered list of
// setup steps that provision a workstation: host inventory, Homebrew, apt,
// KeePassXC, chezmoi and user-defined commands.
//
// Planning never runs anything. Load assembles the cascade, Prepare creates
// the files and directories the steps redirect into, and Planner.Plan returns
// pipeline steps for the executor.
package bootstrap
