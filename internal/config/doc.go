// SPDX-License-Identifier: MPL-2.0

// Package config implements the configuration cascade: an ordered list of
// layers (defaults, the base file, the user file, and canonical layers
// derived from dotfile data and host inventory) merged last-writer-wins into
// one store keyed by dotted paths.
//
// Layer files are TOML or YAML. Only the user layer is mutable; Save writes
// it back after taking a timestamped backup of the file it replaces. The
// merged store is validated against an embedded CUE schema on load.
package config
