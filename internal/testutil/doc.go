// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by dasboot's package tests: fake
// environments, a controllable clock and file fixtures.
package testutil
