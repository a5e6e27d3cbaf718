// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors with user-facing remediation.
//
// ActionableError carries what dasboot was doing, what it was doing it to,
// and what the user can try. Well-known failures additionally map to an
// Issue: a Markdown guide rendered in the terminal.
package issue
