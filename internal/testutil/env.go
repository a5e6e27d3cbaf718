// SPDX-License-Identifier: MPL-2.0

package testutil

import "testing"

// Env returns an os.LookupEnv replacement backed by vars. Keys absent from
// vars are unset; an empty value is set but empty.
func Env(vars map[string]string) func(key string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// Home creates a temporary home directory and returns it with an
// environment in which HOME points at it and every XDG variable is unset.
// extra entries are added to that environment.
func Home(t testing.TB, extra map[string]string) (string, func(key string) (string, bool)) {
	t.Helper()
	home := t.TempDir()
	vars := map[string]string{"HOME": home}
	for k, v := range extra {
		vars[k] = v
	}
	return home, Env(vars)
}
