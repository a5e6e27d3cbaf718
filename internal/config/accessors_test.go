// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func cascadeWith(t *testing.T, values map[string]any) *Cascade {
	t.Helper()
	c := New(afero.NewMemMapFs(), WithLogger(quietLogger()))
	l := NewLayer("test", KindFile)
	for k, v := range values {
		if err := l.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	c.Merge(l)
	return c
}

func TestTypedAccessors(t *testing.T) {
	t.Parallel()

	c := cascadeWith(t, map[string]any{
		"s":        "hello",
		"n":        42,
		"f":        1.5,
		"b":        true,
		"bs":       "false",
		"list":     []string{"a", "b"},
		"mixed":    []any{"a", int64(1), true},
		"dur":      "90s",
		"dur_secs": 30,
	})

	if got, err := c.GetString("s"); err != nil || got != "hello" {
		t.Errorf("GetString(s) = %q, %v", got, err)
	}
	if got, err := c.GetString("n"); err != nil || got != "42" {
		t.Errorf("GetString(n) = %q, %v", got, err)
	}
	if got, err := c.GetBool("b"); err != nil || !got {
		t.Errorf("GetBool(b) = %v, %v", got, err)
	}
	if got, err := c.GetBool("bs"); err != nil || got {
		t.Errorf("GetBool(bs) = %v, %v", got, err)
	}
	if got, err := c.GetInt("n"); err != nil || got != 42 {
		t.Errorf("GetInt(n) = %v, %v", got, err)
	}
	if got, err := c.GetDuration("dur"); err != nil || got != 90*time.Second {
		t.Errorf("GetDuration(dur) = %v, %v", got, err)
	}
	if got, err := c.GetDuration("dur_secs"); err != nil || got != 30*time.Second {
		t.Errorf("GetDuration(dur_secs) = %v, %v", got, err)
	}
	if got, err := c.GetStringList("list"); err != nil || !cmp.Equal(got, []string{"a", "b"}) {
		t.Errorf("GetStringList(list) = %q, %v", got, err)
	}
	if got, err := c.GetStringList("mixed"); err != nil || !cmp.Equal(got, []string{"a", "1", "true"}) {
		t.Errorf("GetStringList(mixed) = %q, %v", got, err)
	}
}

func TestTypedAccessorErrors(t *testing.T) {
	t.Parallel()

	c := cascadeWith(t, map[string]any{
		"s":    "hello",
		"b":    true,
		"list": []string{"a"},
	})

	tests := []struct {
		name string
		get  func() error
	}{
		{"string from list", func() error { _, err := c.GetString("list"); return err }},
		{"bool from word", func() error { _, err := c.GetBool("s"); return err }},
		{"bool from list", func() error { _, err := c.GetBool("list"); return err }},
		{"int from word", func() error { _, err := c.GetInt("s"); return err }},
		{"int from bool", func() error { _, err := c.GetInt("b"); return err }},
		{"list from scalar", func() error { _, err := c.GetStringList("s"); return err }},
		{"duration from word", func() error { _, err := c.GetDuration("s"); return err }},
		{"duration from bool", func() error { _, err := c.GetDuration("b"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.get()
			if !errors.Is(err, ErrConfigType) {
				t.Fatalf("error = %v, want ErrConfigType", err)
			}
			var typeErr *TypeError
			if !errors.As(err, &typeErr) {
				t.Errorf("error type = %T, want *TypeError", err)
			}
		})
	}

	_, err := c.GetString("absent")
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("GetString(absent) error = %v, want ErrMissingKey", err)
	}
}

func TestSpecApplyAndCheck(t *testing.T) {
	t.Parallel()

	spec := NewSpec().
		Define("brew.install", true).
		Define("brew.packages", []string{}).
		Define("bootstrap.step_timeout", time.Duration(0)).
		Define("retries", 3)

	c := cascadeWith(t, map[string]any{"brew.packages": []string{"jq"}})
	if err := spec.Apply(c); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got, _ := c.GetBool("brew.install"); !got {
		t.Error("default brew.install not applied")
	}
	if got, _ := c.GetStringList("brew.packages"); !cmp.Equal(got, []string{"jq"}) {
		t.Errorf("brew.packages = %q, file layer must win over defaults", got)
	}
	if origin, _ := c.Origin("retries"); origin != DefaultsLayerName {
		t.Errorf("Origin(retries) = %q", origin)
	}

	bad := cascadeWith(t, map[string]any{"brew.install": "sometimes", "brew.packages": "jq"})
	err := spec.Apply(bad)
	if !errors.Is(err, ErrConfigType) {
		t.Fatalf("Apply() error = %v, want ErrConfigType", err)
	}
	var typeErr *TypeError
	if !errors.As(err, &typeErr) {
		t.Errorf("joined error does not expose *TypeError: %v", err)
	}
}
