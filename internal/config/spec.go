// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

// DefaultsLayerName names the layer a Spec contributes.
const DefaultsLayerName = "defaults"

type (
	// Spec declares the keys a consumer reads together with conservative
	// defaults. Applying a Spec merges the defaults beneath every other layer
	// and checks that the merged value of each key has the default's shape.
	Spec struct {
		defs []definition
	}

	definition struct {
		key string
		def any
	}
)

// NewSpec returns an empty Spec.
func NewSpec() *Spec { return &Spec{} }

// Define declares key with a default value. The default's type decides the
// accessor Check uses: string, bool, int, time.Duration or []string.
func (s *Spec) Define(key string, def any) *Spec {
	s.defs = append(s.defs, definition{key: key, def: def})
	return s
}

// Keys returns the declared keys in declaration order.
func (s *Spec) Keys() []string {
	keys := make([]string, len(s.defs))
	for i, d := range s.defs {
		keys[i] = d.key
	}
	return keys
}

// Layer returns the defaults as a layer.
func (s *Spec) Layer() (*Layer, error) {
	layer := NewLayer(DefaultsLayerName, KindDefaults)
	for _, d := range s.defs {
		if err := layer.Set(d.key, d.def); err != nil {
			return nil, err
		}
	}
	return layer, nil
}

// Apply merges the defaults into c and then runs Check.
func (s *Spec) Apply(c *Cascade) error {
	layer, err := s.Layer()
	if err != nil {
		return err
	}
	c.Merge(layer)
	return s.Check(c)
}

// Check verifies that every declared key coerces to its default's shape.
// All failures are returned joined.
func (s *Spec) Check(c *Cascade) error {
	var errs []error
	for _, d := range s.defs {
		var err error
		switch d.def.(type) {
		case string:
			_, err = c.GetString(d.key)
		case bool:
			_, err = c.GetBool(d.key)
		case int, int64:
			_, err = c.GetInt(d.key)
		case time.Duration:
			_, err = c.GetDuration(d.key)
		case []string:
			_, err = c.GetStringList(d.key)
		default:
			err = fmt.Errorf("config key %q: unsupported default type %T", d.key, d.def)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
