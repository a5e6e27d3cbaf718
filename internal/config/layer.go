// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// KindDefaults layers hold values declared by a Spec and apply first.
	KindDefaults Kind = iota
	// KindFile layers are regular layer files and apply in load order.
	KindFile
	// KindCanonical layers hold derived truth and always apply last.
	KindCanonical
)

type (
	// Kind is a layer's precedence class.
	Kind int

	// Layer is one source of configuration: dotted keys mapped to values,
	// remembering the order in which keys were first set.
	Layer struct {
		Name string
		Path string
		Kind Kind

		keys   []string
		values map[string]any
	}
)

// NewLayer returns an empty layer.
func NewLayer(name string, kind Kind) *Layer {
	return &Layer{Name: name, Kind: kind, values: make(map[string]any)}
}

// Keys returns the layer's keys in first-set order.
func (l *Layer) Keys() []string { return slices.Clone(l.keys) }

// Len returns the number of keys in the layer.
func (l *Layer) Len() int { return len(l.keys) }

// Get returns the value stored under key.
func (l *Layer) Get(key string) (any, bool) {
	v, ok := l.values[key]
	return v, ok
}

// Set stores value under key, replacing any previous value while keeping
// the key's original position. Values are normalized to string, bool, int64,
// float64, []string or []any of those.
func (l *Layer) Set(key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("config key %q: %w", key, err)
	}
	if _, exists := l.values[key]; !exists {
		if other, clash := l.conflicting(key); clash {
			return fmt.Errorf("%w: %q and %q cannot both be set", ErrKeyConflict, key, other)
		}
		l.keys = append(l.keys, key)
	}
	l.values[key] = v
	return nil
}

// Delete removes key from the layer and reports whether it was present.
func (l *Layer) Delete(key string) bool {
	if _, ok := l.values[key]; !ok {
		return false
	}
	delete(l.values, key)
	l.keys = slices.DeleteFunc(l.keys, func(k string) bool { return k == key })
	return true
}

// conflicting finds a key that is a table prefix of key, or that key is a
// table prefix of.
func (l *Layer) conflicting(key string) (string, bool) {
	for _, k := range l.keys {
		if strings.HasPrefix(key, k+".") || strings.HasPrefix(k, key+".") {
			return k, true
		}
	}
	return "", false
}

// overlay copies every key of src into l, last writer wins.
func (l *Layer) overlay(src *Layer) {
	for _, k := range src.keys {
		if _, exists := l.values[k]; !exists {
			l.keys = append(l.keys, k)
		}
		l.values[k] = src.values[k]
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for _, seg := range strings.Split(key, ".") {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidKey, key)
		}
	}
	return nil
}

func normalize(value any) (any, error) {
	switch v := value.(type) {
	case string, bool, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case time.Duration:
		return v.String(), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		// go-toml local date and time values.
		return v.String(), nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		return normalizeList(v)
	case nil:
		return nil, fmt.Errorf("null values are not supported")
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
}

func normalizeList(items []any) (any, error) {
	out := make([]any, len(items))
	allStrings := true
	for i, item := range items {
		switch item.(type) {
		case []any, []string, map[string]any:
			return nil, fmt.Errorf("nested lists and tables inside lists are not supported")
		}
		v, err := normalize(item)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		if _, ok := v.(string); !ok {
			allStrings = false
		}
		out[i] = v
	}
	if !allStrings {
		return out, nil
	}
	strs := make([]string, len(out))
	for i, v := range out {
		strs[i] = v.(string)
	}
	return strs, nil
}
