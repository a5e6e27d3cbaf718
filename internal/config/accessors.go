// SPDX-License-Identifier: MPL-2.0

package config

import (
	"time"

	"github.com/spf13/cast"
)

func (c *Cascade) lookup(key string) (any, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, &MissingKeyError{Key: key}
	}
	return v, nil
}

func isList(v any) bool {
	switch v.(type) {
	case []string, []any:
		return true
	}
	return false
}

// GetString returns key as a string. Scalars are coerced; lists are a TypeError.
func (c *Cascade) GetString(key string) (string, error) {
	v, err := c.lookup(key)
	if err != nil {
		return "", err
	}
	if isList(v) {
		return "", &TypeError{Key: key, Want: "string", Value: v}
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", &TypeError{Key: key, Want: "string", Value: v, Err: err}
	}
	return s, nil
}

// GetBool returns key as a bool. Strings such as "true" and "0" are accepted.
func (c *Cascade) GetBool(key string) (bool, error) {
	v, err := c.lookup(key)
	if err != nil {
		return false, err
	}
	if isList(v) {
		return false, &TypeError{Key: key, Want: "bool", Value: v}
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, &TypeError{Key: key, Want: "bool", Value: v, Err: err}
	}
	return b, nil
}

// GetInt returns key as an int.
func (c *Cascade) GetInt(key string) (int, error) {
	v, err := c.lookup(key)
	if err != nil {
		return 0, err
	}
	if isList(v) {
		return 0, &TypeError{Key: key, Want: "int", Value: v}
	}
	if _, ok := v.(bool); ok {
		return 0, &TypeError{Key: key, Want: "int", Value: v}
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, &TypeError{Key: key, Want: "int", Value: v, Err: err}
	}
	return n, nil
}

// GetDuration returns key as a duration. Strings use time.ParseDuration
// syntax ("90s", "10m"); integers are whole seconds.
func (c *Cascade) GetDuration(key string) (time.Duration, error) {
	v, err := c.lookup(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return time.Duration(n) * time.Second, nil
	case string:
		d, err := cast.ToDurationE(n)
		if err != nil {
			return 0, &TypeError{Key: key, Want: "duration", Value: v, Err: err}
		}
		return d, nil
	default:
		return 0, &TypeError{Key: key, Want: "duration", Value: v}
	}
}

// GetStringList returns key as a list of strings. The value must be a list;
// each element is coerced to a string.
func (c *Cascade) GetStringList(key string) ([]string, error) {
	v, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, err := cast.ToStringE(item)
			if err != nil {
				return nil, &TypeError{Key: key, Want: "list of strings", Value: v, Err: err}
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, &TypeError{Key: key, Want: "list of strings", Value: v}
	}
}

// Section returns the keys below prefix with the prefix removed, paired with
// their values, in first-seen order.
func (c *Cascade) Section(prefix string) []Entry {
	var out []Entry
	for _, key := range c.merged.keys {
		if rest, ok := cutPrefix(key, prefix); ok {
			out = append(out, Entry{Key: rest, Value: c.merged.values[key]})
		}
	}
	return out
}

// Entry is one key/value pair of a Section.
type Entry struct {
	Key   string
	Value any
}

func cutPrefix(key, prefix string) (string, bool) {
	if len(key) <= len(prefix)+1 || key[:len(prefix)] != prefix || key[len(prefix)] != '.' {
		return "", false
	}
	return key[len(prefix)+1:], true
}
