// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigLoad is the sentinel wrapped by LoadError.
	ErrConfigLoad = errors.New("config load failed")
	// ErrConfigType is the sentinel wrapped by TypeError.
	ErrConfigType = errors.New("config value has the wrong type")
	// ErrMissingKey is the sentinel wrapped by MissingKeyError.
	ErrMissingKey = errors.New("config key not set")
	// ErrKeyConflict is returned when a key would be both a value and a table.
	ErrKeyConflict = errors.New("config key conflict")
	// ErrInvalidKey is returned for empty keys or keys with empty segments.
	ErrInvalidKey = errors.New("invalid config key")
	// ErrNotMutable is returned by Set and Save when the cascade has no mutable layer.
	ErrNotMutable = errors.New("config has no mutable layer")
)

type (
	// LoadError reports a layer that could not be read, parsed or validated.
	LoadError struct {
		Layer string
		Path  string
		Err   error
	}

	// TypeError reports a value that cannot be coerced to the requested shape.
	TypeError struct {
		Key   string
		Want  string
		Value any
		Err   error
	}

	// MissingKeyError reports a key that no layer defines.
	MissingKeyError struct {
		Key string
	}
)

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load %s layer: %v", e.Layer, e.Err)
	}
	return fmt.Sprintf("load %s layer %s: %v", e.Layer, e.Path, e.Err)
}

// Unwrap exposes both ErrConfigLoad and the underlying cause.
func (e *LoadError) Unwrap() []error { return []error{ErrConfigLoad, e.Err} }

// Error implements the error interface.
func (e *TypeError) Error() string {
	msg := fmt.Sprintf("config key %q: cannot use %#v (%T) as %s", e.Key, e.Value, e.Value, e.Want)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrConfigType for errors.Is() compatibility.
func (e *TypeError) Unwrap() error { return ErrConfigType }

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("config key %q is not set", e.Key)
}

// Unwrap returns ErrMissingKey for errors.Is() compatibility.
func (e *MissingKeyError) Unwrap() error { return ErrMissingKey }
