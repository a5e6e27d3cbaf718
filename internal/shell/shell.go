// SPDX-License-Identifier: MPL-2.0

// Package shell resolves the user's login shell and implements the quoting
// discipline used when a command is wrapped as `<shell> -c "<statement>"`.
package shell

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// Zsh is the Z shell.
	Zsh Kind = "zsh"
	// Bash is the GNU Bourne-Again shell.
	Bash Kind = "bash"
	// Sh is a POSIX sh.
	Sh Kind = "sh"
	// None runs commands directly, without a wrapping shell.
	None Kind = "none"

	// EnvVar is the environment variable consulted by Resolve.
	EnvVar = "SHELL"
)

var (
	// ErrResolution is returned when no supported shell can be determined.
	ErrResolution = errors.New("shell resolution failed")

	// ErrInvalidKind is returned when a Kind value is not one of the defined kinds.
	ErrInvalidKind = errors.New("invalid shell kind")

	supportedKinds = []Kind{Zsh, Bash, Sh}
)

type (
	// Kind identifies the shell used to wrap commands.
	Kind string

	// LookupEnvFunc reads a variable from an environment. It mirrors os.LookupEnv.
	LookupEnvFunc func(key string) (string, bool)

	// ResolutionError describes why the shell could not be resolved.
	ResolutionError struct {
		Path   string
		Reason string
	}

	// InvalidKindError is returned when a Kind value is not recognized.
	InvalidKindError struct {
		Value Kind
	}

	// Resolution is a resolved shell with the executable path it came from.
	Resolution struct {
		Kind Kind
		Path string
	}
)

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("resolve shell from $%s: %s", EnvVar, e.Reason)
	}
	return fmt.Sprintf("resolve shell from $%s=%q: %s", EnvVar, e.Path, e.Reason)
}

// Unwrap returns ErrResolution for errors.Is() compatibility.
func (e *ResolutionError) Unwrap() error { return ErrResolution }

// Error implements the error interface.
func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid shell kind %q (valid: zsh, bash, sh, none)", e.Value)
}

// Unwrap returns ErrInvalidKind for errors.Is() compatibility.
func (e *InvalidKindError) Unwrap() error { return ErrInvalidKind }

// String returns the string representation of the Kind.
func (k Kind) String() string { return string(k) }

// IsValid returns whether the Kind is one of the defined kinds,
// and a list of validation errors if it is not.
func (k Kind) IsValid() (bool, []error) {
	switch k {
	case Zsh, Bash, Sh, None:
		return true, nil
	default:
		return false, []error{&InvalidKindError{Value: k}}
	}
}

// Wraps reports whether commands of this kind run through `<shell> -c`.
func (k Kind) Wraps() bool { return k != None && k != "" }

// ParseKind converts a string into a Kind. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if ok, errs := k.IsValid(); !ok {
		return "", errs[0]
	}
	return k, nil
}

// Resolve determines the shell kind from $SHELL. An unset or empty value, a
// path that does not name an executable file, and an unsupported shell are
// all errors; callers that want direct execution must ask for None explicitly.
func Resolve(lookupEnv LookupEnvFunc) (Kind, error) {
	r, err := Locate(lookupEnv)
	if err != nil {
		return "", err
	}
	return r.Kind, nil
}

// Locate is Resolve but also returns the executable path named by $SHELL.
// A bare program name is looked up on PATH.
func Locate(lookupEnv LookupEnvFunc) (Resolution, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	value, ok := lookupEnv(EnvVar)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return Resolution{}, &ResolutionError{Reason: "variable is unset or empty"}
	}

	name := Kind(filepath.Base(value))
	if !slices.Contains(supportedKinds, name) {
		return Resolution{}, &ResolutionError{
			Path:   value,
			Reason: fmt.Sprintf("unsupported shell %q (supported: zsh, bash, sh)", string(name)),
		}
	}

	path := value
	if !strings.ContainsRune(value, filepath.Separator) {
		found, err := exec.LookPath(value)
		if err != nil {
			return Resolution{}, &ResolutionError{Path: value, Reason: "not found on PATH"}
		}
		path = found
	}

	if reason := checkExecutable(path); reason != "" {
		return Resolution{}, &ResolutionError{Path: value, Reason: reason}
	}

	return Resolution{Kind: name, Path: path}, nil
}

func checkExecutable(path string) string {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "path does not exist"
	case err != nil:
		return err.Error()
	case !info.Mode().IsRegular():
		return "not a regular file"
	case info.Mode().Perm()&0o111 == 0:
		return "not executable"
	}
	return ""
}

// Executable returns the program used to run a wrapped statement. An explicit
// path wins; otherwise the kind name is looked up on PATH at execution time.
func (r Resolution) Executable() string {
	if r.Path != "" {
		return r.Path
	}
	return string(r.Kind)
}
