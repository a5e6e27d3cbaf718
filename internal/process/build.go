// SPDX-License-Identifier: MPL-2.0

package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/homeops/dasboot/internal/shell"
)

type (
	// Options are the optional parts of a Spec.
	Options struct {
		// Dir is the working directory; it must exist and be a directory.
		Dir string
		// Stdout, Stderr and Stdin name existing regular files to redirect to.
		Stdout string
		Stderr string
		Stdin  string
		// Env is an overlay of KEY=VALUE pairs applied over the parent environment.
		Env []string
	}

	// Factory builds Specs that share a shell and a base environment overlay.
	// The zero Factory runs commands directly.
	Factory struct {
		// Shell wraps every command as `<shell> -c`; None or "" disables wrapping.
		Shell shell.Kind
		// ShellPath is the shell executable; defaults to the kind name on PATH.
		ShellPath string
		// Env is prepended to each spec's own overlay.
		Env []string
	}
)

// Build validates its inputs and returns a direct (unwrapped) or
// shell-wrapped Spec for kind.
func Build(kind shell.Kind, command string, args []string, opts Options) (*Spec, error) {
	return Factory{Shell: kind}.Build(command, args, opts)
}

// BuildScript returns a Spec that runs a complete shell statement, such as a
// pipeline or an `&&` chain, through `<shell> -c`. kind must not be None.
func BuildScript(kind shell.Kind, shellPath, script string, opts Options) (*Spec, error) {
	return Factory{Shell: kind, ShellPath: shellPath}.BuildScript(script, opts)
}

// Build validates command, args and opts and returns a Spec. When the
// factory has a wrapping shell, the argv becomes
// [shell, "-c", <quoted command and args>].
func (f Factory) Build(command string, args []string, opts Options) (*Spec, error) {
	if strings.TrimSpace(command) == "" {
		return nil, invalid(FieldCommand, command, "must not be blank")
	}
	if strings.ContainsRune(command, 0) {
		return nil, invalid(FieldCommand, command, "contains a NUL byte")
	}
	for i, arg := range args {
		if strings.ContainsRune(arg, 0) {
			return nil, invalid(FieldArgs, arg, fmt.Sprintf("argument %d contains a NUL byte", i))
		}
	}

	spec, err := f.base(opts)
	if err != nil {
		return nil, err
	}
	spec.command = command
	spec.args = slices.Clone(args)

	if !spec.shell.Wraps() {
		spec.argv = append([]string{command}, args...)
		return spec, nil
	}

	statement, err := shell.Join(spec.shell, append([]string{command}, args...))
	if err != nil {
		return nil, &ValidationError{Field: FieldShellQuote, Value: command, Reason: err.Error()}
	}
	spec.argv = []string{f.shellExecutable(), "-c", statement}
	return spec, nil
}

// BuildScript is the package-level BuildScript using the factory's shell.
func (f Factory) BuildScript(script string, opts Options) (*Spec, error) {
	if !f.Shell.Wraps() {
		return nil, invalid(FieldShell, string(f.Shell), "a script needs a wrapping shell")
	}
	if strings.TrimSpace(script) == "" {
		return nil, invalid(FieldScript, script, "must not be blank")
	}
	if strings.ContainsRune(script, 0) {
		return nil, invalid(FieldScript, "", "contains a NUL byte")
	}

	spec, err := f.base(opts)
	if err != nil {
		return nil, err
	}
	spec.command = script
	spec.argv = []string{f.shellExecutable(), "-c", script}
	return spec, nil
}

func (f Factory) base(opts Options) (*Spec, error) {
	kind := f.Shell
	if kind == "" {
		kind = shell.None
	}
	if ok, errs := kind.IsValid(); !ok {
		return nil, &ValidationError{Field: FieldShell, Value: string(kind), Reason: errors.Join(errs...).Error()}
	}

	if opts.Dir != "" {
		if err := checkDir(opts.Dir); err != nil {
			return nil, err
		}
	}
	for _, r := range []struct {
		field Field
		path  string
	}{
		{FieldStdout, opts.Stdout},
		{FieldStderr, opts.Stderr},
		{FieldStdin, opts.Stdin},
	} {
		if r.path == "" {
			continue
		}
		if err := checkFile(r.field, r.path); err != nil {
			return nil, err
		}
	}

	env := make([]string, 0, len(f.Env)+len(opts.Env))
	for _, kv := range slices.Concat(f.Env, opts.Env) {
		key, _, found := strings.Cut(kv, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, invalid(FieldEnv, kv, "must have the form KEY=VALUE")
		}
		if strings.ContainsRune(kv, 0) {
			return nil, invalid(FieldEnv, key, "contains a NUL byte")
		}
		env = append(env, kv)
	}

	return &Spec{
		dir:    opts.Dir,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		stdin:  opts.Stdin,
		env:    env,
		shell:  kind,
	}, nil
}

func (f Factory) shellExecutable() string {
	return shell.Resolution{Kind: f.Shell, Path: f.ShellPath}.Executable()
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return invalid(FieldDir, path, "does not exist")
	case err != nil:
		return invalid(FieldDir, path, err.Error())
	case !info.IsDir():
		return invalid(FieldDir, path, "is not a directory")
	}
	return nil
}

func checkFile(field Field, path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return invalid(field, path, "does not exist")
	case err != nil:
		return invalid(field, path, err.Error())
	case !info.Mode().IsRegular():
		return invalid(field, path, "is not a regular file")
	}
	return nil
}
