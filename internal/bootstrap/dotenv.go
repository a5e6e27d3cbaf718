// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// EnvFileName is the dotenv file under $HOME that receives the constants.
const EnvFileName = ".env"

// ParseEnvFile parses dotenv content and merges it into env.
// Supported format:
//   - Lines starting with # are comments
//   - KEY=value, KEY="value" (escapes \n \r \t \\ \" \$), KEY='value' (literal)
//   - export KEY=value (the export prefix is ignored)
//
// The filename parameter is used for error messages.
func ParseEnvFile(env map[string]string, content []byte, filename string) error {
	for i, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("%s:%d: invalid format (missing '=')", filename, i+1)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("%s:%d: empty variable name", filename, i+1)
		}
		parsed, err := parseEnvValue(value)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", filename, i+1, err)
		}
		env[key] = parsed
	}
	return nil
}

func parseEnvValue(value string) (string, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "", nil
	case value[0] == '"':
		if len(value) < 2 || value[len(value)-1] != '"' {
			return "", errors.New("unterminated double quote")
		}
		return unescapeDouble(value[1 : len(value)-1]), nil
	case value[0] == '\'':
		if len(value) < 2 || value[len(value)-1] != '\'' {
			return "", errors.New("unterminated single quote")
		}
		return value[1 : len(value)-1], nil
	}
	if idx := strings.Index(value, " #"); idx != -1 {
		value = strings.TrimSpace(value[:idx])
	}
	return value, nil
}

var (
	dotenvUnescaper = strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t", `\\`, `\`, `\"`, `"`, `\$`, `$`)
	dotenvEscaper   = strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`, `\`, `\\`, `"`, `\"`, `$`, `\$`)
)

func unescapeDouble(s string) string { return dotenvUnescaper.Replace(s) }

// FormatEnvLine renders KEY="value" with the escapes ParseEnvFile reverses.
func FormatEnvLine(key, value string) string {
	return key + `="` + dotenvEscaper.Replace(value) + `"`
}

// AppendEnv appends to path every pair of env whose key is missing from the
// file or holds a different value there, and returns the keys written. The
// file is created when missing; existing lines are never rewritten, so a
// later line overrides an earlier one when the file is sourced.
func AppendEnv(fsys afero.Fs, path string, env []string) ([]string, error) {
	current := map[string]string{}
	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := ParseEnvFile(current, data, path); err != nil {
			return nil, err
		}
	}

	var b strings.Builder
	var written []string
	if len(data) > 0 && data[len(data)-1] != '\n' {
		b.WriteByte('\n')
	}
	for _, kv := range env {
		key, value, _ := strings.Cut(kv, "=")
		if old, ok := current[key]; ok && old == value {
			continue
		}
		current[key] = value
		b.WriteString(FormatEnvLine(key, value))
		b.WriteByte('\n')
		written = append(written, key)
	}
	if len(written) == 0 {
		return nil, nil
	}

	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return written, f.Close()
}
