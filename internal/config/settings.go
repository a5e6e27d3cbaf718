// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable bound into Settings.
const EnvPrefix = "DASBOOT"

const (
	SettingLogLevel      = "log-level"
	SettingConfigDir     = "config-dir"
	SettingDataDir       = "data-dir"
	SettingStepTimeout   = "step-timeout"
	SettingStopOnFailure = "stop-on-failure"
	SettingReverse       = "reverse"
	SettingSystemDirs    = "system-dirs"
)

// Settings configure the tool itself rather than the bootstrap. They come
// from command-line flags and DASBOOT_* environment variables. Pipeline
// policy fields are pointers: nil means "not given", so the cascade's
// bootstrap.* value applies.
type Settings struct {
	LogLevel      string
	ConfigDir     string
	DataDir       string
	SystemDirs    bool
	StepTimeout   *time.Duration
	StopOnFailure *bool
	Reverse       *bool
}

// LoadSettings binds flags (may be nil) and the environment through viper.
func LoadSettings(flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(SettingLogLevel, "info")
	v.SetDefault(SettingSystemDirs, false)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Settings{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	s := Settings{
		LogLevel:   strings.ToLower(v.GetString(SettingLogLevel)),
		ConfigDir:  v.GetString(SettingConfigDir),
		DataDir:    v.GetString(SettingDataDir),
		SystemDirs: v.GetBool(SettingSystemDirs),
	}

	if v.IsSet(SettingStepTimeout) {
		d, err := parseTimeout(v.GetString(SettingStepTimeout))
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", SettingStepTimeout, err)
		}
		s.StepTimeout = &d
	}
	if v.IsSet(SettingStopOnFailure) {
		b := v.GetBool(SettingStopOnFailure)
		s.StopOnFailure = &b
	}
	if v.IsSet(SettingReverse) {
		b := v.GetBool(SettingReverse)
		s.Reverse = &b
	}

	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Settings{}, fmt.Errorf("%s: unknown level %q (valid: debug, info, warn, error)", SettingLogLevel, s.LogLevel)
	}
	return s, nil
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}
