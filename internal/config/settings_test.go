// SPDX-License-Identifier: MPL-2.0

package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func settingsFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(SettingLogLevel, "info", "")
	fs.String(SettingConfigDir, "", "")
	fs.Duration(SettingStepTimeout, 0, "")
	fs.Bool(SettingStopOnFailure, false, "")
	fs.Bool(SettingReverse, false, "")
	return fs
}

func TestLoadSettingsUnsetPolicyStaysNil(t *testing.T) {
	fs := settingsFlags()
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(fs)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.StopOnFailure != nil || s.Reverse != nil || s.StepTimeout != nil {
		t.Errorf("policy fields set without flags: %+v", s)
	}
	if s.LogLevel != "info" {
		t.Errorf("LogLevel = %q", s.LogLevel)
	}
}

func TestLoadSettingsFlags(t *testing.T) {
	fs := settingsFlags()
	if err := fs.Parse([]string{"--stop-on-failure", "--step-timeout=90s", "--log-level=DEBUG", "--config-dir=/x"}); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(fs)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.StopOnFailure == nil || !*s.StopOnFailure {
		t.Errorf("StopOnFailure = %v", s.StopOnFailure)
	}
	if s.StepTimeout == nil || *s.StepTimeout != 90*time.Second {
		t.Errorf("StepTimeout = %v", s.StepTimeout)
	}
	if s.LogLevel != "debug" || s.ConfigDir != "/x" {
		t.Errorf("settings = %+v", s)
	}
}

func TestLoadSettingsEnvironment(t *testing.T) {
	t.Setenv("DASBOOT_REVERSE", "true")
	t.Setenv("DASBOOT_DATA_DIR", "/data")

	s, err := LoadSettings(nil)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.Reverse == nil || !*s.Reverse {
		t.Errorf("Reverse = %v", s.Reverse)
	}
	if s.DataDir != "/data" {
		t.Errorf("DataDir = %q", s.DataDir)
	}
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	t.Setenv("DASBOOT_LOG_LEVEL", "loud")
	if _, err := LoadSettings(nil); err == nil {
		t.Error("LoadSettings() accepted an unknown log level")
	}
}
