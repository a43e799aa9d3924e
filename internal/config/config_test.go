package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultTimeRange, cfg.TimeRange)
	assert.Equal(t, "cli", cfg.Backend)
	assert.Equal(t, "/var/log/kern.log", cfg.KernelLog)
	assert.Equal(t, 10, cfg.TailLines)
}

func TestLoadPartialFile(t *testing.T) {
	path := writeConfig(t, `
timeout = 0
backend = "dbus"
kernel_log = "/var/log/messages"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Timeout)
	assert.Equal(t, DefaultTimeRange, cfg.TimeRange)
	assert.Equal(t, "dbus", cfg.Backend)
	assert.Equal(t, "/var/log/messages", cfg.KernelLog)
	assert.Equal(t, DefaultStateFile, cfg.StateFile)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, `timeout = "soon"`))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	cfg := Default()
	timeout := 3
	zero := 0

	cfg.Merge(Overrides{
		Timeout:   &timeout,
		TimeRange: &zero,
		StateFile: "/tmp/state",
	})

	assert.Equal(t, 3, cfg.Timeout)
	assert.Equal(t, 0, cfg.TimeRange)
	assert.Equal(t, "/tmp/state", cfg.StateFile)
	assert.Equal(t, DefaultBackend, cfg.Backend)
	assert.Equal(t, "/var/log/kern.log", cfg.KernelLog)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, false},
		{"dbus backend", func(c *Config) { c.Backend = "dbus" }, false},
		{"negative timeout", func(c *Config) { c.Timeout = -1 }, false},
		{"negative timerange", func(c *Config) { c.TimeRange = -5 }, true},
		{"no tail lines", func(c *Config) { c.TailLines = -1 }, true},
		{"unknown backend", func(c *Config) { c.Backend = "syscall" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
