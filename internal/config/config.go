package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	"github.com/kriansa/usb-automount/internal/kernlog"
	"github.com/kriansa/usb-automount/internal/udisks"
)

// AppName names the per-user config and state directories
const AppName = "usb-automount"

const (
	// DefaultTimeout is the default number of detection attempts
	DefaultTimeout = 10
	// DefaultTimeRange is the default recency window in seconds
	DefaultTimeRange = 10
	// DefaultBackend is the default udisks backend
	DefaultBackend = udisks.BackendCLI
)

var (
	// DefaultConfigPath is the default location for the config file
	DefaultConfigPath = filepath.Join(xdg.ConfigHome, AppName, "config.toml")
	// DefaultStateFile is the default location of the last mounted device
	DefaultStateFile = filepath.Join(xdg.StateHome, AppName, "last-mounted")
)

// Config holds the tool configuration
type Config struct {
	// Timeout is the number of detection attempts, one second apart
	Timeout int `toml:"timeout"`
	// TimeRange is how far back, in seconds, a kernel message still counts
	TimeRange int `toml:"timerange"`
	// Backend is the udisks backend to use: "cli" or "dbus"
	Backend string `toml:"backend"`
	// StateFile holds the last mounted device
	StateFile string `toml:"state_file"`
	// KernelLog is the kernel log file to scan
	KernelLog string `toml:"kernel_log"`
	// TailLines is how many trailing kernel log lines are scanned
	TailLines int `toml:"tail_lines"`
}

// Default returns a config with every field set to its default
func Default() *Config {
	cfg := &Config{
		Timeout:   DefaultTimeout,
		TimeRange: DefaultTimeRange,
	}
	cfg.ApplyDefaults()
	return cfg
}

// Load loads configuration from a TOML file on top of the defaults
// Returns the defaults if the file doesn't exist
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Overrides carries command line values. Nil fields were not given.
type Overrides struct {
	Timeout   *int
	TimeRange *int
	Backend   string
	StateFile string
	KernelLog string
}

// Merge merges CLI flags into the config, with CLI flags taking precedence
// over config file values. Unset CLI values are ignored.
func (c *Config) Merge(o Overrides) {
	if o.Timeout != nil {
		c.Timeout = *o.Timeout
	}
	if o.TimeRange != nil {
		c.TimeRange = *o.TimeRange
	}
	if o.Backend != "" {
		c.Backend = o.Backend
	}
	if o.StateFile != "" {
		c.StateFile = o.StateFile
	}
	if o.KernelLog != "" {
		c.KernelLog = o.KernelLog
	}
}

// ApplyDefaults applies default values for any unset string or line count
// fields. A zero timeout or time range is meaningful and kept.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.StateFile == "" {
		c.StateFile = DefaultStateFile
	}
	if c.KernelLog == "" {
		c.KernelLog = kernlog.DefaultPath
	}
	if c.TailLines == 0 {
		c.TailLines = kernlog.DefaultLines
	}
}

// Validate validates the configuration. Any timeout is accepted: a budget
// below one simply finds nothing.
func (c *Config) Validate() error {
	if c.TimeRange < 0 {
		return fmt.Errorf("timerange must not be negative, got %d", c.TimeRange)
	}

	if c.TailLines < 1 {
		return fmt.Errorf("tail_lines must be at least 1, got %d", c.TailLines)
	}

	if c.Backend != udisks.BackendCLI && c.Backend != udisks.BackendDBus {
		return fmt.Errorf("backend must be 'cli' or 'dbus', got %q", c.Backend)
	}

	return nil
}
