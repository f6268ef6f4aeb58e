package policy

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config is the configuration surface consumed by the snapshot manager and
// the monitor loop. Values are copied per operation; edits take effect on the
// next operation.
type Config struct {
	SaveRoot    string `mapstructure:"save_root" yaml:"save_root"`
	Profile     int    `mapstructure:"profile" yaml:"profile"`
	JarPath     string `mapstructure:"jar_path" yaml:"jar_path"`
	JavaPath    string `mapstructure:"java_path" yaml:"java_path"`
	ProcessName string `mapstructure:"process_name" yaml:"process_name"`

	StatePollIntervalMS       int `mapstructure:"state_poll_interval_ms" yaml:"state_poll_interval_ms"`
	InRaidPollIntervalMS      int `mapstructure:"inraid_state_poll_interval_ms" yaml:"inraid_state_poll_interval_ms"`
	RuntimeSnapshotIntervalMS int `mapstructure:"runtime_snapshot_interval_ms" yaml:"runtime_snapshot_interval_ms"`
	RetentionPerBucket        int `mapstructure:"retention_per_bucket" yaml:"retention_per_bucket"`
	IntegrityRetry            int `mapstructure:"integrity_retry" yaml:"integrity_retry"`
	QuietWindowMS             int `mapstructure:"quiet_window_ms" yaml:"quiet_window_ms"`

	SnapshotsDir string `mapstructure:"snapshots_dir" yaml:"snapshots_dir"`
	LogsDir      string `mapstructure:"logs_dir" yaml:"logs_dir"`
	JournalFile  string `mapstructure:"journal_file" yaml:"journal_file"`

	HotkeyEnabled bool `mapstructure:"hotkey_enabled" yaml:"hotkey_enabled"`
	TrayEnabled   bool `mapstructure:"tray_enabled" yaml:"tray_enabled"`

	// BaseDir anchors relative paths; it is the directory of the config file.
	BaseDir string `mapstructure:"-" yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Profile:                   0,
		JarPath:                   filepath.Join("tools", "DDSaveEditor.jar"),
		JavaPath:                  "java",
		ProcessName:               "Darkest.exe",
		StatePollIntervalMS:       1000,
		InRaidPollIntervalMS:      10000,
		RuntimeSnapshotIntervalMS: 5000,
		RetentionPerBucket:        50,
		IntegrityRetry:            3,
		QuietWindowMS:             800,
		SnapshotsDir:              "snapshots",
		LogsDir:                   "logs",
		JournalFile:               "journal.db",
		HotkeyEnabled:             true,
		TrayEnabled:               true,
		BaseDir:                   ".",
	}
}

// Normalize clamps values into their usable ranges. The in-raid poll
// interval never drops below the regular poll interval.
func (c Config) Normalize() Config {
	c.SaveRoot = strings.TrimSpace(c.SaveRoot)
	if c.StatePollIntervalMS <= 0 {
		c.StatePollIntervalMS = 1000
	}
	if c.InRaidPollIntervalMS < c.StatePollIntervalMS {
		c.InRaidPollIntervalMS = c.StatePollIntervalMS
	}
	if c.RuntimeSnapshotIntervalMS < 0 {
		c.RuntimeSnapshotIntervalMS = 0
	}
	if c.RetentionPerBucket < 1 {
		c.RetentionPerBucket = 1
	}
	if c.IntegrityRetry < 1 {
		c.IntegrityRetry = 1
	}
	if c.QuietWindowMS < 0 {
		c.QuietWindowMS = 0
	}
	if c.ProcessName == "" {
		c.ProcessName = "Darkest.exe"
	}
	if c.JavaPath == "" {
		c.JavaPath = "java"
	}
	if c.BaseDir == "" {
		c.BaseDir = "."
	}
	return c
}

func (c Config) Validate() error {
	if c.Profile < 0 {
		return fmt.Errorf("profile must be >= 0, got %d", c.Profile)
	}
	if c.SnapshotsDir == "" {
		return fmt.Errorf("snapshots_dir is required")
	}
	if c.InRaidPollIntervalMS < c.StatePollIntervalMS {
		return fmt.Errorf("inraid_state_poll_interval_ms (%d) must be >= state_poll_interval_ms (%d)",
			c.InRaidPollIntervalMS, c.StatePollIntervalMS)
	}
	return nil
}

// ProfileDir is the live save directory being protected.
func (c Config) ProfileDir() string {
	return filepath.Join(c.SaveRoot, fmt.Sprintf("profile_%d", c.Profile))
}

func (c Config) SnapshotsRoot() string { return c.resolve(c.SnapshotsDir) }
func (c Config) LogsRoot() string      { return c.resolve(c.LogsDir) }
func (c Config) JarFile() string       { return c.resolve(c.JarPath) }

func (c Config) JournalPath() string {
	if filepath.IsAbs(c.JournalFile) {
		return c.JournalFile
	}
	return filepath.Join(c.LogsRoot(), c.JournalFile)
}

func (c Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.StatePollIntervalMS) * time.Millisecond
}

func (c Config) InRaidPollInterval() time.Duration {
	return time.Duration(c.InRaidPollIntervalMS) * time.Millisecond
}

func (c Config) SnapshotInterval() time.Duration {
	return time.Duration(c.RuntimeSnapshotIntervalMS) * time.Millisecond
}

func (c Config) QuietWindow() time.Duration {
	return time.Duration(c.QuietWindowMS) * time.Millisecond
}
