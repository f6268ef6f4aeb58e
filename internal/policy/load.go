package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix      = "SAVEGUARD"
	ConfigBaseName = "saveguard"
)

// flagKeys maps persistent CLI flags to config keys.
var flagKeys = map[string]string{
	"save-root":   "save_root",
	"profile":     "profile",
	"jar-path":    "jar_path",
	"snapshots":   "snapshots_dir",
	"quiet-ms":    "quiet_window_ms",
	"process":     "process_name",
	"retention":   "retention_per_bucket",
	"retry-count": "integrity_retry",
}

// NewViper returns a viper instance with defaults and env bindings applied.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("save_root", d.SaveRoot)
	v.SetDefault("profile", d.Profile)
	v.SetDefault("jar_path", d.JarPath)
	v.SetDefault("java_path", d.JavaPath)
	v.SetDefault("process_name", d.ProcessName)
	v.SetDefault("state_poll_interval_ms", d.StatePollIntervalMS)
	v.SetDefault("inraid_state_poll_interval_ms", d.InRaidPollIntervalMS)
	v.SetDefault("runtime_snapshot_interval_ms", d.RuntimeSnapshotIntervalMS)
	v.SetDefault("retention_per_bucket", d.RetentionPerBucket)
	v.SetDefault("integrity_retry", d.IntegrityRetry)
	v.SetDefault("quiet_window_ms", d.QuietWindowMS)
	v.SetDefault("snapshots_dir", d.SnapshotsDir)
	v.SetDefault("logs_dir", d.LogsDir)
	v.SetDefault("journal_file", d.JournalFile)
	v.SetDefault("hotkey_enabled", d.HotkeyEnabled)
	v.SetDefault("tray_enabled", d.TrayEnabled)
}

// BindFlags binds the persistent flags that exist on fs to their config keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	for flag, key := range flagKeys {
		if f := fs.Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// Load reads cfgFile (or saveguard.{yaml,yml,json} in dir) into v and
// decodes the result. A missing default config file is not an error.
// The returned path is the file actually used, empty when none was found.
func Load(v *viper.Viper, cfgFile, dir string) (Config, string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigBaseName)
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("read config: %w", err)
		}
	}

	used := v.ConfigFileUsed()
	base := dir
	if used != "" {
		base = filepath.Dir(used)
	}
	cfg, err := Decode(v, base)
	return cfg, used, err
}

// Decode unmarshals v, anchors relative paths at baseDir and fills in the
// save root from Steam discovery when it is unset or gone.
func Decode(v *viper.Viper, baseDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	cfg.BaseDir = baseDir
	cfg = cfg.Normalize()

	if cfg.SaveRoot == "" || !dirExists(cfg.SaveRoot) {
		if detected := DetectSaveRoot(); detected != "" {
			cfg.SaveRoot = detected
			SyncProfileToExisting(&cfg)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch re-decodes the config whenever the backing file changes and hands
// valid results to apply. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, baseDir string, logger *slog.Logger, apply func(Config)) {
	if logger == nil {
		logger = slog.Default()
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Decode(v, baseDir)
		if err != nil {
			logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name, "op", e.Op.String())
		apply(cfg)
	})
	v.WatchConfig()
}

// MarshalYAML renders cfg the way `config show` prints it.
func MarshalYAML(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteDefault writes a default YAML config file to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	raw, err := MarshalYAML(DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func dirExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
