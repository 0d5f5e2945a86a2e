// Package config loads tada settings from defaults, TOML files and the
// environment. Command-line flags are applied on top by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultStorePath    = "store.json"
	DefaultPollInterval = time.Second
	DefaultAutoSave     = 100 * time.Millisecond
	DefaultLogLevel     = "info"
	DefaultTheme        = "classic"

	projectConfigFile = ".tada.toml"
)

// Config holds every tunable setting.
type Config struct {
	StorePath    string   `toml:"store_path"`
	PollInterval Duration `toml:"poll_interval"`
	AutoSave     Duration `toml:"autosave"`
	LogLevel     string   `toml:"log_level"`
	LogFormat    string   `toml:"log_format"`
	LogFile      string   `toml:"log_file"`
	Theme        string   `toml:"theme"`
}

// Duration lets TOML carry values like "1s" or "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a config with every field set to its default.
func Defaults() *Config {
	return &Config{
		StorePath:    DefaultStorePath,
		PollInterval: Duration{DefaultPollInterval},
		AutoSave:     Duration{DefaultAutoSave},
		LogLevel:     DefaultLogLevel,
		LogFormat:    "text",
		Theme:        DefaultTheme,
	}
}

// Load layers, lowest priority first: defaults, the user config file,
// the project config file (.tada.toml in the working directory), an
// explicit file if path is non-empty, then TADA_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	for _, p := range []string{UserPath(), projectConfigFile} {
		if p == "" {
			continue
		}
		if err := decodeFile(cfg, p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", p, err)
		}
	}
	if path != "" {
		if err := decodeFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.StorePath = expandPath(cfg.StorePath)
	cfg.LogFile = expandPath(cfg.LogFile)
	return cfg, nil
}

// UserPath is the per-user config file, or "" when no config dir exists.
func UserPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tada", "config.toml")
}

// Validate rejects settings the rest of the program cannot honour.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StorePath) == "" {
		return errors.New("store_path is empty")
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval.Duration)
	}
	switch strings.ToLower(c.Theme) {
	case "classic", "neon", "mono":
	default:
		return fmt.Errorf("unknown theme %q (want classic, neon or mono)", c.Theme)
	}
	return nil
}

func decodeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TADA_STORE"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("TADA_POLL_INTERVAL"); v != "" {
		if err := cfg.PollInterval.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("TADA_POLL_INTERVAL: %w", err)
		}
	}
	if v := os.Getenv("TADA_AUTOSAVE"); v != "" {
		if err := cfg.AutoSave.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("TADA_AUTOSAVE: %w", err)
		}
	}
	if v := os.Getenv("TADA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TADA_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("TADA_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("TADA_THEME"); v != "" {
		cfg.Theme = v
	}
	return nil
}

// expandPath resolves a leading ~ to the home directory.
func expandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}
