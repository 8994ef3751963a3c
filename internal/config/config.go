package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config holds all tool configuration
type Config struct {
	Version   int             `toml:"version"`
	Target    TargetConfig    `toml:"target"`
	Selectors SelectorsConfig `toml:"selectors"`
	Wait      WaitConfig      `toml:"wait"`
	Output    OutputConfig    `toml:"output"`
	Log       LogConfig       `toml:"log"`
}

// TargetConfig describes the site to log in to and the credentials to use.
// Credentials are required: a run must fail before any browser is launched
// if either is missing.
type TargetConfig struct {
	LoginURL string `toml:"login_url" validate:"required,url"`
	Username string `toml:"username" validate:"required"`
	Password string `toml:"password" validate:"required"`
	Headless bool   `toml:"headless"`
}

// SelectorsConfig holds the CSS selectors for the login form.
// These vary per site; the defaults cover the common name-attribute layout.
type SelectorsConfig struct {
	Username string `toml:"username" validate:"required"`
	Password string `toml:"password" validate:"required"`
	Submit   string `toml:"submit" validate:"required"`
}

// WaitConfig controls how login completion is detected.
type WaitConfig struct {
	// AfterLogin is a URL pattern (starts with "http" or "/") or a CSS
	// selector to wait for after submitting the form. Empty means wait
	// for document ready plus a short settle period.
	AfterLogin string `toml:"after_login"`

	SelectorTimeoutSec int `toml:"selector_timeout_sec" validate:"min=1"`
	LoginTimeoutSec    int `toml:"login_timeout_sec" validate:"min=1"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	// ConfigPath is the external JSON document the session token is
	// merged into.
	ConfigPath string `toml:"config_path" validate:"required"`
	// TokenKey is the key the token is stored under in that document.
	TokenKey string `toml:"token_key" validate:"required"`
	// SnapshotDir receives a full JSON dump of each run's snapshot.
	SnapshotDir string `toml:"snapshot_dir"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// ConfigurationError indicates required configuration is missing or invalid.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// Default returns a Config with sensible defaults
func Default() *Config {
	configDoc := ""
	snapshotDir := ""
	if dir, err := ConfigDir(); err == nil {
		configDoc = filepath.Join(dir, "tokens.json")
		snapshotDir = filepath.Join(dir, "snapshots")
	}

	return &Config{
		Version: 1,
		Target: TargetConfig{
			Headless: true,
		},
		Selectors: SelectorsConfig{
			Username: `input[name="username"]`,
			Password: `input[name="password"]`,
			Submit:   `button[type="submit"]`,
		},
		Wait: WaitConfig{
			SelectorTimeoutSec: 10,
			LoginTimeoutSec:    15,
		},
		Output: OutputConfig{
			ConfigPath:  configDoc,
			TokenKey:    "session_token",
			SnapshotDir: snapshotDir,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "tokenlift"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from the given path. An empty path uses ConfigPath().
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return nil, err
		}
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config to disk at the default location.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// Validate checks required fields. Must be called before any browser
// is launched.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			reasons := make([]string, 0, len(ve))
			for _, fe := range ve {
				reasons = append(reasons, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return &ConfigurationError{Reason: strings.Join(reasons, "; ")}
		}
		return &ConfigurationError{Reason: err.Error()}
	}
	return nil
}

// WaitKind classifies the AfterLogin wait condition.
type WaitKind int

const (
	WaitNetworkIdle WaitKind = iota // no condition configured
	WaitURLPattern
	WaitSelector
)

// Kind reports how AfterLogin should be interpreted: URL patterns start
// with "http" or "/", anything else is a CSS selector.
func (w WaitConfig) Kind() WaitKind {
	switch {
	case w.AfterLogin == "":
		return WaitNetworkIdle
	case strings.HasPrefix(w.AfterLogin, "http"), strings.HasPrefix(w.AfterLogin, "/"):
		return WaitURLPattern
	default:
		return WaitSelector
	}
}
