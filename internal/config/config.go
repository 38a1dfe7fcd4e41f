// Package config loads the loader daemon configuration from a TOML file and
// LOADER_* environment variables. Environment values win over the file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the environment variable prefix
const EnvPrefix = "loader"

// Config holds the daemon configuration
type Config struct {
	// MenuPath is the persisted menu catalog file
	MenuPath string `envconfig:"MENU_PATH"`
	// LegacyAppsPath is the older extra-apps list merged on regeneration
	LegacyAppsPath string `envconfig:"LEGACY_APPS_PATH"`
	// AppsRoot is the directory holding dynamically loaded images
	AppsRoot string `envconfig:"APPS_ROOT"`
	// Autorun is started once on a normal boot
	Autorun string `envconfig:"AUTORUN"`
	// BootMode is normal, dfu or update
	BootMode string `envconfig:"BOOT_MODE"`

	// APIMajor and APIMinor are the firmware API version
	APIMajor uint16 `envconfig:"API_MAJOR"`
	APIMinor uint16 `envconfig:"API_MINOR"`
	// Target is the hardware target
	Target uint16 `envconfig:"TARGET"`
	// MaxImageSize bounds a single image; zero disables the check
	MaxImageSize int64 `envconfig:"MAX_IMAGE_SIZE"`

	// OpenAttempts and OpenDelay are the retry policy for persisted files
	OpenAttempts uint          `envconfig:"OPEN_ATTEMPTS"`
	OpenDelay    time.Duration `envconfig:"OPEN_DELAY"`

	LogLevel       string `envconfig:"LOG_LEVEL"`
	LogDevelopment bool   `envconfig:"LOG_DEV"`

	// MetricsAddr serves Prometheus metrics when set
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		MenuPath:     "/ext/apps_data/menu_apps.txt",
		AppsRoot:     "/ext/apps/",
		BootMode:     "normal",
		APIMajor:     1,
		Target:       7,
		OpenAttempts: 3,
		OpenDelay:    50 * time.Millisecond,
		LogLevel:     "info",
	}
}

type fileConfig struct {
	MenuPath       string `toml:"menu_path"`
	LegacyAppsPath string `toml:"legacy_apps_path"`
	AppsRoot       string `toml:"apps_root"`
	Autorun        string `toml:"autorun"`
	BootMode       string `toml:"boot_mode"`
	APIMajor       uint16 `toml:"api_major"`
	APIMinor       uint16 `toml:"api_minor"`
	Target         uint16 `toml:"target"`
	MaxImageSize   int64  `toml:"max_image_size"`
	OpenAttempts   uint   `toml:"open_attempts"`
	OpenDelay      string `toml:"open_delay"`
	LogLevel       string `toml:"log_level"`
	LogDevelopment bool   `toml:"log_development"`
	MetricsAddr    string `toml:"metrics_addr"`
}

// Load reads path over the defaults, then applies the environment. An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load loader config: %w", err)
	}

	if meta.IsDefined("menu_path") {
		cfg.MenuPath = strings.TrimSpace(raw.MenuPath)
	}
	if meta.IsDefined("legacy_apps_path") {
		cfg.LegacyAppsPath = strings.TrimSpace(raw.LegacyAppsPath)
	}
	if meta.IsDefined("apps_root") {
		cfg.AppsRoot = strings.TrimSpace(raw.AppsRoot)
	}
	if meta.IsDefined("autorun") {
		cfg.Autorun = strings.TrimSpace(raw.Autorun)
	}
	if meta.IsDefined("boot_mode") {
		cfg.BootMode = strings.TrimSpace(raw.BootMode)
	}
	if meta.IsDefined("api_major") {
		cfg.APIMajor = raw.APIMajor
	}
	if meta.IsDefined("api_minor") {
		cfg.APIMinor = raw.APIMinor
	}
	if meta.IsDefined("target") {
		cfg.Target = raw.Target
	}
	if meta.IsDefined("max_image_size") {
		cfg.MaxImageSize = raw.MaxImageSize
	}
	if meta.IsDefined("open_attempts") {
		cfg.OpenAttempts = raw.OpenAttempts
	}
	if meta.IsDefined("open_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.OpenDelay))
		if err != nil {
			return fmt.Errorf("parse open_delay: %w", err)
		}
		cfg.OpenDelay = d
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_development") {
		cfg.LogDevelopment = raw.LogDevelopment
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	return nil
}

// Validate checks values that cannot be corrected later
func (c Config) Validate() error {
	switch c.BootMode {
	case "", "normal", "dfu", "update":
	default:
		return fmt.Errorf("invalid boot_mode %q", c.BootMode)
	}
	if c.OpenAttempts == 0 {
		return fmt.Errorf("open_attempts must be at least 1")
	}
	if c.OpenDelay < 0 {
		return fmt.Errorf("open_delay must not be negative")
	}
	return nil
}
