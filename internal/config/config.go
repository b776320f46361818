// Package config loads the closed set of recognized configuration options
// as an explicit value built once at initialization, rather than consulting
// ad-hoc environment lookups scattered through the codebase.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for pricebars. Every field here is
// a recognized option; there is no passthrough for arbitrary keys.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	HTTP      HTTP      `yaml:"http"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Logging   Logging   `yaml:"logging"`
}

// Storage holds paths for the bar store and credential files.
type Storage struct {
	DBPath    string `yaml:"db_path"`
	ConfigDir string `yaml:"config_dir"`
}

// HTTP controls provider adapter HTTP behavior.
type HTTP struct {
	Timeout          time.Duration `yaml:"http_timeout"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`
	RetryBackoffCap  time.Duration `yaml:"retry_backoff_cap"`
}

// RateLimit holds the per-provider pacing knobs.
type RateLimit struct {
	InterRequestDelay      time.Duration `yaml:"inter_request_delay"`
	LongPauseEveryNCalls   int           `yaml:"long_pause_every_n_calls"`
	LongPauseSeconds       time.Duration `yaml:"long_pause_seconds"`
	TiingoRPMWarnThreshold int           `yaml:"tiingo_rpm_warn_threshold"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present, matching
// spec.md's stated defaults (store at ~/.config/market-data/prices.db,
// 30s HTTP timeout, three retry attempts with 1s base/10s cap backoff,
// barchart's documented 2s/30-every-10 pacing).
func Default() *Config {
	home, _ := os.UserHomeDir()
	configDir := home + "/.config/market-data"
	return &Config{
		Storage: Storage{
			DBPath:    configDir + "/prices.db",
			ConfigDir: configDir,
		},
		HTTP: HTTP{
			Timeout:          30 * time.Second,
			RetryAttempts:    3,
			RetryBackoffBase: time.Second,
			RetryBackoffCap:  10 * time.Second,
		},
		RateLimit: RateLimit{
			InterRequestDelay:      2 * time.Second,
			LongPauseEveryNCalls:   10,
			LongPauseSeconds:       30 * time.Second,
			TiingoRPMWarnThreshold: 0,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads the YAML configuration file at path, merges it over Default(),
// and applies environment variable overrides. A missing file is not an
// error: the defaults (plus any env overrides) are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
			return nil, unmarshalErr
		}
	case os.IsNotExist(err):
		// no config file: defaults stand
	default:
		return nil, err
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks the environment variables matching the closed
// configuration set and overrides the corresponding fields when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRICEBARS_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("PRICEBARS_CONFIG_DIR"); v != "" {
		cfg.Storage.ConfigDir = v
	}
	if v := os.Getenv("PRICEBARS_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("PRICEBARS_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.HTTP.RetryAttempts = n
		}
	}
	if v := os.Getenv("PRICEBARS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PRICEBARS_TIINGO_RPM_WARN_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RateLimit.TiingoRPMWarnThreshold = n
		}
	}
}
