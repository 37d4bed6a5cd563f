package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the bootstrap configuration for the agent.
// It is loaded once at startup; the hot-reloadable part lives in Settings.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	API      APIConfig      `yaml:"api"`
	Settings SettingsConfig `yaml:"settings"`
	History  HistoryConfig  `yaml:"history"`
	TimeSync TimeSyncConfig `yaml:"time_sync"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// APIConfig contains the dashboard HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// CORSConfig lists the browser origins allowed to call the API.
// An empty list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// SettingsConfig locates the persisted runtime settings.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig contains the configuration history database settings.
// An empty Path disables history recording.
type HistoryConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TimeSyncConfig controls the one-shot clock sync performed before any
// TLS-capable sink connects.
type TimeSyncConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"`
}

// PipelineConfig tunes the ingestion → sink plumbing.
type PipelineConfig struct {
	// QueueCapacity bounds each per-sink delivery queue.
	QueueCapacity int `yaml:"queue_capacity"`

	// PollInterval is the sink loop tick in milliseconds.
	PollInterval int `yaml:"poll_interval_ms"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: EDGEAGENT_SECTION_KEY
// For example: EDGEAGENT_API_PORT, EDGEAGENT_SETTINGS_PATH
//
// A missing file is not an error: an embedded host may run on defaults alone.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8888,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Settings: SettingsConfig{
			Path: "/etc/edgeagent/settings.yaml",
		},
		History: HistoryConfig{
			Path:        "/var/lib/edgeagent/history.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		TimeSync: TimeSyncConfig{
			Enabled: true,
			URL:     "http://www.google.com",
			Timeout: 10,
		},
		Pipeline: PipelineConfig{
			QueueCapacity: 128,
			PollInterval:  100,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EDGEAGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EDGEAGENT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("EDGEAGENT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("EDGEAGENT_SETTINGS_PATH"); v != "" {
		cfg.Settings.Path = v
	}
	if v := os.Getenv("EDGEAGENT_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.Settings.Path == "" {
		errs = append(errs, "settings.path is required")
	}
	if c.Pipeline.QueueCapacity < 1 {
		errs = append(errs, "pipeline.queue_capacity must be positive")
	}
	if c.Pipeline.PollInterval < 1 {
		errs = append(errs, "pipeline.poll_interval_ms must be positive")
	}
	if c.TimeSync.Enabled && !strings.HasPrefix(c.TimeSync.URL, "http://") {
		// TLS cannot be trusted until the clock is right.
		errs = append(errs, "time_sync.url must be a plain http:// URL")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}

// GetPollInterval returns the sink loop tick as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Pipeline.PollInterval) * time.Millisecond
}
