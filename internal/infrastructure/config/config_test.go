package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
logging:
  level: "debug"
  format: "text"
api:
  host: "127.0.0.1"
  port: 9000
settings:
  path: "/tmp/settings.yaml"
pipeline:
  queue_capacity: 64
  poll_interval_ms: 50
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agent.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Settings.Path != "/tmp/settings.yaml" {
		t.Errorf("Settings.Path = %q, want %q", cfg.Settings.Path, "/tmp/settings.yaml")
	}
	if cfg.Pipeline.QueueCapacity != 64 {
		t.Errorf("Pipeline.QueueCapacity = %d, want 64", cfg.Pipeline.QueueCapacity)
	}
	if got := cfg.GetPollInterval(); got != 50*time.Millisecond {
		t.Errorf("GetPollInterval() = %v, want 50ms", got)
	}
	if got := cfg.API.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("API.GetReadTimeout() = %v, want default 10s", got)
	}
	// Untouched sections keep defaults.
	if !cfg.TimeSync.Enabled {
		t.Error("TimeSync.Enabled = false, want default true")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.QueueCapacity != 128 {
		t.Errorf("Pipeline.QueueCapacity = %d, want 128", cfg.Pipeline.QueueCapacity)
	}
	if cfg.API.Port != 8888 {
		t.Errorf("API.Port = %d, want 8888", cfg.API.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agent.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EDGEAGENT_API_PORT", "9100")
	t.Setenv("EDGEAGENT_SETTINGS_PATH", "/run/settings.yaml")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.Settings.Path != "/run/settings.yaml" {
		t.Errorf("Settings.Path = %q, want /run/settings.yaml", cfg.Settings.Path)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "empty settings path",
			mutate:  func(c *Config) { c.Settings.Path = "" },
			wantErr: true,
		},
		{
			name:    "zero queue capacity",
			mutate:  func(c *Config) { c.Pipeline.QueueCapacity = 0 },
			wantErr: true,
		},
		{
			name:    "https time sync url",
			mutate:  func(c *Config) { c.TimeSync.URL = "https://example.com" },
			wantErr: true,
		},
		{
			name: "https url allowed when sync disabled",
			mutate: func(c *Config) {
				c.TimeSync.Enabled = false
				c.TimeSync.URL = "https://example.com"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
