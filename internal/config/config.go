// Package config loads the client configuration: defaults, then an optional
// yaml file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerWSURL string `yaml:"server_ws_url" env:"GRIDLINK_WS_URL"`
	APIBaseURL  string `yaml:"api_base_url" env:"GRIDLINK_API_URL"`
	DataDir     string `yaml:"data_dir" env:"GRIDLINK_DATA_DIR"`

	HeartbeatInterval Duration `yaml:"heartbeat_interval" env:"GRIDLINK_HEARTBEAT_INTERVAL"`
	TickDuration      Duration `yaml:"tick_duration" env:"GRIDLINK_TICK_DURATION"`

	// Session event log (jsonl.zst). Empty disables it.
	EventLogDir string `yaml:"event_log_dir" env:"GRIDLINK_EVENT_LOG_DIR"`
}

func defaults() Config {
	return Config{
		ServerWSURL:       "wss://play.gridlink.io/v1/ws",
		APIBaseURL:        "https://play.gridlink.io",
		DataDir:           "data",
		HeartbeatInterval: Duration(15 * time.Second),
		TickDuration:      Duration(200 * time.Millisecond),
	}
}

// Load reads the yaml file at path (optional, skipped when empty) and then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config.yaml: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config env: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	c.ServerWSURL = strings.TrimSpace(c.ServerWSURL)
	c.APIBaseURL = strings.TrimSpace(c.APIBaseURL)
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = Duration(15 * time.Second)
	}
	if c.TickDuration <= 0 {
		c.TickDuration = Duration(200 * time.Millisecond)
	}
}

func (c Config) Validate() error {
	if c.ServerWSURL == "" {
		return fmt.Errorf("server_ws_url is required")
	}
	if !strings.HasPrefix(c.ServerWSURL, "ws://") && !strings.HasPrefix(c.ServerWSURL, "wss://") {
		return fmt.Errorf("server_ws_url must be ws:// or wss://: %s", c.ServerWSURL)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	return nil
}
