package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfigFile overlays settings from a YAML file onto cfg. Keys absent
// from the file keep their current value.
func LoadConfigFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return cfg, fmt.Errorf("read server config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("server config: listen_addr is required")
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("server config: write_timeout must not be negative")
	}
	if c.TextRate < 0 {
		return fmt.Errorf("server config: text_rate must not be negative")
	}
	if c.TextRate > 0 && c.TextBurst < 1 {
		return fmt.Errorf("server config: text_burst must be at least 1 when text_rate is set")
	}
	return nil
}

// ExportConfigYAML renders cfg in the format LoadConfigFile reads.
func ExportConfigYAML(cfg Config) ([]byte, error) {
	return yaml.Marshal(&cfg)
}
