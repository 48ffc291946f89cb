package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the engine tunables read from config.yaml. Everything
// has a working default; the file only overrides.
type Config struct {
	Engine struct {
		CountdownFrom        int `yaml:"countdown_from"`
		CountdownTickSeconds int `yaml:"countdown_tick_seconds"`
		RevertWindowSeconds  int `yaml:"revert_window_seconds"`
		ScanIntervalSeconds  int `yaml:"scan_interval_seconds"`
		LeadTimeMinutes      int `yaml:"lead_time_minutes"`
	} `yaml:"engine"`

	Gateway struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"gateway"`

	Reporting struct {
		Startgg   bool `yaml:"startgg"`
		Challonge bool `yaml:"challonge"`
	} `yaml:"reporting"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig reads the yaml config. A missing file is fine; the
// defaults carry a full deployment.
func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}
