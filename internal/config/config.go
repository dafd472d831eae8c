package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the tracking service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Automation AutomationConfig `yaml:"automation"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TrackingConfig holds settings for generated tracking URLs.
type TrackingConfig struct {
	// PublicBaseURL is the externally reachable base URL embedded in
	// generated pixel and click links, e.g. "https://track.example.com".
	PublicBaseURL string `yaml:"public_base_url"`
}

// AutomationConfig holds the downstream automation system's webhook settings.
type AutomationConfig struct {
	BaseURL        string `yaml:"base_url"`
	WebhookSecret  string `yaml:"webhook_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Load reads and parses the configuration file. A missing file is not an
// error: the service can run entirely from environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Automation.TimeoutSeconds == 0 {
		cfg.Automation.TimeoutSeconds = 30
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Tracking.PublicBaseURL = v
	}
	if v := os.Getenv("AUTOMATION_BASE_URL"); v != "" {
		cfg.Automation.BaseURL = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Automation.WebhookSecret = v
	}

	cfg.Tracking.PublicBaseURL = strings.TrimRight(cfg.Tracking.PublicBaseURL, "/")
	cfg.Automation.BaseURL = strings.TrimRight(cfg.Automation.BaseURL, "/")

	return cfg, nil
}

// Validate checks that settings required for event forwarding are present.
func (c *Config) Validate() error {
	if c.Automation.BaseURL == "" {
		return fmt.Errorf("automation base URL is required (AUTOMATION_BASE_URL)")
	}
	if c.Automation.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required (WEBHOOK_SECRET)")
	}
	return nil
}
