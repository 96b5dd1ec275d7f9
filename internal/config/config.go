package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Capture settings
	Capture struct {
		// MicDevice optionally pins microphone capture to a named device
		MicDevice string `yaml:"mic_device"`

		// MonitorDevice optionally pins screen-share capture to a named
		// monitor input
		MonitorDevice string `yaml:"monitor_device"`

		// RingName is the shared-memory segment fed by the virtual driver
		RingName string `yaml:"ring_name"`

		// Duplex captures both system output and microphone; off means
		// microphone only
		Duplex bool `yaml:"duplex"`
	} `yaml:"capture"`

	// Echo cancellation settings
	Echo struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"echo"`

	// Meter settings
	Meter struct {
		Enabled bool `yaml:"enabled"`
		// SilenceThreshold is the RMS level below which a frame counts
		// as silent
		SilenceThreshold float64 `yaml:"silence_threshold"`
	} `yaml:"meter"`

	// Output settings
	Output struct {
		// Format is one of raw, pcm16, wav
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"output"`

	// Hotkey settings
	Hotkey struct {
		Enabled bool `yaml:"enabled"`
		// Combo is the toggle combination, e.g. "ctrl+shift+space"
		Combo string `yaml:"combo"`
	} `yaml:"hotkey"`

	// Logging settings
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Capture defaults
	cfg.Capture.MicDevice = ""
	cfg.Capture.MonitorDevice = ""
	cfg.Capture.RingName = ""
	cfg.Capture.Duplex = true

	// Echo defaults
	cfg.Echo.Enabled = true

	// Meter defaults
	cfg.Meter.Enabled = true
	cfg.Meter.SilenceThreshold = 0.003

	// Output defaults
	cfg.Output.Format = "wav"
	cfg.Output.File = ""

	// Hotkey defaults
	cfg.Hotkey.Enabled = false
	cfg.Hotkey.Combo = "ctrl+shift+space"

	// Logging defaults
	cfg.Log.Level = "info"

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.echotaprc > /etc/echotap/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	// If explicit path is provided, use it
	if explicitPath != "" {
		return Load(explicitPath)
	}

	// Try user config (~/.echotaprc)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".echotaprc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	// Try system config (/etc/echotap/config.yaml)
	systemConfigPath := "/etc/echotap/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
