// Package config loads and validates the application configuration
// from YAML, with CLI flags layered on top by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/arkq/svar/internal/pcm"
	"github.com/arkq/svar/internal/writer"
)

// Config represents the application configuration
type Config struct {
	// Audio capture settings
	Audio struct {
		Backend  string `yaml:"backend"`
		Device   string `yaml:"device"`
		Format   string `yaml:"format"`
		Channels int    `yaml:"channels"`
		Rate     int    `yaml:"rate"`
	} `yaml:"audio"`

	// Voice activation settings
	Activation struct {
		// activation threshold in dBFS, at or below 0
		ThresholdDB float64 `yaml:"threshold_db"`
		// how long recording continues after the signal drops below
		// the threshold, in milliseconds
		FadeoutMs int `yaml:"fadeout_ms"`
	} `yaml:"activation"`

	// Output settings
	Output struct {
		Format string `yaml:"format"`
		// file name template, a Go time layout; the format extension
		// is appended automatically
		Template string `yaml:"template"`
		// maximum output file duration in seconds, 0 disables
		// splitting
		SplitS int `yaml:"split_s"`
		// encoder bitrate in bits per second, for compressed formats
		Bitrate int `yaml:"bitrate"`
	} `yaml:"output"`

	Verbose int `yaml:"verbose"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Audio.Backend = "malgo"
	cfg.Audio.Device = "default"
	cfg.Audio.Format = "s16le"
	cfg.Audio.Channels = 1
	cfg.Audio.Rate = 44100

	cfg.Activation.ThresholdDB = -50.0
	cfg.Activation.FadeoutMs = 500

	cfg.Output.Format = "wav"
	cfg.Output.Template = "rec-02-15:04:05"
	cfg.Output.SplitS = 0
	cfg.Output.Bitrate = 64000

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
// Priority: explicit path > ~/.svarrc > /etc/svar/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	// If explicit path is provided, use it
	if explicitPath != "" {
		return Load(explicitPath)
	}

	// Try user config (~/.svarrc)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".svarrc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	// Try system config (/etc/svar/config.yaml)
	systemConfigPath := "/etc/svar/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// Validate checks the configuration before the capture device is
// opened, so mistakes surface as a single clear diagnostic instead of
// a failed recording.
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case "malgo", "portaudio":
	default:
		return fmt.Errorf("unknown capture backend: %s (valid: malgo, portaudio)", c.Audio.Backend)
	}

	if _, err := pcm.ParseFormat(c.Audio.Format); err != nil {
		return err
	}
	if c.Audio.Channels < 1 {
		return fmt.Errorf("invalid channel count: %d", c.Audio.Channels)
	}
	if c.Audio.Rate <= 0 {
		return fmt.Errorf("invalid sampling rate: %d", c.Audio.Rate)
	}

	if c.Activation.ThresholdDB > 0 {
		return fmt.Errorf("invalid activation threshold: %g dB (must be at or below 0)", c.Activation.ThresholdDB)
	}
	if c.Activation.FadeoutMs < 0 {
		return fmt.Errorf("invalid fadeout time: %d ms", c.Activation.FadeoutMs)
	}

	if _, err := writer.ParseFormat(c.Output.Format); err != nil {
		return err
	}
	if c.Output.Template == "" {
		return fmt.Errorf("output file template must not be empty")
	}
	if c.Output.SplitS < 0 {
		return fmt.Errorf("invalid split time: %d s", c.Output.SplitS)
	}
	if c.Output.Bitrate <= 0 {
		return fmt.Errorf("invalid bitrate: %d", c.Output.Bitrate)
	}

	return nil
}
