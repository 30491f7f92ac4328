package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "malgo", cfg.Audio.Backend)
	assert.Equal(t, "default", cfg.Audio.Device)
	assert.Equal(t, "s16le", cfg.Audio.Format)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, 44100, cfg.Audio.Rate)
	assert.Equal(t, -50.0, cfg.Activation.ThresholdDB)
	assert.Equal(t, 500, cfg.Activation.FadeoutMs)
	assert.Equal(t, "wav", cfg.Output.Format)
	assert.Equal(t, 0, cfg.Output.SplitS)

	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
audio:
  backend: portaudio
  format: u8
  rate: 8000
activation:
  threshold_db: -42
output:
  format: opus
  split_s: 60
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "portaudio", cfg.Audio.Backend)
	assert.Equal(t, "u8", cfg.Audio.Format)
	assert.Equal(t, 8000, cfg.Audio.Rate)
	assert.Equal(t, -42.0, cfg.Activation.ThresholdDB)
	assert.Equal(t, "opus", cfg.Output.Format)
	assert.Equal(t, 60, cfg.Output.SplitS)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, 500, cfg.Activation.FadeoutMs)
	assert.Equal(t, "rec-02-15:04:05", cfg.Output.Template)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio: [not a mapping"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadWithFallbackDefaults(t *testing.T) {
	// With no config file anywhere, fallback loading returns
	// defaults rather than an error.
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFallback("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadWithFallbackUserFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".svarrc"),
		[]byte("audio:\n  rate: 16000\n"), 0644))

	cfg, err := LoadWithFallback("")
	require.NoError(t, err)
	assert.Equal(t, 16000, cfg.Audio.Rate)
}

func TestValidate(t *testing.T) {
	check := func(mutate func(*Config)) error {
		cfg := DefaultConfig()
		mutate(cfg)
		return cfg.Validate()
	}

	assert.Error(t, check(func(c *Config) { c.Audio.Backend = "jack" }))
	assert.Error(t, check(func(c *Config) { c.Audio.Format = "f32" }))
	assert.Error(t, check(func(c *Config) { c.Audio.Channels = 0 }))
	assert.Error(t, check(func(c *Config) { c.Audio.Rate = -1 }))
	assert.Error(t, check(func(c *Config) { c.Activation.ThresholdDB = 3 }))
	assert.Error(t, check(func(c *Config) { c.Activation.FadeoutMs = -1 }))
	assert.Error(t, check(func(c *Config) { c.Output.Format = "mp3" }))
	assert.Error(t, check(func(c *Config) { c.Output.Template = "" }))
	assert.Error(t, check(func(c *Config) { c.Output.SplitS = -5 }))
	assert.Error(t, check(func(c *Config) { c.Output.Bitrate = 0 }))

	assert.NoError(t, check(func(c *Config) { c.Activation.ThresholdDB = 0 }))
	assert.NoError(t, check(func(c *Config) { c.Output.SplitS = 0 }))
}
