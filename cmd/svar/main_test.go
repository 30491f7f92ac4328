package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arkq/svar/internal/config"
	"github.com/arkq/svar/internal/pcm"
	"github.com/arkq/svar/internal/writer"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf, config.DefaultConfig(), pcm.FormatS16LE, writer.FormatWav, false)

	out := buf.String()
	assert.Contains(t, out, "Selected PCM device: default\n")
	assert.Contains(t, out, "Hardware parameters: 44100 Hz, S16LE, 1 channel\n")
	assert.Contains(t, out, "Output file format: WAV\n")
	assert.NotContains(t, out, "bit rate")
}

func TestPrintBannerChannels(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audio.Channels = 2
	cfg.Audio.Rate = 8000

	var buf bytes.Buffer
	printBanner(&buf, cfg, pcm.FormatU8, writer.FormatRaw, false)
	assert.Contains(t, buf.String(), "Hardware parameters: 8000 Hz, U8, 2 channels\n")
}

func TestPrintBannerMonitor(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf, config.DefaultConfig(), pcm.FormatS16LE, writer.FormatWav, true)

	// The signal meter records nothing, so no output file lines.
	out := buf.String()
	assert.Contains(t, out, "Selected PCM device: default\n")
	assert.NotContains(t, out, "Output file format")
}

func TestPrintBannerOpusBitrate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Bitrate = 96000

	var buf bytes.Buffer
	printBanner(&buf, cfg, pcm.FormatS16LE, writer.FormatOpus, false)

	out := buf.String()
	assert.Contains(t, out, "Output file format: Ogg/Opus\n")
	assert.Contains(t, out, "Output bit rate: 96 kbit/s\n")
}
