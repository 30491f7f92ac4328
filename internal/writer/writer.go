// Package writer provides output file writers for captured PCM audio.
//
// A Writer serializes committed PCM batches into a concrete file
// format. Writers follow an open/write/close lifecycle: the recorder
// opens a file lazily when audio activates, writes whole batches, and
// closes the file on rotation or shutdown. Close is idempotent and
// finalizes any codec trailer.
package writer

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/arkq/svar/internal/pcm"
)

// Format is an output file format.
type Format int

const (
	// FormatRaw is headerless PCM data.
	FormatRaw Format = iota
	// FormatWav is a RIFF/WAVE container with PCM data.
	FormatWav
	// FormatOpus is an Ogg stream with Opus-encoded audio.
	FormatOpus
)

// ParseFormat converts a format name to a Format. Matching is
// case-insensitive. Format names without a built-in encoder (mp3, ogg,
// vorbis) are recognized but rejected with a dedicated error.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "raw":
		return FormatRaw, nil
	case "wav":
		return FormatWav, nil
	case "opus":
		return FormatOpus, nil
	case "mp3", "ogg", "vorbis":
		return 0, fmt.Errorf("output format not supported in this build: %s", name)
	}
	return 0, fmt.Errorf("unknown output format: %s (valid: raw, wav, opus)", name)
}

// Extension returns the file name extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatWav:
		return "wav"
	case FormatOpus:
		return "opus"
	}
	return "unknown"
}

// String returns a human-readable format label.
func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "Raw PCM"
	case FormatWav:
		return "WAV"
	case FormatOpus:
		return "Ogg/Opus"
	}
	return "unknown"
}

// Writer serializes PCM batches to an output file.
type Writer interface {
	// Open creates the output file at the given path, closing any
	// previously opened file first.
	Open(path string) error
	// Write appends frames audio frames from the PCM buffer. It
	// returns the number of frames written.
	Write(pcm []byte, frames int) (int, error)
	// Close finalizes and closes the current output file. It is safe
	// to call on an already-closed writer.
	Close() error
	// Format returns the output format of this writer.
	Format() Format
}

// Options carries encoder settings used by compressed formats.
type Options struct {
	// Bitrate is the target encoder bitrate in bits per second.
	Bitrate int
}

// New creates a writer for the given output format. Unsupported
// format/parameter combinations are reported here, before any capture
// starts.
func New(format Format, f pcm.Format, channels, rate int, opts Options) (Writer, error) {
	switch format {
	case FormatRaw:
		return newRawWriter(f, channels), nil
	case FormatWav:
		return newWavWriter(f, channels, rate)
	case FormatOpus:
		return newOpusWriter(f, channels, rate, opts.Bitrate)
	}
	return nil, fmt.Errorf("unknown output format: %d", format)
}

// rawWriter dumps PCM frames to a file without any framing.
type rawWriter struct {
	frameSize int
	f         *os.File
	bw        *bufio.Writer
}

func newRawWriter(f pcm.Format, channels int) *rawWriter {
	return &rawWriter{frameSize: f.Size(channels)}
}

func (w *rawWriter) Format() Format {
	return FormatRaw
}

func (w *rawWriter) Open(path string) error {
	if err := w.Close(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	w.f = f
	w.bw = bufio.NewWriter(f)
	return nil
}

func (w *rawWriter) Write(pcm []byte, frames int) (int, error) {
	if _, err := w.bw.Write(pcm[:frames*w.frameSize]); err != nil {
		return 0, fmt.Errorf("failed to write PCM data: %w", err)
	}
	return frames, nil
}

func (w *rawWriter) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.bw.Flush()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f = nil
	w.bw = nil
	return err
}
