package writer

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/arkq/svar/internal/pcm"
)

// wavWriter writes PCM frames into a RIFF/WAVE container using the
// go-audio encoder. The WAVE header is finalized on Close.
type wavWriter struct {
	format   pcm.Format
	channels int
	rate     int
	bitDepth int

	f   *os.File
	enc *wav.Encoder
	// scratch buffer for byte to int sample conversion
	samples []int
}

func newWavWriter(f pcm.Format, channels, rate int) (*wavWriter, error) {
	var bitDepth int
	switch f {
	case pcm.FormatU8:
		bitDepth = 8
	case pcm.FormatS16LE:
		bitDepth = 16
	default:
		return nil, fmt.Errorf("PCM format not supported by WAV writer: %s", f)
	}
	return &wavWriter{
		format:   f,
		channels: channels,
		rate:     rate,
		bitDepth: bitDepth,
	}, nil
}

func (w *wavWriter) Format() Format {
	return FormatWav
}

func (w *wavWriter) Open(path string) error {
	if err := w.Close(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	w.f = f
	w.enc = wav.NewEncoder(f, w.rate, w.bitDepth, w.channels, 1)
	return nil
}

func (w *wavWriter) Write(buf []byte, frames int) (int, error) {
	n := frames * w.channels
	if cap(w.samples) < n {
		w.samples = make([]int, n)
	}
	samples := w.samples[:n]

	switch w.format {
	case pcm.FormatU8:
		for i := 0; i < n; i++ {
			samples[i] = int(buf[i])
		}
	case pcm.FormatS16LE:
		for i := 0; i < n; i++ {
			samples[i] = int(int16(buf[i*2]) | int16(buf[i*2+1])<<8)
		}
	}

	err := w.enc.Write(&audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: w.channels,
			SampleRate:  w.rate,
		},
		Data:           samples,
		SourceBitDepth: w.bitDepth,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode WAV data: %w", err)
	}
	return frames, nil
}

func (w *wavWriter) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.enc.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f = nil
	w.enc = nil
	return err
}
