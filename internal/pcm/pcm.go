// Package pcm provides sample format descriptions and signal level
// measurement for raw PCM audio.
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Format is a PCM sample encoding supported by the capture pipeline.
type Format int

const (
	// FormatU8 is unsigned 8-bit PCM (0x80 bias).
	FormatU8 Format = iota
	// FormatS16LE is signed 16-bit little-endian PCM.
	FormatS16LE
)

// SilenceDB is the level reported for exact silence, so the dB
// conversion never has to divide by zero.
const SilenceDB = -96.0

// ParseFormat converts a format name to a Format. Matching is
// case-insensitive.
func ParseFormat(name string) (Format, error) {
	switch strings.ToUpper(name) {
	case "U8":
		return FormatU8, nil
	case "S16LE":
		return FormatS16LE, nil
	}
	return 0, fmt.Errorf("unknown PCM format: %s (valid: U8, S16LE)", name)
}

// String returns the canonical format name.
func (f Format) String() string {
	switch f {
	case FormatU8:
		return "U8"
	case FormatS16LE:
		return "S16LE"
	}
	return "INVALID"
}

// Width returns the size of a single sample in bytes.
func (f Format) Width() int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16LE:
		return 2
	}
	return 0
}

// Size returns the number of bytes occupied by the given number of samples.
func (f Format) Size(samples int) int {
	return f.Width() * samples
}

// max returns the maximum representable sample magnitude, used for
// level normalization.
func (f Format) max() float64 {
	switch f {
	case FormatU8:
		return 127
	case FormatS16LE:
		return 32767
	}
	return 1
}

// RMSDB computes the RMS amplitude of the buffer and converts it to
// dBFS via 20*log10(rms/max). A zero-length buffer or exact silence
// yields SilenceDB. The buffer length must be a multiple of the sample
// width; trailing partial bytes are ignored.
func RMSDB(f Format, buf []byte) float64 {
	var sum float64
	var n int

	switch f {
	case FormatU8:
		n = len(buf)
		for _, b := range buf {
			v := float64(int(b) - 0x80)
			sum += v * v
		}
	case FormatS16LE:
		n = len(buf) / 2
		for i := 0; i < n; i++ {
			v := float64(int16(binary.LittleEndian.Uint16(buf[i*2:])))
			sum += v * v
		}
	}

	if n == 0 {
		return SilenceDB
	}

	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return SilenceDB
	}
	return 20 * math.Log10(rms/f.max())
}
