package writer

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"

	"github.com/arkq/svar/internal/pcm"
)

// maxOpusPacket is the largest payload a single Opus frame can occupy.
const maxOpusPacket = 4000

// opusWriter encodes PCM frames with the Opus codec and packages the
// frames into an Ogg stream. Audio is encoded in 20 ms frames; the
// trailing partial frame is zero-padded on Close.
type opusWriter struct {
	channels int
	rate     int
	bitrate  int
	// samples per 20 ms frame, all channels
	frameSamples int

	enc *opus.Encoder
	ogg *oggwriter.OggWriter

	pending []int16
	payload []byte
	seq     uint16
	ts      uint32
}

func newOpusWriter(f pcm.Format, channels, rate, bitrate int) (*opusWriter, error) {
	if f != pcm.FormatS16LE {
		return nil, fmt.Errorf("PCM format not supported by Opus writer: %s", f)
	}
	if channels > 2 {
		return nil, fmt.Errorf("channel count not supported by Opus writer: %d", channels)
	}
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("sampling rate not supported by Opus writer: %d", rate)
	}
	return &opusWriter{
		channels:     channels,
		rate:         rate,
		bitrate:      bitrate,
		frameSamples: rate / 50 * channels,
		payload:      make([]byte, maxOpusPacket),
	}, nil
}

func (w *opusWriter) Format() Format {
	return FormatOpus
}

func (w *opusWriter) Open(path string) error {
	if err := w.Close(); err != nil {
		return err
	}

	enc, err := opus.NewEncoder(w.rate, w.channels, opus.AppAudio)
	if err != nil {
		return fmt.Errorf("failed to create Opus encoder: %w", err)
	}
	if err := enc.SetBitrate(w.bitrate); err != nil {
		return fmt.Errorf("failed to set Opus bitrate: %w", err)
	}

	ogg, err := oggwriter.New(path, uint32(w.rate), uint16(w.channels))
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	w.enc = enc
	w.ogg = ogg
	w.pending = w.pending[:0]
	return nil
}

func (w *opusWriter) Write(buf []byte, frames int) (int, error) {
	n := frames * w.channels
	for i := 0; i < n; i++ {
		w.pending = append(w.pending, int16(buf[i*2])|int16(buf[i*2+1])<<8)
	}

	for len(w.pending) >= w.frameSamples {
		if err := w.encodeFrame(w.pending[:w.frameSamples]); err != nil {
			return 0, err
		}
		w.pending = w.pending[:copy(w.pending, w.pending[w.frameSamples:])]
	}

	return frames, nil
}

func (w *opusWriter) encodeFrame(frame []int16) error {
	n, err := w.enc.Encode(frame, w.payload)
	if err != nil {
		return fmt.Errorf("failed to encode Opus frame: %w", err)
	}

	// The Ogg writer consumes Opus frames carried as RTP payloads. The
	// frame duration is encoded in the Opus TOC byte, so only the
	// payload itself matters for the granule position.
	w.seq++
	w.ts += uint32(w.frameSamples / w.channels)
	return w.ogg.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: w.seq,
			Timestamp:      w.ts,
		},
		Payload: w.payload[:n],
	})
}

func (w *opusWriter) Close() error {
	if w.ogg == nil {
		return nil
	}

	var err error
	if len(w.pending) > 0 {
		// Pad the trailing partial frame with silence.
		frame := make([]int16, w.frameSamples)
		copy(frame, w.pending)
		err = w.encodeFrame(frame)
		w.pending = w.pending[:0]
	}

	if cerr := w.ogg.Close(); err == nil {
		err = cerr
	}
	w.ogg = nil
	w.enc = nil
	return err
}
