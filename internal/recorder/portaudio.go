package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/arkq/svar/internal/pcm"
)

// portAudioBackend is a pull-style capture backend. A dedicated flow
// of control blocks on the device read and pushes every batch into the
// session pipeline. Recoverable overruns are retried after recovery; a
// disconnected device ends the capture.
type portAudioBackend struct {
	session *Session
	stream  *portaudio.Stream

	// typed read buffers; only one is active, per the PCM format
	bufU8  []uint8
	bufS16 []int16
	// batch converted to raw little-endian bytes
	raw []byte
}

func newPortAudioBackend(s *Session) (*portAudioBackend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioBackend{session: s}, nil
}

// lookupDevice resolves a device name to a PortAudio input device. The
// name may be "default", a numeric device index, or a case-insensitive
// name substring.
func (b *portAudioBackend) lookupDevice(device string) (*portaudio.DeviceInfo, error) {
	if device == "" || device == "default" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return info, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	if id, err := strconv.Atoi(device); err == nil {
		if id < 0 || id >= len(devices) || devices[id].MaxInputChannels < 1 {
			return nil, fmt.Errorf("invalid capture device ID: %s", device)
		}
		return devices[id], nil
	}

	for _, info := range devices {
		if info.MaxInputChannels > 0 &&
			strings.Contains(strings.ToLower(info.Name), strings.ToLower(device)) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("no capture device matching name: %s", device)
}

func (b *portAudioBackend) Open(device string) error {
	info, err := b.lookupDevice(device)
	if err != nil {
		return err
	}

	s := b.session
	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = s.Channels()
	params.SampleRate = float64(s.Rate())
	params.FramesPerBuffer = s.BatchFrames()

	samples := s.BatchFrames() * s.Channels()
	b.raw = make([]byte, s.Format().Size(samples))

	var stream *portaudio.Stream
	switch s.Format() {
	case pcm.FormatU8:
		b.bufU8 = make([]uint8, samples)
		stream, err = portaudio.OpenStream(params, b.bufU8)
	case pcm.FormatS16LE:
		b.bufS16 = make([]int16, samples)
		stream, err = portaudio.OpenStream(params, b.bufS16)
	default:
		return fmt.Errorf("PCM format not supported by PortAudio backend: %s", s.Format())
	}
	if err != nil {
		return fmt.Errorf("failed to open PortAudio stream: %w", err)
	}

	b.stream = stream
	return nil
}

// batch converts the last device read into raw little-endian PCM.
func (b *portAudioBackend) batch() []byte {
	if b.bufU8 != nil {
		copy(b.raw, b.bufU8)
		return b.raw
	}
	for i, v := range b.bufS16 {
		binary.LittleEndian.PutUint16(b.raw[i*2:], uint16(v))
	}
	return b.raw
}

// Start runs the blocking capture loop until the session stops or a
// fatal device error occurs.
func (b *portAudioBackend) Start() error {
	if err := b.stream.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio stream: %w", err)
	}
	defer b.stream.Stop()

	log := b.session.log
	for b.session.Running() {
		if err := b.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				// Transient overrun, the device recovers by itself.
				log.Warn("PCM buffer overrun", "error", err)
				continue
			}
			if errors.Is(err, portaudio.DeviceUnavailable) {
				return fmt.Errorf("PCM read error: device disconnected: %w", err)
			}
			log.Error("PCM read error", "error", err)
			continue
		}
		if !b.session.Process(b.batch()) {
			break
		}
	}
	return nil
}

// Stop lets the capture loop terminate on its next wakeup. The
// blocking read returns after at most one batch period.
func (b *portAudioBackend) Stop() {}

func (b *portAudioBackend) Devices() (string, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate devices: %w", err)
	}

	var def *portaudio.DeviceInfo
	if info, err := portaudio.DefaultInputDevice(); err == nil {
		def = info
	}

	var sb strings.Builder
	for id, info := range devices {
		if info.MaxInputChannels < 1 {
			continue
		}
		marker := ""
		if isDefaultDevice(info, def) {
			marker = " / default"
		}
		fmt.Fprintf(&sb, "%d%s\n    %s\n", id, marker, info.Name)
	}
	return sb.String(), nil
}

// isDefaultDevice reports whether info is the default capture device.
// Devices are compared by name, as the library does not guarantee
// stable DeviceInfo pointers between enumeration calls.
func isDefaultDevice(info, def *portaudio.DeviceInfo) bool {
	return def != nil && info.Name == def.Name
}

func (b *portAudioBackend) Close() error {
	var err error
	if b.stream != nil {
		err = b.stream.Close()
		b.stream = nil
	}
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
