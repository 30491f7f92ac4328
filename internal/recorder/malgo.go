package recorder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/arkq/svar/internal/pcm"
)

// malgoBackend is a push-style capture backend built on miniaudio. The
// library owns the capture scheduling and invokes the data callback
// for every ready batch; the callback only runs the fixed pipeline
// work (gate check and ring-buffer write) and returns promptly.
type malgoBackend struct {
	session *Session

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newMalgoBackend(s *Session) (*malgoBackend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	return &malgoBackend{
		session: s,
		ctx:     ctx,
		stopCh:  make(chan struct{}),
	}, nil
}

func (b *malgoBackend) pcmFormat() (malgo.FormatType, error) {
	switch b.session.Format() {
	case pcm.FormatU8:
		return malgo.FormatU8, nil
	case pcm.FormatS16LE:
		return malgo.FormatS16, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("PCM format not supported by malgo backend: %s", b.session.Format())
}

// Open initializes the capture device. The device may be selected by a
// case-insensitive name substring; an empty name or "default" selects
// the system default.
func (b *malgoBackend) Open(device string) error {
	format, err := b.pcmFormat()
	if err != nil {
		return err
	}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.Capture.Format = format
	config.Capture.Channels = uint32(b.session.Channels())
	config.SampleRate = uint32(b.session.Rate())
	config.PeriodSizeInFrames = uint32(b.session.BatchFrames())

	if device != "" && device != "default" {
		infos, err := b.ctx.Devices(malgo.Capture)
		if err != nil {
			return fmt.Errorf("failed to enumerate devices: %w", err)
		}
		found := false
		for _, info := range infos {
			if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(device)) {
				config.Capture.DeviceID = info.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no capture device matching name: %s", device)
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			b.session.Process(input)
		},
	}

	dev, err := malgo.InitDevice(b.ctx.Context, config, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	b.device = dev
	return nil
}

// Start begins the capture and blocks until Stop is called. Capture
// batches are delivered by the malgo data callback.
func (b *malgoBackend) Start() error {
	if err := b.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	<-b.stopCh
	return nil
}

func (b *malgoBackend) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	if b.device != nil {
		_ = b.device.Stop()
	}
}

func (b *malgoBackend) Devices() (string, error) {
	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return "", fmt.Errorf("failed to enumerate devices: %w", err)
	}

	var sb strings.Builder
	for _, info := range infos {
		marker := ""
		if info.IsDefault > 0 {
			marker = " / default"
		}
		fmt.Fprintf(&sb, "%s%s\n", info.Name(), marker)
	}
	return sb.String(), nil
}

func (b *malgoBackend) Close() error {
	if b.device != nil {
		b.device.Uninit()
		b.device = nil
	}
	if b.ctx != nil {
		err := b.ctx.Uninit()
		b.ctx.Free()
		b.ctx = nil
		if err != nil {
			return fmt.Errorf("failed to release malgo context: %w", err)
		}
	}
	return nil
}
