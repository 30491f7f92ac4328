package recorder

import (
	"fmt"
	"strings"
)

// Backend is a capture source feeding PCM batches into a Session.
//
// Two programming models hide behind this interface: pull backends own
// their flow of control and block on device reads (PortAudio), while
// push backends let the device middleware invoke a callback per ready
// batch (malgo). Either way, every captured batch ends up in
// Session.Process.
type Backend interface {
	// Open opens the capture device and negotiates the session's
	// format, channel count and sampling rate.
	Open(device string) error
	// Start runs the capture until the session is stopped or a fatal
	// capture error occurs. It blocks for the whole capture lifetime.
	Start() error
	// Stop makes a blocked Start return. It does not release the
	// device.
	Stop()
	// Devices returns a human-readable listing of available capture
	// devices, with the default device marked.
	Devices() (string, error)
	// Close releases the device and any backend resources.
	Close() error
}

// NewBackend creates a capture backend by name for the given session.
func NewBackend(name string, s *Session) (Backend, error) {
	switch strings.ToLower(name) {
	case "malgo":
		return newMalgoBackend(s)
	case "portaudio":
		return newPortAudioBackend(s)
	}
	return nil, fmt.Errorf("unknown capture backend: %s (valid: malgo, portaudio)", name)
}
