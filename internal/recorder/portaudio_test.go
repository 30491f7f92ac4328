package recorder

import (
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
)

func TestIsDefaultDevice(t *testing.T) {
	mic := &portaudio.DeviceInfo{Name: "USB Microphone"}

	// Distinct DeviceInfo values describing the same device still
	// match; a missing default matches nothing.
	assert.True(t, isDefaultDevice(mic, &portaudio.DeviceInfo{Name: "USB Microphone"}))
	assert.False(t, isDefaultDevice(mic, &portaudio.DeviceInfo{Name: "Line In"}))
	assert.False(t, isDefaultDevice(mic, nil))
}
