//go:build !portaudio

package playback

import "errors"

// ErrNoOutputDevice is returned when the binary was built without PortAudio.
var ErrNoOutputDevice = errors.New("audio output unavailable: rebuild with -tags portaudio")

// NewDeviceSink opens the default speaker. Without the portaudio build tag
// there is no device support.
func NewDeviceSink() (Sink, error) {
	return nil, ErrNoOutputDevice
}
