//go:build !portaudio

package capture

import (
	"context"
	"fmt"
	"time"
)

// Microphone is unavailable without the portaudio build tag.
type Microphone struct{}

// NewMicrophone returns the default input device. Without the portaudio
// build tag every Open fails with ErrDeviceUnavailable.
func NewMicrophone(_ time.Duration) AudioSource {
	return Microphone{}
}

// Open implements AudioSource.
func (Microphone) Open(_ context.Context) error {
	return fmt.Errorf("%w: rebuild with -tags portaudio", ErrDeviceUnavailable)
}

// Read implements AudioSource.
func (Microphone) Read(_ context.Context) ([]byte, error) {
	return nil, ErrNotOpen
}

// Close implements AudioSource.
func (Microphone) Close() error {
	return nil
}
