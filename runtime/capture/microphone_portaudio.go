//go:build portaudio

package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/providers/gemini"
)

// Microphone reads the default input device through PortAudio.
type Microphone struct {
	frameDuration time.Duration

	mu     sync.Mutex
	stream *portaudio.Stream
	in     []int16
}

// NewMicrophone returns the default input device producing frames of
// frameDuration (100ms when zero).
func NewMicrophone(frameDuration time.Duration) AudioSource {
	if frameDuration <= 0 {
		frameDuration = gemini.DefaultChunkDuration
	}
	return &Microphone{frameDuration: frameDuration}
}

// Open implements AudioSource.
func (m *Microphone) Open(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize PortAudio: %v", ErrDeviceUnavailable, err)
	}

	framesPerBuffer := gemini.ChunkSize(m.frameDuration, gemini.InputSampleRate) / gemini.BytesPerSample
	in := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, gemini.InputSampleRate, framesPerBuffer, in)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: open input stream: %v", classifyDeviceError(err.Error()), err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: start input stream: %v", classifyDeviceError(err.Error()), err)
	}

	m.stream = stream
	m.in = in
	return nil
}

// Read implements AudioSource. The blocking device read returns after one
// frame duration, so cancellation is observed between frames.
func (m *Microphone) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	stream, in := m.stream, m.in
	m.mu.Unlock()
	if stream == nil {
		return nil, ErrNotOpen
	}

	if err := stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, fmt.Errorf("read input stream: %w", err)
	}
	return gemini.ConvertInt16ToPCM(in), nil
}

// Close implements AudioSource.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return nil
	}
	_ = m.stream.Stop()
	err := m.stream.Close()
	m.stream = nil
	_ = portaudio.Terminate()
	return err
}
