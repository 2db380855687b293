package capture

import (
	"context"
	"sync"
	"time"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/providers/gemini"
)

// AudioSource produces 16 kHz mono PCM16 frames.
type AudioSource interface {
	// Open acquires the device. Errors wrap ErrPermissionDenied or ErrDeviceUnavailable.
	Open(ctx context.Context) error
	// Read blocks until the next frame is available.
	Read(ctx context.Context) ([]byte, error)
	// Close releases the device. It is idempotent.
	Close() error
}

// FrameSource produces JPEG images from a camera.
type FrameSource interface {
	// Open acquires the device. Errors wrap ErrPermissionDenied or ErrDeviceUnavailable.
	Open(ctx context.Context) error
	// Ready reports whether a frame can be grabbed now.
	Ready() bool
	// Capture grabs one JPEG frame.
	Capture(ctx context.Context) ([]byte, error)
	// Close releases the device. It is idempotent.
	Close() error
}

// ToneSource generates a paced sine tone in place of a microphone. It is
// used for headless runs.
type ToneSource struct {
	Frequency     float64
	Amplitude     float64
	FrameDuration time.Duration

	mu     sync.Mutex
	ticker *time.Ticker
	phase  int
}

// Open implements AudioSource.
func (s *ToneSource) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FrameDuration <= 0 {
		s.FrameDuration = gemini.DefaultChunkDuration
	}
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.FrameDuration)
	}
	return nil
}

// Read implements AudioSource.
func (s *ToneSource) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	ticker := s.ticker
	s.mu.Unlock()
	if ticker == nil {
		return nil, ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ticker.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pcm := gemini.GenerateSineWave(gemini.InputSampleRate, s.Frequency, s.phase, s.FrameDuration, s.Amplitude)
	s.phase += len(pcm) / gemini.BytesPerSample
	return pcm, nil
}

// Close implements AudioSource.
func (s *ToneSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	return nil
}

// StaticFrameSource returns the same image on every capture. It stands in
// for a camera when sending a still photo of an outfit.
type StaticFrameSource struct {
	JPEG []byte

	mu     sync.Mutex
	opened bool
}

// Open implements FrameSource.
func (s *StaticFrameSource) Open(_ context.Context) error {
	if len(s.JPEG) == 0 {
		return ErrDeviceUnavailable
	}
	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
	return nil
}

// Ready implements FrameSource.
func (s *StaticFrameSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Capture implements FrameSource.
func (s *StaticFrameSource) Capture(_ context.Context) ([]byte, error) {
	if !s.Ready() {
		return nil, ErrNotOpen
	}
	return s.JPEG, nil
}

// Close implements FrameSource.
func (s *StaticFrameSource) Close() error {
	s.mu.Lock()
	s.opened = false
	s.mu.Unlock()
	return nil
}
