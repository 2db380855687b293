package live

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/capture"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/providers/gemini"
)

// Defaults for Options.
const (
	DefaultModel             = "gemini-2.0-flash-exp"
	DefaultSetupTimeout      = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
)

// Audio frame duration bounds.
const (
	minAudioFrame = 20 * time.Millisecond
	maxAudioFrame = time.Second
)

// ErrMissingVoice is returned when audio output is requested without a voice.
var ErrMissingVoice = errors.New("voice is required for audio responses")

// Options configures one conversation.
type Options struct {
	Model               string
	Voice               string
	SystemInstruction   string
	ResponseModalities  []string
	InputTranscription  bool
	OutputTranscription bool

	VideoEnabled       bool
	VideoFPS           float64
	JPEGQuality        int
	MaxFrameWidth      int
	MaxFrameHeight     int
	AudioFrameDuration time.Duration

	// SetupTimeout bounds the wait for the setup acknowledgement when the
	// Start context has no deadline.
	SetupTimeout time.Duration
	// HeartbeatInterval is the ping period; negative disables pings.
	HeartbeatInterval time.Duration
}

// DefaultOptions returns options for an audio conversation with both
// transcriptions on and video off.
func DefaultOptions() Options {
	return Options{
		Model:               DefaultModel,
		Voice:               gemini.DefaultVoice,
		ResponseModalities:  []string{gemini.ModalityAudio},
		InputTranscription:  true,
		OutputTranscription: true,
		VideoFPS:            capture.DefaultFPS,
		JPEGQuality:         capture.DefaultJPEGQuality,
		AudioFrameDuration:  gemini.DefaultChunkDuration,
	}
}

// Validate checks required fields and ranges. Zero values for the numeric
// fields mean "use the default".
func (o Options) Validate() error {
	if strings.TrimSpace(o.Model) == "" {
		return gemini.ErrMissingModel
	}
	if err := gemini.ValidateModalities(o.ResponseModalities); err != nil {
		return err
	}
	if o.audioResponses() && strings.TrimSpace(o.Voice) == "" {
		return ErrMissingVoice
	}
	if o.VideoFPS != 0 && (o.VideoFPS < capture.MinFPS || o.VideoFPS > capture.MaxFPS) {
		return fmt.Errorf("video fps %.2f outside [%.0f, %.0f]", o.VideoFPS, capture.MinFPS, capture.MaxFPS)
	}
	if o.JPEGQuality < 0 || o.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality %d outside [1, 100]", o.JPEGQuality)
	}
	if o.MaxFrameWidth < 0 || o.MaxFrameHeight < 0 {
		return errors.New("frame bounds must be non-negative")
	}
	if o.AudioFrameDuration != 0 && (o.AudioFrameDuration < minAudioFrame || o.AudioFrameDuration > maxAudioFrame) {
		return fmt.Errorf("audio frame duration %s outside [%s, %s]", o.AudioFrameDuration, minAudioFrame, maxAudioFrame)
	}
	return nil
}

func (o Options) audioResponses() bool {
	if len(o.ResponseModalities) == 0 {
		return true
	}
	for _, m := range o.ResponseModalities {
		if strings.EqualFold(m, gemini.ModalityAudio) {
			return true
		}
	}
	return false
}

func (o Options) withDefaults() Options {
	if o.VideoFPS == 0 {
		o.VideoFPS = capture.DefaultFPS
	}
	if o.JPEGQuality == 0 {
		o.JPEGQuality = capture.DefaultJPEGQuality
	}
	if o.AudioFrameDuration == 0 {
		o.AudioFrameDuration = gemini.DefaultChunkDuration
	}
	if o.SetupTimeout == 0 {
		o.SetupTimeout = DefaultSetupTimeout
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return o
}

func (o Options) setupConfig() gemini.SetupConfig {
	return gemini.SetupConfig{
		Model:               o.Model,
		Voice:               o.Voice,
		SystemInstruction:   o.SystemInstruction,
		ResponseModalities:  o.ResponseModalities,
		InputTranscription:  o.InputTranscription,
		OutputTranscription: o.OutputTranscription,
	}
}

func (o Options) captureConfig(onError func(error)) capture.Config {
	return capture.Config{
		FPS:          o.VideoFPS,
		MaxWidth:     o.MaxFrameWidth,
		MaxHeight:    o.MaxFrameHeight,
		JPEGQuality:  o.JPEGQuality,
		VideoEnabled: o.VideoEnabled,
		OnError:      onError,
	}
}
