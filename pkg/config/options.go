package config

import (
	"os"
	"time"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/capture"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/live"
)

// ToOptions maps the manifest settings onto session options. Unset transcription flags
// default to on.
func (s *LiveSessionSpec) ToOptions() live.Options {
	opts := live.Options{
		Model:               s.Model,
		Voice:               s.Voice,
		SystemInstruction:   s.SystemInstruction,
		ResponseModalities:  s.ResponseModalities,
		InputTranscription:  boolOr(s.Transcription.Input, true),
		OutputTranscription: boolOr(s.Transcription.Output, true),
		VideoEnabled:        s.Video.Enabled,
		VideoFPS:            s.Video.FPS,
		JPEGQuality:         s.Video.JPEGQuality,
		MaxFrameWidth:       s.Video.MaxWidth,
		MaxFrameHeight:      s.Video.MaxHeight,
		AudioFrameDuration:  time.Duration(s.Audio.FrameDurationMs) * time.Millisecond,
	}
	opts.SetupTimeout, _ = parseDuration(s.SetupTimeout)
	return opts
}

// WebcamConfig returns the camera settings.
func (s *LiveSessionSpec) WebcamConfig() capture.WebcamConfig {
	return capture.WebcamConfig{DeviceIndex: s.Video.Device}
}

// APIKey reads the API key from the configured environment variable.
func (s *LiveSessionSpec) APIKey() string {
	name := s.APIKeyEnv
	if name == "" {
		name = DefaultAPIKeyEnv
	}
	return os.Getenv(name)
}

// HistoryTTL returns the history expiry; ok is false when unset.
func (s *LiveSessionSpec) HistoryTTL() (ttl time.Duration, ok bool) {
	if s.History.TTL == "" {
		return 0, false
	}
	ttl, err := parseDuration(s.History.TTL)
	return ttl, err == nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
