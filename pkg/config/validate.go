package config

import (
	"strings"
	"time"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/providers/gemini"
)

// ValidationError represents a semantic configuration error.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return "config validation error: " + e.Field + ": " + e.Message + " (got: " + e.Value + ")"
	}
	return "config validation error: " + e.Field + ": " + e.Message
}

// Validate checks what the schema cannot express.
func (c *LiveSessionConfig) Validate() error {
	if c.APIVersion != APIVersion {
		return &ValidationError{Field: "apiVersion", Message: "unsupported version", Value: c.APIVersion}
	}
	if c.Kind != KindLiveSession {
		return &ValidationError{Field: "kind", Message: "must be " + KindLiveSession, Value: c.Kind}
	}
	return c.Spec.Validate()
}

// Validate checks cross-field rules of the session settings.
func (s *LiveSessionSpec) Validate() error {
	if strings.TrimSpace(s.Model) == "" {
		return &ValidationError{Field: "spec.model", Message: "model is required"}
	}
	if err := gemini.ValidateModalities(s.ResponseModalities); err != nil {
		return &ValidationError{Field: "spec.responseModalities", Message: err.Error(), Value: strings.Join(s.ResponseModalities, ",")}
	}
	if s.audioResponses() && strings.TrimSpace(s.Voice) == "" {
		return &ValidationError{Field: "spec.voice", Message: "voice is required for audio responses"}
	}
	if _, err := parseDuration(s.SetupTimeout); err != nil {
		return &ValidationError{Field: "spec.setupTimeout", Message: "invalid duration", Value: s.SetupTimeout}
	}
	if _, err := parseDuration(s.History.TTL); err != nil {
		return &ValidationError{Field: "spec.history.ttl", Message: "invalid duration", Value: s.History.TTL}
	}
	if s.Logging != nil {
		if err := s.Logging.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s *LiveSessionSpec) audioResponses() bool {
	if len(s.ResponseModalities) == 0 {
		return true
	}
	for _, m := range s.ResponseModalities {
		if strings.EqualFold(m, gemini.ModalityAudio) {
			return true
		}
	}
	return false
}

// parseDuration accepts an empty string as zero.
func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	return time.ParseDuration(v)
}
