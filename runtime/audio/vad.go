package audio

import (
	"fmt"
	"time"
)

// Detection defaults, tuned for a laptop microphone at conversational
// distance.
const (
	DefaultVADConfidence = 0.5
	DefaultVADStartSecs  = 0.2
	DefaultVADStopSecs   = 0.8
	DefaultVADMinVolume  = 0.01
)

// VADState is the detector's view of the user's voice.
type VADState int

// Detector states. Starting and Stopping are hysteresis states that last
// at most StartSecs and StopSecs.
const (
	VADStateQuiet VADState = iota
	VADStateStarting
	VADStateSpeaking
	VADStateStopping
)

var vadStateNames = [...]string{"quiet", "starting", "speaking", "stopping"}

func (s VADState) String() string {
	if s < 0 || int(s) >= len(vadStateNames) {
		return "unknown"
	}
	return vadStateNames[s]
}

// VADParams tunes SimpleVAD.
type VADParams struct {
	// Confidence is the smoothed probability (0-1) that counts as voice.
	Confidence float64
	// StartSecs of sustained voice are needed to report speaking.
	StartSecs float64
	// StopSecs of sustained quiet are needed to report quiet again.
	StopSecs float64
	// MinVolume is the RMS floor below which a frame is silence.
	MinVolume float64
}

// DefaultVADParams returns the Default* constants.
func DefaultVADParams() VADParams {
	return VADParams{
		Confidence: DefaultVADConfidence,
		StartSecs:  DefaultVADStartSecs,
		StopSecs:   DefaultVADStopSecs,
		MinVolume:  DefaultVADMinVolume,
	}
}

// Validate reports the first out-of-range field.
func (p VADParams) Validate() error {
	switch {
	case p.Confidence < 0 || p.Confidence > 1:
		return &ValidationError{Field: "Confidence", Message: "must be between 0.0 and 1.0"}
	case p.StartSecs < 0:
		return &ValidationError{Field: "StartSecs", Message: "must be non-negative"}
	case p.StopSecs < 0:
		return &ValidationError{Field: "StopSecs", Message: "must be non-negative"}
	case p.MinVolume < 0 || p.MinVolume >= maxExpectedRMS:
		return &ValidationError{Field: "MinVolume", Message: fmt.Sprintf("must be in [0, %.1f)", maxExpectedRMS)}
	}
	return nil
}

// ValidationError names an invalid VADParams field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid VAD %s: %s", e.Field, e.Message)
}

// VADEvent describes one state change.
type VADEvent struct {
	State     VADState
	PrevState VADState
	Timestamp time.Time
	// Duration is how long the detector stayed in PrevState.
	Duration   time.Duration
	Confidence float64
}
