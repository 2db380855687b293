package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

const (
	// defaultSmoothingAlpha is the exponential smoothing factor (0.0-1.0).
	defaultSmoothingAlpha = 0.3
	// pcmBytesPerSample is the number of bytes per 16-bit PCM sample.
	pcmBytesPerSample = 2
	// pcmMaxAmplitude is the maximum amplitude for 16-bit signed audio.
	pcmMaxAmplitude = 32768.0
	// maxExpectedRMS is the expected maximum RMS for voice audio.
	maxExpectedRMS = 0.5
)

// RMS returns the root mean square of 16-bit little-endian PCM, normalized
// to 0.0-1.0. A trailing odd byte is ignored.
func RMS(pcm []byte) float64 {
	numSamples := len(pcm) / pcmBytesPerSample
	if numSamples == 0 {
		return 0
	}

	var sumSquares float64
	for i := 0; i < numSamples; i++ {
		// #nosec G115 -- overflow is intentional for signed PCM conversion
		sample := int16(binary.LittleEndian.Uint16(pcm[i*pcmBytesPerSample:]))
		normalized := float64(sample) / pcmMaxAmplitude
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(numSamples))
}

// Analysis is the result of one SimpleVAD.Analyze call.
type Analysis struct {
	// Level is the raw RMS of the frame.
	Level float64
	// Probability is the smoothed voice probability.
	Probability float64
	// Transition is set when the frame changed the VAD state.
	Transition *VADEvent
}

// SimpleVAD is a voice activity detector based on smoothed RMS.
type SimpleVAD struct {
	params VADParams
	now    func() time.Time

	mu          sync.Mutex
	state       VADState
	stateStart  time.Time
	smoothedRMS float64
	alpha       float64
}

// NewSimpleVAD creates a SimpleVAD with the given parameters.
func NewSimpleVAD(params VADParams) (*SimpleVAD, error) {
	return newSimpleVAD(params, time.Now)
}

func newSimpleVAD(params VADParams, now func() time.Time) (*SimpleVAD, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &SimpleVAD{
		params:     params,
		now:        now,
		state:      VADStateQuiet,
		stateStart: now(),
		alpha:      defaultSmoothingAlpha,
	}, nil
}

// Analyze measures one frame and advances the state machine.
func (v *SimpleVAD) Analyze(pcm []byte) Analysis {
	level := RMS(pcm)

	v.mu.Lock()
	defer v.mu.Unlock()

	v.smoothedRMS = v.alpha*level + (1-v.alpha)*v.smoothedRMS
	probability := v.rmsToProbability(v.smoothedRMS)

	return Analysis{
		Level:       level,
		Probability: probability,
		Transition:  v.updateStateLocked(probability),
	}
}

// rmsToProbability maps RMS above MinVolume linearly onto 0-1.
func (v *SimpleVAD) rmsToProbability(rms float64) float64 {
	if rms <= v.params.MinVolume {
		return 0
	}
	probability := (rms - v.params.MinVolume) / (maxExpectedRMS - v.params.MinVolume)
	return min(max(probability, 0), 1)
}

// computeNextState determines the next state from the current state and probability.
func (v *SimpleVAD) computeNextState(current VADState, probability, stateDurationSecs float64) VADState {
	aboveThreshold := probability >= v.params.Confidence

	switch current {
	case VADStateQuiet:
		if aboveThreshold {
			return VADStateStarting
		}
	case VADStateStarting:
		if !aboveThreshold {
			return VADStateQuiet
		}
		if stateDurationSecs >= v.params.StartSecs {
			return VADStateSpeaking
		}
	case VADStateSpeaking:
		if !aboveThreshold {
			return VADStateStopping
		}
	case VADStateStopping:
		if aboveThreshold {
			return VADStateSpeaking
		}
		if stateDurationSecs >= v.params.StopSecs {
			return VADStateQuiet
		}
	}
	return current
}

func (v *SimpleVAD) updateStateLocked(probability float64) *VADEvent {
	now := v.now()
	stateDuration := now.Sub(v.stateStart)

	newState := v.computeNextState(v.state, probability, stateDuration.Seconds())
	if newState == v.state {
		return nil
	}

	event := &VADEvent{
		State:      newState,
		PrevState:  v.state,
		Timestamp:  now,
		Duration:   stateDuration,
		Confidence: probability,
	}
	v.state = newState
	v.stateStart = now
	return event
}

// State returns the current VAD state.
func (v *SimpleVAD) State() VADState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Reset clears accumulated state, e.g. when the microphone is unmuted.
func (v *SimpleVAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state = VADStateQuiet
	v.stateStart = v.now()
	v.smoothedRMS = 0
}
