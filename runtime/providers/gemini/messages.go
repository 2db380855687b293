package gemini

import (
	"encoding/json"
	"errors"
	"strings"
)

// Response modalities accepted by the Live API.
const (
	ModalityAudio = "AUDIO"
	ModalityText  = "TEXT"
)

// DefaultVoice is the prebuilt voice used when none is configured.
const DefaultVoice = "Puck"

const roleUser = "user"

// ErrInvalidModalities indicates TEXT and AUDIO were requested together, or
// an unknown modality was named.
var ErrInvalidModalities = errors.New("invalid response modalities: choose exactly one of TEXT or AUDIO")

// ErrMissingModel indicates a setup without a model.
var ErrMissingModel = errors.New("model is required")

// EnvelopeKind names the outbound envelope variants.
type EnvelopeKind string

// Outbound envelope kinds.
const (
	KindSetup          EnvelopeKind = "setup"
	KindAudioChunk     EnvelopeKind = "realtime_audio"
	KindVideoFrame     EnvelopeKind = "realtime_video"
	KindClientText     EnvelopeKind = "client_text"
	KindAudioStreamEnd EnvelopeKind = "audio_stream_end"
	KindUnknown        EnvelopeKind = "unknown"
)

// Envelope is one outbound wire message. Exactly one field is set.
type Envelope struct {
	Setup         *SetupMessage  `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ClientContent *ClientContent `json:"clientContent,omitempty"`
}

// Kind classifies the envelope.
func (e Envelope) Kind() EnvelopeKind {
	switch {
	case e.Setup != nil:
		return KindSetup
	case e.ClientContent != nil:
		return KindClientText
	case e.RealtimeInput != nil && e.RealtimeInput.AudioStreamEnd:
		return KindAudioStreamEnd
	case e.RealtimeInput != nil && len(e.RealtimeInput.MediaChunks) > 0:
		if e.RealtimeInput.MediaChunks[0].MimeType == MimeTypeJPEG {
			return KindVideoFrame
		}
		return KindAudioChunk
	default:
		return KindUnknown
	}
}

// Marshal serializes the envelope to its JSON wire form.
func Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// MediaChunk is a base64 media payload tagged with its MIME type.
type MediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// RealtimeInput carries streamed media or the end-of-audio marker.
type RealtimeInput struct {
	MediaChunks    []MediaChunk `json:"mediaChunks,omitempty"`
	AudioStreamEnd bool         `json:"audioStreamEnd,omitempty"`
}

// ClientContent carries typed conversation turns.
type ClientContent struct {
	Turns        []Content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a text or inline media fragment.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData is inbound media embedded in a model turn.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// SetupMessage is the first envelope of every session.
type SetupMessage struct {
	Model                    string               `json:"model"`
	GenerationConfig         GenerationConfig     `json:"generationConfig"`
	SystemInstruction        *Content             `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *TranscriptionConfig `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *TranscriptionConfig `json:"outputAudioTranscription,omitempty"`
}

// GenerationConfig selects output modalities and voice.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SpeechConfig wraps the voice selection.
type SpeechConfig struct {
	VoiceConfig VoiceConfig `json:"voiceConfig"`
}

// VoiceConfig wraps the prebuilt voice selection.
type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

// PrebuiltVoiceConfig names a prebuilt voice.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// TranscriptionConfig enables transcription; the service takes no options.
type TranscriptionConfig struct{}

// SetupConfig is the caller-facing description of a setup envelope.
type SetupConfig struct {
	Model               string
	Voice               string
	SystemInstruction   string
	ResponseModalities  []string
	InputTranscription  bool
	OutputTranscription bool
}

// NormalizeModel adds the "models/" prefix when missing.
func NormalizeModel(model string) string {
	if model == "" || strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// ValidateModalities rejects unknown modalities and TEXT+AUDIO together.
func ValidateModalities(modalities []string) error {
	seen := map[string]bool{}
	for _, m := range modalities {
		switch strings.ToUpper(m) {
		case ModalityAudio, ModalityText:
			seen[strings.ToUpper(m)] = true
		default:
			return ErrInvalidModalities
		}
	}
	if seen[ModalityAudio] && seen[ModalityText] {
		return ErrInvalidModalities
	}
	return nil
}

// BuildSetup builds the setup envelope. Modalities default to AUDIO and the
// voice to DefaultVoice.
func BuildSetup(cfg SetupConfig) (Envelope, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return Envelope{}, ErrMissingModel
	}
	if err := ValidateModalities(cfg.ResponseModalities); err != nil {
		return Envelope{}, err
	}

	modalities := make([]string, 0, len(cfg.ResponseModalities))
	for _, m := range cfg.ResponseModalities {
		modalities = append(modalities, strings.ToUpper(m))
	}
	if len(modalities) == 0 {
		modalities = []string{ModalityAudio}
	}

	setup := &SetupMessage{
		Model:            NormalizeModel(cfg.Model),
		GenerationConfig: GenerationConfig{ResponseModalities: modalities},
	}

	if modalities[0] == ModalityAudio {
		voice := cfg.Voice
		if voice == "" {
			voice = DefaultVoice
		}
		setup.GenerationConfig.SpeechConfig = &SpeechConfig{
			VoiceConfig: VoiceConfig{PrebuiltVoiceConfig: PrebuiltVoiceConfig{VoiceName: voice}},
		}
	}
	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &Content{Parts: []Part{{Text: cfg.SystemInstruction}}}
	}
	if cfg.InputTranscription {
		setup.InputAudioTranscription = &TranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		setup.OutputAudioTranscription = &TranscriptionConfig{}
	}

	return Envelope{Setup: setup}, nil
}

// BuildText builds a typed user turn.
func BuildText(text string, turnComplete bool) Envelope {
	return Envelope{ClientContent: &ClientContent{
		Turns:        []Content{{Role: roleUser, Parts: []Part{{Text: text}}}},
		TurnComplete: turnComplete,
	}}
}

// BuildAudioStreamEnd builds the end-of-audio marker.
func BuildAudioStreamEnd() Envelope {
	return Envelope{RealtimeInput: &RealtimeInput{AudioStreamEnd: true}}
}
