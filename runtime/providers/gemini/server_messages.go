package gemini

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ServerMessage is one inbound wire message. Unknown fields are ignored.
type ServerMessage struct {
	SetupComplete *SetupComplete `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	GoAway        *GoAway        `json:"goAway,omitempty"`
}

// SetupComplete acknowledges the setup envelope.
type SetupComplete struct{}

// ServerContent carries model output and turn signals.
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	GenerationComplete  bool           `json:"generationComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// Transcription is an incremental transcript fragment.
type Transcription struct {
	Text string `json:"text"`
}

// UsageMetadata reports token usage.
type UsageMetadata struct {
	PromptTokenCount   int `json:"promptTokenCount"`
	ResponseTokenCount int `json:"responseTokenCount"`
	TotalTokenCount    int `json:"totalTokenCount"`
}

// GoAway announces that the server will disconnect soon.
type GoAway struct {
	TimeLeft string `json:"timeLeft"`
}

// InboundKind names the inbound event variants.
type InboundKind int

// Inbound event kinds.
const (
	InboundSetupComplete InboundKind = iota
	InboundInputTranscription
	InboundOutputTranscription
	InboundModelAudio
	InboundModelText
	InboundInterrupted
	InboundTurnComplete
	InboundUsage
	InboundGoAway
)

var inboundKindNames = map[InboundKind]string{
	InboundSetupComplete:       "setup_complete",
	InboundInputTranscription:  "input_transcription",
	InboundOutputTranscription: "output_transcription",
	InboundModelAudio:          "model_audio",
	InboundModelText:           "model_text",
	InboundInterrupted:         "interrupted",
	InboundTurnComplete:        "turn_complete",
	InboundUsage:               "usage",
	InboundGoAway:              "go_away",
}

// String returns the snake_case name of the kind.
func (k InboundKind) String() string {
	if name, ok := inboundKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// InboundEvent is one typed event decoded from a server message.
type InboundEvent struct {
	Kind  InboundKind
	Text  string
	Media MediaChunk
	Usage UsageMetadata
	// TimeLeft is the GoAway grace period as sent by the server.
	TimeLeft string
}

// DecodeServerMessage decodes raw JSON into the ordered events it contains.
// Unrecognised messages yield no events and no error. Malformed JSON is an error.
func DecodeServerMessage(raw []byte) ([]InboundEvent, error) {
	var msg ServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode server message: %w", err)
	}
	return msg.Events(), nil
}

// Events flattens the message into events. Within serverContent the order is
// input transcription, output transcription, model parts, interrupted, then
// turn complete.
func (m *ServerMessage) Events() []InboundEvent {
	var events []InboundEvent

	if m.SetupComplete != nil {
		events = append(events, InboundEvent{Kind: InboundSetupComplete})
	}

	if sc := m.ServerContent; sc != nil {
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			events = append(events, InboundEvent{Kind: InboundInputTranscription, Text: sc.InputTranscription.Text})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			events = append(events, InboundEvent{Kind: InboundOutputTranscription, Text: sc.OutputTranscription.Text})
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				switch {
				case part.InlineData != nil && strings.HasPrefix(part.InlineData.MimeType, "audio/"):
					events = append(events, InboundEvent{
						Kind:  InboundModelAudio,
						Media: MediaChunk{MimeType: part.InlineData.MimeType, Data: part.InlineData.Data},
					})
				case part.Text != "":
					events = append(events, InboundEvent{Kind: InboundModelText, Text: part.Text})
				}
			}
		}
		if sc.Interrupted {
			events = append(events, InboundEvent{Kind: InboundInterrupted})
		}
		if sc.TurnComplete {
			events = append(events, InboundEvent{Kind: InboundTurnComplete})
		}
	}

	if m.UsageMetadata != nil {
		events = append(events, InboundEvent{Kind: InboundUsage, Usage: *m.UsageMetadata})
	}
	if m.GoAway != nil {
		events = append(events, InboundEvent{Kind: InboundGoAway, TimeLeft: m.GoAway.TimeLeft})
	}

	return events
}

// maxLoggedData is the longest base64 payload kept verbatim in debug logs.
const maxLoggedData = 100

// TruncateForLog returns raw with long base64 "data" fields replaced by a
// size marker. Non-JSON input is returned unchanged.
func TruncateForLog(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	truncateInlineData(v)
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// LogPayload is a raw message attached to a log record. TruncateForLog runs
// only when a handler formats the record.
type LogPayload []byte

// LogValue implements slog.LogValuer.
func (p LogPayload) LogValue() slog.Value {
	return slog.StringValue(TruncateForLog(p))
}

func truncateInlineData(v any) {
	switch val := v.(type) {
	case map[string]any:
		if data, ok := val["data"].(string); ok && len(data) > maxLoggedData {
			val["data"] = fmt.Sprintf("[%d bytes base64]", len(data))
		}
		for _, child := range val {
			truncateInlineData(child)
		}
	case []any:
		for _, item := range val {
			truncateInlineData(item)
		}
	}
}
