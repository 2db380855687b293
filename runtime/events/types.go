package events

import "time"

// EventType identifies the type of event emitted by a live session.
type EventType string

const (
	// EventSessionStarted marks a session reaching the active state.
	EventSessionStarted EventType = "session.started"
	// EventSessionEnded marks a session reaching closed or failed.
	EventSessionEnded EventType = "session.ended"
	// EventStateChanged marks any protocol state transition.
	EventStateChanged EventType = "session.state_changed"
	// EventSessionError marks an error surfaced to the application.
	EventSessionError EventType = "session.error"

	// EventEnvelopeSent marks an outbound envelope written to the transport.
	EventEnvelopeSent EventType = "envelope.sent"
	// EventEnvelopeReceived marks an inbound event decoded from the transport.
	EventEnvelopeReceived EventType = "envelope.received"
	// EventMediaDropped marks a realtime envelope dropped on a full queue.
	EventMediaDropped EventType = "media.dropped"
	// EventDecodeError marks inbound media that could not be decoded.
	EventDecodeError EventType = "decode.error"

	// EventTranscript marks a transcript delta or a finalized transcript.
	EventTranscript EventType = "transcript"
	// EventTurnCompleted marks the end of a model turn.
	EventTurnCompleted EventType = "turn.completed"

	// EventAudioScheduled marks a model audio chunk handed to playback.
	EventAudioScheduled EventType = "audio.scheduled"
	// EventInterrupted marks playback stopped by a server interruption.
	EventInterrupted EventType = "stream.interrupted"
	// EventUserSpeech marks the local voice detector changing state.
	EventUserSpeech EventType = "user.speech"

	// EventUsage marks updated token usage.
	EventUsage EventType = "usage.updated"
	// EventGoAway marks a server disconnect notice.
	EventGoAway EventType = "server.go_away"
)

// Event represents a live session event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      EventData
}

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// SessionStartedData contains data for session start events.
type SessionStartedData struct {
	baseEventData
	Model string
	Voice string
	Video bool
	// SetupLatency is the time from dial to setup acknowledgement.
	SetupLatency time.Duration
}

// SessionEndedData contains data for session end events.
type SessionEndedData struct {
	baseEventData
	// FinalState is "closed" or "failed".
	FinalState string
	Duration   time.Duration
	Error      error
}

// StateChangedData contains data for state transitions.
type StateChangedData struct {
	baseEventData
	From string
	To   string
}

// ErrorData contains data for error events.
type ErrorData struct {
	baseEventData
	Operation string
	Error     error
}

// EnvelopeData contains data for envelope events.
type EnvelopeData struct {
	baseEventData
	Kind  string
	Bytes int
}

// MediaDroppedData contains data for dropped media events.
type MediaDroppedData struct {
	baseEventData
	Kind string
}

// DecodeErrorData contains data for decode error events.
type DecodeErrorData struct {
	baseEventData
	MimeType string
	Error    error
}

// TranscriptData contains a transcript fragment or finalized transcript.
type TranscriptData struct {
	baseEventData
	Speaker string
	Text    string
	Final   bool
}

// TurnCompletedData contains the finalized turn.
type TurnCompletedData struct {
	baseEventData
	Index     int
	UserText  string
	ModelText string
}

// AudioScheduledData contains data for scheduled audio events.
type AudioScheduledData struct {
	baseEventData
	Start    float64
	Duration float64
	Bytes    int
}

// InterruptedData contains data for interruption events.
type InterruptedData struct {
	baseEventData
	StoppedHandles int
}

// UserSpeechData contains data for local voice detector changes.
type UserSpeechData struct {
	baseEventData
	Speaking bool
	Level    float64
}

// UsageData contains cumulative token usage.
type UsageData struct {
	baseEventData
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
}

// GoAwayData contains the server's disconnect notice.
type GoAwayData struct {
	baseEventData
	TimeLeft string
}
