package events

import "time"

// Emitter publishes events stamped with a session ID.
type Emitter struct {
	bus       *EventBus
	sessionID string
	now       func() time.Time
}

// NewEmitter creates a new event emitter. A nil bus makes every method a no-op.
func NewEmitter(bus *EventBus, sessionID string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID, now: time.Now}
}

// emit publishes an event with shared context fields.
func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: e.now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

// SessionStarted emits the session.started event.
func (e *Emitter) SessionStarted(model, voice string, video bool, setupLatency time.Duration) {
	e.emit(EventSessionStarted, SessionStartedData{Model: model, Voice: voice, Video: video, SetupLatency: setupLatency})
}

// SessionEnded emits the session.ended event.
func (e *Emitter) SessionEnded(finalState string, duration time.Duration, err error) {
	e.emit(EventSessionEnded, SessionEndedData{FinalState: finalState, Duration: duration, Error: err})
}

// StateChanged emits the session.state_changed event.
func (e *Emitter) StateChanged(from, to string) {
	e.emit(EventStateChanged, StateChangedData{From: from, To: to})
}

// SessionError emits the session.error event.
func (e *Emitter) SessionError(operation string, err error) {
	e.emit(EventSessionError, ErrorData{Operation: operation, Error: err})
}

// EnvelopeSent emits the envelope.sent event.
func (e *Emitter) EnvelopeSent(kind string, size int) {
	e.emit(EventEnvelopeSent, EnvelopeData{Kind: kind, Bytes: size})
}

// EnvelopeReceived emits the envelope.received event.
func (e *Emitter) EnvelopeReceived(kind string, size int) {
	e.emit(EventEnvelopeReceived, EnvelopeData{Kind: kind, Bytes: size})
}

// MediaDropped emits the media.dropped event.
func (e *Emitter) MediaDropped(kind string) {
	e.emit(EventMediaDropped, MediaDroppedData{Kind: kind})
}

// DecodeError emits the decode.error event.
func (e *Emitter) DecodeError(mimeType string, err error) {
	e.emit(EventDecodeError, DecodeErrorData{MimeType: mimeType, Error: err})
}

// Transcript emits the transcript event.
func (e *Emitter) Transcript(speaker, text string, final bool) {
	e.emit(EventTranscript, TranscriptData{Speaker: speaker, Text: text, Final: final})
}

// TurnCompleted emits the turn.completed event.
func (e *Emitter) TurnCompleted(index int, userText, modelText string) {
	e.emit(EventTurnCompleted, TurnCompletedData{Index: index, UserText: userText, ModelText: modelText})
}

// AudioScheduled emits the audio.scheduled event.
func (e *Emitter) AudioScheduled(start, duration float64, size int) {
	e.emit(EventAudioScheduled, AudioScheduledData{Start: start, Duration: duration, Bytes: size})
}

// Interrupted emits the stream.interrupted event.
func (e *Emitter) Interrupted(stopped int) {
	e.emit(EventInterrupted, InterruptedData{StoppedHandles: stopped})
}

// UserSpeech emits the user.speech event.
func (e *Emitter) UserSpeech(speaking bool, level float64) {
	e.emit(EventUserSpeech, UserSpeechData{Speaking: speaking, Level: level})
}

// Usage emits the usage.updated event.
func (e *Emitter) Usage(prompt, response, total int) {
	e.emit(EventUsage, UsageData{PromptTokens: prompt, ResponseTokens: response, TotalTokens: total})
}

// GoAway emits the server.go_away event.
func (e *Emitter) GoAway(timeLeft string) {
	e.emit(EventGoAway, GoAwayData{TimeLeft: timeLeft})
}
