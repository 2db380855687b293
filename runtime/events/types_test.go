package events

import "testing"

func TestEventDataImplementations(t *testing.T) {
	var _ EventData = SessionStartedData{}
	var _ EventData = SessionEndedData{}
	var _ EventData = StateChangedData{}
	var _ EventData = ErrorData{}
	var _ EventData = EnvelopeData{}
	var _ EventData = MediaDroppedData{}
	var _ EventData = DecodeErrorData{}
	var _ EventData = TranscriptData{}
	var _ EventData = TurnCompletedData{}
	var _ EventData = AudioScheduledData{}
	var _ EventData = InterruptedData{}
	var _ EventData = UserSpeechData{}
	var _ EventData = UsageData{}
	var _ EventData = GoAwayData{}
}

func TestEventTypeNamesUnique(t *testing.T) {
	all := []EventType{
		EventSessionStarted, EventSessionEnded, EventStateChanged, EventSessionError,
		EventEnvelopeSent, EventEnvelopeReceived, EventMediaDropped, EventDecodeError,
		EventTranscript, EventTurnCompleted, EventAudioScheduled, EventInterrupted,
		EventUserSpeech, EventUsage, EventGoAway,
	}
	seen := map[EventType]bool{}
	for _, et := range all {
		if et == "" {
			t.Fatal("empty event type")
		}
		if seen[et] {
			t.Fatalf("duplicate event type %q", et)
		}
		seen[et] = true
	}
}
