package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterStampsSession(t *testing.T) {
	bus := NewEventBus()
	emitter := NewEmitter(bus, "session-1")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	emitter.now = func() time.Time { return fixed }

	got := &collector{}
	bus.Subscribe(EventSessionStarted, got.add)

	emitter.SessionStarted("gemini", "Puck", true, 250*time.Millisecond)
	bus.Close()

	require.Len(t, got.events, 1)
	e := got.events[0]
	assert.Equal(t, "session-1", e.SessionID)
	assert.Equal(t, fixed, e.Timestamp)

	data, ok := e.Data.(SessionStartedData)
	require.True(t, ok, "unexpected data type %T", e.Data)
	assert.Equal(t, "gemini", data.Model)
	assert.Equal(t, "Puck", data.Voice)
	assert.True(t, data.Video)
	assert.Equal(t, 250*time.Millisecond, data.SetupLatency)
}

func TestEmitterPublishesEveryKind(t *testing.T) {
	bus := NewEventBus()
	emitter := NewEmitter(bus, "session-2")
	got := &collector{}
	bus.SubscribeAll(got.add)

	boom := errors.New("boom")
	emitter.SessionStarted("m", "v", false, 0)
	emitter.StateChanged("idle", "connecting")
	emitter.EnvelopeSent("setup", 120)
	emitter.EnvelopeReceived("setup_complete", 20)
	emitter.MediaDropped("realtime_audio")
	emitter.DecodeError("audio/pcm", boom)
	emitter.Transcript("ai", "hi", false)
	emitter.TurnCompleted(0, "hello", "hi")
	emitter.AudioScheduled(0, 0.5, 24000)
	emitter.Interrupted(2)
	emitter.UserSpeech(true, 0.3)
	emitter.Usage(10, 5, 15)
	emitter.GoAway("10s")
	emitter.SessionError("session", boom)
	emitter.SessionEnded("closed", time.Second, nil)
	bus.Close()

	assert.Equal(t, []EventType{
		EventSessionStarted,
		EventStateChanged,
		EventEnvelopeSent,
		EventEnvelopeReceived,
		EventMediaDropped,
		EventDecodeError,
		EventTranscript,
		EventTurnCompleted,
		EventAudioScheduled,
		EventInterrupted,
		EventUserSpeech,
		EventUsage,
		EventGoAway,
		EventSessionError,
		EventSessionEnded,
	}, got.types())

	usage, ok := got.events[11].Data.(UsageData)
	require.True(t, ok)
	assert.Equal(t, UsageData{PromptTokens: 10, ResponseTokens: 5, TotalTokens: 15}, usage)

	decode, ok := got.events[5].Data.(DecodeErrorData)
	require.True(t, ok)
	assert.ErrorIs(t, decode.Error, boom)
}

func TestEmitterNilSafe(t *testing.T) {
	var nilEmitter *Emitter
	assert.NotPanics(t, func() { nilEmitter.Interrupted(1) })

	noBus := NewEmitter(nil, "s")
	assert.NotPanics(t, func() { noBus.Usage(1, 2, 3) })
}
