package live

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/events"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/playback"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/providers/gemini"
)

type machineFixture struct {
	m         *Machine
	transport *fakeTransport
	clock     *playback.ManualClock
	player    *playback.Scheduler
	sink      *playback.DiscardSink
	log       *transcriptLog

	mu    sync.Mutex
	turns []TurnRecord
}

func newMachineFixture(t *testing.T, cfg MachineConfig) *machineFixture {
	t.Helper()
	f := &machineFixture{
		transport: &fakeTransport{},
		clock:     &playback.ManualClock{},
		sink:      &playback.DiscardSink{},
		log:       &transcriptLog{},
	}
	f.player = playback.NewScheduler(f.sink, f.clock)
	if cfg.Setup.Model == "" {
		cfg.Setup = gemini.SetupConfig{Model: "m", Voice: "v"}
	}
	cfg.SessionID = "sess-1"
	cfg.Player = f.player
	cfg.Hooks.OnTranscript = f.log.record
	cfg.Hooks.OnTurn = func(r TurnRecord) {
		f.mu.Lock()
		f.turns = append(f.turns, r)
		f.mu.Unlock()
	}
	f.m = NewMachine(cfg)
	t.Cleanup(func() { _ = f.m.Close(context.Background()) })
	return f
}

// activate drives the machine to Active.
func (f *machineFixture) activate(t *testing.T) {
	t.Helper()
	require.NoError(t, f.m.Connect(f.transport))
	f.m.HandleOpen()
	f.m.HandleMessage([]byte(msgSetupComplete))
	require.Equal(t, StateActive, f.m.State())
}

func (f *machineFixture) recordedTurns() []TurnRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TurnRecord(nil), f.turns...)
}

func TestMachine_Lifecycle(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	assert.Equal(t, StateIdle, f.m.State())

	require.NoError(t, f.m.Connect(f.transport))
	assert.Equal(t, StateConnecting, f.m.State())

	f.m.HandleOpen()
	assert.Equal(t, StateAwaitingSetupAck, f.m.State())

	f.m.HandleMessage([]byte(msgSetupComplete))
	assert.Equal(t, StateActive, f.m.State())
	select {
	case <-f.m.Ready():
	default:
		t.Fatal("ready not closed")
	}

	require.NoError(t, f.m.Close(context.Background()))
	assert.Equal(t, StateClosed, f.m.State())
	assert.Equal(t, 1, f.transport.closed)
	select {
	case <-f.m.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestMachine_SetupBeforeData(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	require.NoError(t, f.m.Connect(f.transport))

	// Nothing but setup may precede the acknowledgement.
	for _, env := range []gemini.Envelope{
		gemini.EncodeAudio(make([]byte, 3200), gemini.InputSampleRate),
		gemini.EncodeFrame([]byte{0xff, 0xd8}),
		gemini.BuildText("hello", true),
		gemini.BuildAudioStreamEnd(),
	} {
		assert.ErrorIs(t, f.m.Send(env), ErrProtocolViolation, "in connecting: %s", env.Kind())
	}

	f.m.HandleOpen()
	assert.ErrorIs(t, f.m.Send(gemini.BuildText("early", true)), ErrProtocolViolation)

	f.m.HandleMessage([]byte(msgSetupComplete))
	require.NoError(t, f.m.Send(gemini.BuildText("hello", true)))
	require.NoError(t, f.m.Send(gemini.EncodeAudio(make([]byte, 3200), gemini.InputSampleRate)))

	assert.Eventually(t, func() bool { return f.transport.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []gemini.EnvelopeKind{gemini.KindSetup, gemini.KindClientText, gemini.KindAudioChunk},
		f.transport.kinds(t))
}

func TestMachine_SetupCannotBeSentByCaller(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)
	env, err := gemini.BuildSetup(gemini.SetupConfig{Model: "m"})
	require.NoError(t, err)
	assert.ErrorIs(t, f.m.Send(env), ErrProtocolViolation)
	assert.ErrorIs(t, f.m.Send(gemini.Envelope{}), ErrProtocolViolation)
}

func TestMachine_InvalidSetupRefusesConnect(t *testing.T) {
	m := NewMachine(MachineConfig{Setup: gemini.SetupConfig{Model: "m", ResponseModalities: []string{"TEXT", "AUDIO"}}})
	err := m.Connect(&fakeTransport{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, StateIdle, m.State())
}

func TestMachine_ConnectTwice(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	require.NoError(t, f.m.Connect(f.transport))
	assert.ErrorIs(t, f.m.Connect(f.transport), ErrProtocolViolation)
}

func TestMachine_OutboundOrderPreserved(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{QueueSize: 256})
	f.activate(t)

	var want []gemini.EnvelopeKind
	want = append(want, gemini.KindSetup)
	for i := 0; i < 50; i++ {
		var env gemini.Envelope
		switch i % 3 {
		case 0:
			env = gemini.EncodeAudio(make([]byte, 320), gemini.InputSampleRate)
		case 1:
			env = gemini.EncodeFrame([]byte{0xff, 0xd8})
		default:
			env = gemini.BuildText("t", false)
		}
		require.NoError(t, f.m.Send(env))
		want = append(want, env.Kind())
	}

	assert.Eventually(t, func() bool { return f.transport.count() == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, f.transport.kinds(t))
}

func TestMachine_QueueFullDropsMedia(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{QueueSize: 1})
	f.transport.gate = make(chan struct{})
	require.NoError(t, f.m.Connect(f.transport))
	f.m.HandleOpen()
	f.m.HandleMessage([]byte(msgSetupComplete))
	// Writer is now blocked sending setup.

	audio := gemini.EncodeAudio(make([]byte, 320), gemini.InputSampleRate)
	require.NoError(t, f.m.Send(audio))
	assert.ErrorIs(t, f.m.Send(audio), ErrQueueFull)
	assert.Equal(t, 1, f.m.Dropped())

	// Control envelopes are never dropped.
	require.NoError(t, f.m.Send(gemini.BuildText("still queued", true)))

	close(f.transport.gate)
	assert.Eventually(t, func() bool { return f.transport.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []gemini.EnvelopeKind{gemini.KindSetup, gemini.KindAudioChunk, gemini.KindClientText},
		f.transport.kinds(t))
}

func TestMachine_TranscriptsAndTurnComplete(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	f.m.HandleMessage(inputTranscript("what goes with "))
	f.m.HandleMessage(inputTranscript("a navy blazer?"))
	f.m.HandleMessage(outputTranscript("Try grey "))
	f.m.HandleMessage(outputTranscript("chinos."))

	user, model := f.m.Transcript()
	assert.Equal(t, "what goes with a navy blazer?", user)
	assert.Equal(t, "Try grey chinos.", model)

	f.m.HandleMessage([]byte(msgTurnComplete))
	user, model = f.m.Transcript()
	assert.Empty(t, user)
	assert.Empty(t, model)

	assert.Equal(t, []transcriptEntry{
		{SpeakerUser, "what goes with ", false},
		{SpeakerUser, "a navy blazer?", false},
		{SpeakerModel, "Try grey ", false},
		{SpeakerModel, "chinos.", false},
		{SpeakerUser, "what goes with a navy blazer?", true},
		{SpeakerModel, "Try grey chinos.", true},
	}, f.log.get())

	turns := f.recordedTurns()
	require.Len(t, turns, 1)
	assert.Equal(t, "sess-1", turns[0].SessionID)
	assert.Equal(t, 1, turns[0].Index)
	assert.Equal(t, "what goes with a navy blazer?", turns[0].UserText)
	assert.Equal(t, "Try grey chinos.", turns[0].ModelText)
}

func TestMachine_TurnCompleteWithEmptyBuffers(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	f.m.HandleMessage([]byte(msgTurnComplete))
	assert.Empty(t, f.log.get(), "no final transcript for empty buffers")
	require.Len(t, f.recordedTurns(), 1)
}

func TestMachine_CombinedMessageOrder(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	f.m.HandleMessage([]byte(`{"serverContent":{"outputTranscription":{"text":"done"},"turnComplete":true}}`))
	assert.Equal(t, []transcriptEntry{
		{SpeakerModel, "done", false},
		{SpeakerModel, "done", true},
	}, f.log.get())
}

func TestMachine_PlaybackMonotonic(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	durations := []time.Duration{500 * time.Millisecond, 250 * time.Millisecond, time.Second}
	var total float64
	for _, d := range durations {
		f.m.HandleMessage(audioMessage(pcmSeconds(d)))
		total += d.Seconds()
	}
	assert.InDelta(t, total, f.player.NextStartTime(), 1e-9)
	assert.Len(t, f.sink.Played(), 3)
}

func TestMachine_ResamplesOtherRates(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	// One second at 16kHz plays for one second after conversion.
	pcm := base64.StdEncoding.EncodeToString(make([]byte, 16000*2))
	f.m.HandleMessage([]byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=16000","data":"` + pcm + `"}}]}}}`))

	assert.InDelta(t, 1.0, f.player.NextStartTime(), 1e-9)
	assert.Len(t, f.sink.Played(), 1)
}

func TestMachine_InterruptionMidSpeech(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	f.m.HandleMessage(inputTranscript("wait"))
	for i := 0; i < 3; i++ {
		f.m.HandleMessage(audioMessage(pcmSeconds(time.Second)))
	}
	assert.InDelta(t, 3.0, f.player.NextStartTime(), 1e-9)

	f.clock.Advance(500 * time.Millisecond)
	f.m.HandleMessage([]byte(msgInterrupted))

	assert.Zero(t, f.player.Pending())
	assert.InDelta(t, 0.5, f.player.NextStartTime(), 1e-9)
	assert.Len(t, f.sink.Stopped(), 3)

	user, _ := f.m.Transcript()
	assert.Equal(t, "wait", user, "interruption keeps transcripts")

	// The next chunk starts now, not 3s ahead.
	f.m.HandleMessage(audioMessage(pcmSeconds(100 * time.Millisecond)))
	assert.InDelta(t, 0.6, f.player.NextStartTime(), 1e-9)
}

func TestMachine_MalformedJSONIgnored(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	assert.NotPanics(t, func() {
		f.m.HandleMessage([]byte("not json"))
		f.m.HandleMessage([]byte(`{"serverContent":`))
	})
	assert.Equal(t, StateActive, f.m.State())
	assert.Empty(t, f.log.get())
}

func TestMachine_UndecodableAudioDropped(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	f.m.HandleMessage([]byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"!!!"}}]}}}`))
	f.m.HandleMessage([]byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/opus","data":"AAAA"}}]}}}`))
	assert.Empty(t, f.sink.Played())
	assert.Equal(t, StateActive, f.m.State())
}

func TestMachine_EventsBeforeActiveIgnored(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	require.NoError(t, f.m.Connect(f.transport))
	f.m.HandleOpen()

	f.m.HandleMessage(outputTranscript("too early"))
	f.m.HandleMessage(audioMessage(pcmSeconds(time.Second)))
	assert.Empty(t, f.log.get())
	assert.Empty(t, f.sink.Played())
	assert.Equal(t, StateAwaitingSetupAck, f.m.State())
}

func TestMachine_UsageAccumulates(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	f.m.HandleMessage([]byte(`{"usageMetadata":{"promptTokenCount":10,"responseTokenCount":5,"totalTokenCount":15}}`))
	f.m.HandleMessage([]byte(`{"usageMetadata":{"promptTokenCount":1,"responseTokenCount":2,"totalTokenCount":3}}`))
	assert.Equal(t, Usage{PromptTokens: 11, ResponseTokens: 7, TotalTokens: 18}, f.m.Usage())

	f.m.HandleMessage([]byte(msgTurnComplete))
	turns := f.recordedTurns()
	require.Len(t, turns, 1)
	assert.Equal(t, 18, turns[0].Usage.TotalTokens)
}

func TestMachine_GoAwayKeepsState(t *testing.T) {
	var got string
	f := newMachineFixture(t, MachineConfig{Hooks: MachineHooks{OnGoAway: func(tl string) { got = tl }}})
	f.activate(t)

	f.m.HandleMessage([]byte(`{"goAway":{"timeLeft":"30s"}}`))
	assert.Equal(t, "30s", got)
	assert.Equal(t, StateActive, f.m.State())
}

func TestMachine_TransportCloseFails(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	f.m.HandleClose(1011, "internal error")
	assert.Equal(t, StateFailed, f.m.State())

	err := f.m.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 1011, connErr.StatusCode)

	// Failed is absorbing.
	f.m.HandleMessage([]byte(msgSetupComplete))
	assert.Equal(t, StateFailed, f.m.State())
	assert.ErrorIs(t, f.m.Send(gemini.BuildText("x", true)), ErrProtocolViolation)
	require.NoError(t, f.m.Close(context.Background()))
	assert.Equal(t, StateFailed, f.m.State())
}

func TestMachine_TransportErrorBeforeActive(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	require.NoError(t, f.m.Connect(f.transport))
	f.m.HandleError(errBoom)
	assert.Equal(t, StateFailed, f.m.State())
	assert.True(t, errors.Is(f.m.Err(), errBoom))
}

func TestMachine_CloseIdempotent(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.activate(t)

	require.NoError(t, f.m.Close(context.Background()))
	require.NoError(t, f.m.Close(context.Background()))
	assert.Equal(t, StateClosed, f.m.State())
	assert.Equal(t, 1, f.transport.closed)

	// The transport's own close report after a local close is not a failure.
	f.m.HandleClose(1000, "closed by client")
	assert.Equal(t, StateClosed, f.m.State())
}

func TestMachine_CloseFromIdle(t *testing.T) {
	m := NewMachine(MachineConfig{})
	require.NoError(t, m.Close(context.Background()))
	assert.Equal(t, StateClosed, m.State())
}

func TestMachine_CloseFlushesQueue(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.transport.gate = make(chan struct{})
	require.NoError(t, f.m.Connect(f.transport))
	f.m.HandleOpen()
	f.m.HandleMessage([]byte(msgSetupComplete))
	require.NoError(t, f.m.Send(gemini.BuildText("last words", true)))

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(f.transport.gate)
	}()
	require.NoError(t, f.m.Close(context.Background()))
	assert.Equal(t, []gemini.EnvelopeKind{gemini.KindSetup, gemini.KindClientText}, f.transport.kinds(t))
}

func TestMachine_CloseFlushBoundedByContext(t *testing.T) {
	f := newMachineFixture(t, MachineConfig{})
	f.transport.gate = make(chan struct{})
	t.Cleanup(func() { close(f.transport.gate) })
	require.NoError(t, f.m.Connect(f.transport))
	f.m.HandleOpen()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, f.m.Close(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateClosed, f.m.State())
}

func TestMachine_StateEvents(t *testing.T) {
	bus := events.NewEventBus()
	var mu sync.Mutex
	var transitions []string
	bus.Subscribe(events.EventStateChanged, func(e *events.Event) {
		data := e.Data.(events.StateChangedData)
		mu.Lock()
		transitions = append(transitions, data.To)
		mu.Unlock()
	})

	f := newMachineFixture(t, MachineConfig{Emitter: events.NewEmitter(bus, "sess-1")})
	f.activate(t)
	require.NoError(t, f.m.Close(context.Background()))
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"connecting", "awaiting_setup_ack", "active", "closing", "closed"}, transitions)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_setup_ack", StateAwaitingSetupAck.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateActive.Terminal())
}
