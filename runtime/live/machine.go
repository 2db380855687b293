package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/audio"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/events"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/playback"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/providers/gemini"
)

// DefaultQueueSize bounds the realtime media waiting in the outbound queue.
const DefaultQueueSize = 64

// Transport is the outbound half of a connection.
type Transport interface {
	Send(data []byte) error
	Close(code int, reason string) error
}

// AudioPlayer plays decoded model audio.
type AudioPlayer interface {
	Schedule(pcm []byte) (playback.Scheduled, error)
	Interrupt() int
}

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(_ string, _ ...any) {}
func (noopLogger) Info(_ string, _ ...any)  {}
func (noopLogger) Warn(_ string, _ ...any)  {}
func (noopLogger) Error(_ string, _ ...any) {}

// MachineHooks are invoked on the transport's read goroutine, outside the
// machine lock, in the order the triggering events arrived.
type MachineHooks struct {
	OnStateChange func(from, to State)
	OnTranscript  func(speaker Speaker, text string, final bool)
	OnTurn        func(record TurnRecord)
	OnGoAway      func(timeLeft string)
}

func (h *MachineHooks) defaults() {
	if h.OnStateChange == nil {
		h.OnStateChange = func(State, State) {}
	}
	if h.OnTranscript == nil {
		h.OnTranscript = func(Speaker, string, bool) {}
	}
	if h.OnTurn == nil {
		h.OnTurn = func(TurnRecord) {}
	}
	if h.OnGoAway == nil {
		h.OnGoAway = func(string) {}
	}
}

// MachineConfig configures a Machine.
type MachineConfig struct {
	SessionID string
	Setup     gemini.SetupConfig
	Player    AudioPlayer
	Emitter   *events.Emitter
	Logger    Logger
	QueueSize int
	Hooks     MachineHooks
	Now       func() time.Time
}

type outbound struct {
	kind gemini.EnvelopeKind
	data []byte
}

// Machine drives the Live protocol for one connection. All state mutation
// happens under a single lock; outbound envelopes are written in enqueue
// order by one writer goroutine.
type Machine struct {
	cfg    MachineConfig
	player AudioPlayer
	emit   *events.Emitter
	log    Logger
	hooks  MachineHooks
	now    func() time.Time

	mu           sync.Mutex
	state        State
	transport    Transport
	setup        []byte
	queue        []outbound
	queuedRT     int
	dropped      int
	transcript   TranscriptBuffer
	turns        int
	usage        Usage
	failErr      error
	openedAt     time.Time
	setupLatency time.Duration

	wake       chan struct{}
	stopWriter chan struct{}
	writerDone chan struct{}
	writerOnce sync.Once
	ready      chan struct{}
	done       chan struct{}
}

// NewMachine creates a machine in StateIdle.
func NewMachine(cfg MachineConfig) *Machine {
	cfg.Hooks.defaults()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Player == nil {
		cfg.Player = playback.NewScheduler(nil, nil)
	}
	return &Machine{
		cfg:        cfg,
		player:     cfg.Player,
		emit:       cfg.Emitter,
		log:        cfg.Logger,
		hooks:      cfg.Hooks,
		now:        cfg.Now,
		wake:       make(chan struct{}, 1),
		stopWriter: make(chan struct{}),
		writerDone: make(chan struct{}),
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Connect moves Idle to Connecting, binding the transport about to be
// opened. The setup envelope is built here so invalid setup never dials.
func (m *Machine) Connect(transport Transport) error {
	env, err := gemini.BuildSetup(m.cfg.Setup)
	if err != nil {
		return newConfigError("Connect", err)
	}
	data, err := gemini.Marshal(env)
	if err != nil {
		return newConfigError("Connect", err)
	}

	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: connect in state %s", ErrProtocolViolation, state)
	}
	m.transport = transport
	m.setup = data
	m.openedAt = m.now()
	after := m.transitionLocked(StateConnecting)
	m.mu.Unlock()

	go m.writeLoop()
	run(after)
	return nil
}

// HandleOpen is the transport's open handler: it queues the setup envelope
// ahead of anything else and moves to AwaitingSetupAck.
func (m *Machine) HandleOpen() {
	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, outbound{kind: gemini.KindSetup, data: m.setup})
	after := m.transitionLocked(StateAwaitingSetupAck)
	m.mu.Unlock()

	m.signal()
	run(after)
}

// HandleMessage is the transport's message handler. Malformed messages are
// logged and dropped without any state change.
func (m *Machine) HandleMessage(raw []byte) {
	m.log.Debug("inbound message", "bytes", len(raw), "message", gemini.LogPayload(raw))

	evs, err := gemini.DecodeServerMessage(raw)
	if err != nil {
		m.log.Warn("dropping malformed server message", "error", err, "bytes", len(raw))
		return
	}

	m.mu.Lock()
	var after []func()
	for _, ev := range evs {
		after = append(after, m.applyLocked(ev, len(raw))...)
	}
	m.mu.Unlock()

	run(after)
}

func (m *Machine) applyLocked(ev gemini.InboundEvent, size int) []func() {
	if ev.Kind == gemini.InboundSetupComplete {
		if m.state != StateAwaitingSetupAck {
			m.log.Warn("unexpected setupComplete", "state", m.state.String())
			return nil
		}
		m.setupLatency = m.now().Sub(m.openedAt)
		m.log.Info("setup complete", "latency", m.setupLatency)
		close(m.ready)
		after := []func(){func() { m.emit.EnvelopeReceived(ev.Kind.String(), size) }}
		return append(after, m.transitionLocked(StateActive)...)
	}

	if m.state != StateActive {
		m.log.Debug("ignoring inbound event outside active state", "kind", ev.Kind.String(), "state", m.state.String())
		return nil
	}

	received := func() { m.emit.EnvelopeReceived(ev.Kind.String(), size) }

	switch ev.Kind {
	case gemini.InboundInputTranscription:
		return m.appendTranscriptLocked(SpeakerUser, ev.Text, received)
	case gemini.InboundOutputTranscription, gemini.InboundModelText:
		return m.appendTranscriptLocked(SpeakerModel, ev.Text, received)

	case gemini.InboundModelAudio:
		chunk := ev.Media
		return []func(){received, func() { m.playAudio(chunk) }}

	case gemini.InboundInterrupted:
		m.log.Info("model output interrupted")
		return []func(){received, func() {
			stopped := m.player.Interrupt()
			m.emit.Interrupted(stopped)
		}}

	case gemini.InboundTurnComplete:
		user, model := m.transcript.Flush()
		m.turns++
		record := TurnRecord{
			SessionID:   m.cfg.SessionID,
			Index:       m.turns,
			UserText:    user,
			ModelText:   model,
			CompletedAt: m.now(),
			Usage:       m.usage,
		}
		return []func(){received, func() {
			if user != "" {
				m.hooks.OnTranscript(SpeakerUser, user, true)
				m.emit.Transcript(string(SpeakerUser), user, true)
			}
			if model != "" {
				m.hooks.OnTranscript(SpeakerModel, model, true)
				m.emit.Transcript(string(SpeakerModel), model, true)
			}
			m.hooks.OnTurn(record)
			m.emit.TurnCompleted(record.Index, user, model)
		}}

	case gemini.InboundUsage:
		m.usage.Add(Usage{
			PromptTokens:   ev.Usage.PromptTokenCount,
			ResponseTokens: ev.Usage.ResponseTokenCount,
			TotalTokens:    ev.Usage.TotalTokenCount,
		})
		usage := m.usage
		return []func(){received, func() {
			m.emit.Usage(usage.PromptTokens, usage.ResponseTokens, usage.TotalTokens)
		}}

	case gemini.InboundGoAway:
		m.log.Warn("server announced disconnect", "timeLeft", ev.TimeLeft)
		timeLeft := ev.TimeLeft
		return []func(){received, func() {
			m.emit.GoAway(timeLeft)
			m.hooks.OnGoAway(timeLeft)
		}}
	}
	return nil
}

func (m *Machine) appendTranscriptLocked(speaker Speaker, text string, received func()) []func() {
	if text == "" {
		return []func(){received}
	}
	m.transcript.Append(speaker, text)
	return []func(){received, func() {
		m.hooks.OnTranscript(speaker, text, false)
		m.emit.Transcript(string(speaker), text, false)
	}}
}

func (m *Machine) playAudio(chunk gemini.MediaChunk) {
	pcm, err := gemini.DecodeAudio(chunk)
	if err != nil {
		m.log.Warn("dropping undecodable model audio", "error", err, "mimeType", chunk.MimeType)
		m.emit.DecodeError(chunk.MimeType, err)
		return
	}
	rate, _ := gemini.ParsePCMRate(chunk.MimeType)
	m.log.Debug("model audio", "rate", rate, "duration", gemini.PCMDuration(len(pcm), rate))
	if rate != gemini.OutputSampleRate {
		if pcm, err = audio.ResamplePCM16(pcm, rate, gemini.OutputSampleRate); err != nil {
			m.log.Warn("failed to resample model audio", "error", err, "rate", rate)
			return
		}
	}
	sc, err := m.player.Schedule(pcm)
	if err != nil {
		m.log.Warn("failed to schedule model audio", "error", err)
		return
	}
	m.emit.AudioScheduled(sc.Start, sc.Duration, len(pcm))
}

// HandleClose is the transport's close handler.
func (m *Machine) HandleClose(code int, reason string) {
	m.finish(fmt.Errorf("transport closed (code %d): %s", code, reason), code)
}

// HandleError is the transport's error handler, also used when Open fails.
func (m *Machine) HandleError(err error) {
	m.finish(err, 0)
}

// finish ends the machine after the transport has gone away. A close we
// initiated completes Closing; anything else is a failure.
func (m *Machine) finish(cause error, code int) {
	m.mu.Lock()
	var after []func()
	switch {
	case m.state == StateClosing:
		after = m.transitionLocked(StateClosed)
	case m.state.Terminal():
	default:
		connErr := newConnectionError("Transport", cause)
		if code != 0 {
			connErr.WithStatusCode(code)
		}
		m.failErr = connErr
		m.queue = nil
		m.queuedRT = 0
		m.log.Error("session failed", "error", cause, "state", m.state.String())
		after = m.transitionLocked(StateFailed)
		after = append(after, func() { m.emit.SessionError("transport", connErr) })
	}
	m.mu.Unlock()

	m.stopWriterOnce()
	run(after)
}

// Send queues an outbound envelope. Only setup may precede Active; any
// other envelope sent earlier is refused with ErrProtocolViolation and never
// reaches the wire. Realtime media beyond the queue bound is dropped with
// ErrQueueFull.
func (m *Machine) Send(env gemini.Envelope) error {
	kind := env.Kind()
	if kind == gemini.KindSetup || kind == gemini.KindUnknown {
		return fmt.Errorf("%w: cannot send %s envelope", ErrProtocolViolation, kind)
	}

	m.mu.Lock()
	if m.state != StateActive {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s envelope in state %s", ErrProtocolViolation, kind, state)
	}
	realtime := kind == gemini.KindAudioChunk || kind == gemini.KindVideoFrame
	if realtime && m.queuedRT >= m.cfg.QueueSize {
		m.dropped++
		m.mu.Unlock()
		m.emit.MediaDropped(string(kind))
		return ErrQueueFull
	}
	m.mu.Unlock()

	data, err := gemini.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", kind, err)
	}

	m.mu.Lock()
	if m.state != StateActive {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s envelope in state %s", ErrProtocolViolation, kind, state)
	}
	m.queue = append(m.queue, outbound{kind: kind, data: data})
	if realtime {
		m.queuedRT++
	}
	m.mu.Unlock()

	m.signal()
	return nil
}

func (m *Machine) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Machine) dequeue() (outbound, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return outbound{}, false
	}
	item := m.queue[0]
	m.queue[0] = outbound{}
	m.queue = m.queue[1:]
	if item.kind == gemini.KindAudioChunk || item.kind == gemini.KindVideoFrame {
		m.queuedRT--
	}
	return item, true
}

func (m *Machine) writeLoop() {
	defer close(m.writerDone)
	for {
		m.drain()
		select {
		case <-m.wake:
		case <-m.stopWriter:
			m.drain()
			return
		}
	}
}

func (m *Machine) drain() {
	for {
		item, ok := m.dequeue()
		if !ok {
			return
		}
		if err := m.transport.Send(item.data); err != nil {
			m.log.Warn("outbound send failed", "kind", string(item.kind), "error", err)
			continue
		}
		m.emit.EnvelopeSent(string(item.kind), len(item.data))
	}
}

func (m *Machine) stopWriterOnce() {
	m.writerOnce.Do(func() { close(m.stopWriter) })
}

// Close flushes queued envelopes (bounded by ctx), closes the transport and
// ends in Closed. It is safe from any state and re-entrant.
func (m *Machine) Close(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.state == StateIdle:
		after := m.transitionLocked(StateClosed)
		m.mu.Unlock()
		run(after)
		return nil
	case m.state == StateClosing || m.state.Terminal():
		m.mu.Unlock()
		return nil
	}
	transport := m.transport
	after := m.transitionLocked(StateClosing)
	m.mu.Unlock()
	run(after)

	m.stopWriterOnce()
	select {
	case <-m.writerDone:
	case <-ctx.Done():
		m.log.Warn("outbound flush abandoned", "error", ctx.Err())
	}

	if err := transport.Close(websocket.CloseNormalClosure, "client closing"); err != nil {
		m.log.Debug("transport close", "error", err)
	}

	// The transport's close handler normally completes the transition; a
	// transport that never opened has no read loop to report it.
	m.mu.Lock()
	if m.state == StateClosing {
		after = m.transitionLocked(StateClosed)
	} else {
		after = nil
	}
	m.mu.Unlock()
	run(after)
	return nil
}

// transitionLocked moves to next and returns the notifications to run
// after unlocking.
func (m *Machine) transitionLocked(next State) []func() {
	from := m.state
	if from == next {
		return nil
	}
	m.state = next
	if next.Terminal() {
		close(m.done)
	}
	m.log.Debug("state transition", "from", from.String(), "to", next.String())
	return []func(){func() {
		m.emit.StateChanged(from.String(), next.String())
		m.hooks.OnStateChange(from, next)
	}}
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready is closed when the machine reaches Active.
func (m *Machine) Ready() <-chan struct{} { return m.ready }

// Done is closed when the machine reaches Closed or Failed.
func (m *Machine) Done() <-chan struct{} { return m.done }

// Err returns the failure cause once the machine has failed.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failErr
}

// Usage returns cumulative token usage.
func (m *Machine) Usage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// SetupLatency returns the time from Connect to the setup acknowledgement.
func (m *Machine) SetupLatency() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setupLatency
}

// Dropped returns how many realtime media envelopes were dropped.
func (m *Machine) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Transcript returns the in-progress user and model transcripts.
func (m *Machine) Transcript() (user, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcript.User(), m.transcript.Model()
}
