package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/audio"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/capture"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/events"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/logger"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/playback"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/providers/gemini"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/statestore"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/streaming"
)

const (
	// drainPollInterval is how often playback is checked for drain.
	drainPollInterval = 100 * time.Millisecond
	// historyQueueSize bounds turns waiting to be persisted.
	historyQueueSize = 32
	// historyWriteTimeout bounds one store append.
	historyWriteTimeout = 5 * time.Second
	// abortCloseTimeout bounds teardown after a failed start.
	abortCloseTimeout = 2 * time.Second
)

// SessionConfig holds the collaborators of a Session. Zero values select
// the defaults noted on each field.
type SessionConfig struct {
	// Endpoint is the Live API WebSocket URL (default gemini.DefaultEndpoint).
	Endpoint string
	// APIKey is sent as the key query parameter. It is never logged.
	APIKey string

	// Audio is the microphone (default capture.NewMicrophone).
	Audio capture.AudioSource
	// Video is the camera (default an ffmpeg webcam, opened only when
	// video is enabled).
	Video capture.FrameSource
	// Sink renders model audio (default playback.DiscardSink).
	Sink playback.Sink
	// Clock is the playback time base (default playback.WallClock).
	Clock playback.Clock

	// Store persists finalized turns when set.
	Store statestore.TranscriptStore
	// Bus receives session events (default a private bus).
	Bus *events.EventBus
	// VAD tunes local speech detection (default audio.DefaultVADParams).
	VAD *audio.VADParams

	DialTimeout time.Duration
	QueueSize   int
	Logger      Logger
}

type callbacks struct {
	onTranscript       func(Speaker, string, bool)
	onSpeaking         func(bool)
	onAudioLevel       func(float64)
	onError            func(error)
	onConnectionChange func(bool)
}

// Session is one live conversation. It owns the transport, the playback
// scheduler and the capture devices, and releases all of them on Stop or
// on transport failure.
type Session struct {
	cfg     SessionConfig
	id      string
	bus     *events.EventBus
	ownsBus bool
	emit    *events.Emitter
	log     Logger
	player  *playback.Scheduler
	vad     *audio.SimpleVAD

	cbMu sync.RWMutex
	cb   callbacks

	mu        sync.Mutex
	machine   *Machine
	conn      *streaming.Conn
	capturer  *capture.Capturer
	runCancel context.CancelFunc
	watchDone chan struct{}
	starting  bool
	stopped   bool
	connected bool
	startedAt time.Time

	historyMu     sync.Mutex
	history       chan TurnRecord
	historyClosed bool
	historyDone   chan struct{}
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		cfg: cfg,
		id:  uuid.NewString(),
		bus: cfg.Bus,
		log: cfg.Logger,
	}
	if s.bus == nil {
		s.bus = events.NewEventBus()
		s.ownsBus = true
	}
	if s.log == nil {
		s.log = logger.Component("live").WithContext(
			logger.WithLoggingContext(context.Background(), &logger.LoggingFields{SessionID: s.id}))
	}
	s.emit = events.NewEmitter(s.bus, s.id)

	s.player = playback.NewScheduler(cfg.Sink, cfg.Clock)
	s.player.OnSpeaking(s.handleSpeaking)

	params := audio.DefaultVADParams()
	if cfg.VAD != nil {
		params = *cfg.VAD
	}
	vad, err := audio.NewSimpleVAD(params)
	if err != nil {
		s.log.Warn("invalid VAD params, using defaults", "error", err)
		vad, _ = audio.NewSimpleVAD(audio.DefaultVADParams())
	}
	s.vad = vad

	if cfg.Store != nil {
		s.history = make(chan TurnRecord, historyQueueSize)
		s.historyDone = make(chan struct{})
		go s.historyLoop()
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	m, stopped := s.machine, s.stopped
	s.mu.Unlock()
	switch {
	case m != nil:
		return m.State()
	case stopped:
		return StateClosed
	default:
		return StateIdle
	}
}

// Usage returns cumulative token usage for the current connection.
func (s *Session) Usage() Usage {
	s.mu.Lock()
	m := s.machine
	s.mu.Unlock()
	if m == nil {
		return Usage{}
	}
	return m.Usage()
}

// Start validates opts, acquires the capture devices, connects, sends the
// setup envelope and waits for its acknowledgement before streaming media.
// A device failure returns a PermissionError before the transport is
// opened. Device and transport failures are also reported once through
// OnError and OnConnectionChange(false). Calling Start while starting or
// active is a no-op.
func (s *Session) Start(ctx context.Context, opts Options) error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrSessionEnded
	case s.starting, s.machine != nil && s.machine.State().starting():
		s.mu.Unlock()
		return nil
	}
	s.starting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	if err := opts.Validate(); err != nil {
		return newConfigError("Start", err)
	}
	opts = opts.withDefaults()

	endpoint := s.cfg.Endpoint
	if endpoint == "" {
		endpoint = gemini.DefaultEndpoint
	}
	url, err := gemini.BuildURL(endpoint, s.cfg.APIKey)
	if err != nil {
		return newConfigError("Start", err)
	}

	log := s.connLogger(opts)
	capt := s.newCapturer(opts, log)
	if err := capt.Open(ctx); err != nil {
		log.Warn("capture devices unavailable", "error", err)
		return s.failStart(newPermissionError("Start", err))
	}

	m := NewMachine(MachineConfig{
		SessionID: s.id,
		Setup:     opts.setupConfig(),
		Player:    s.player,
		Emitter:   s.emit,
		Logger:    log,
		QueueSize: s.cfg.QueueSize,
		Hooks: MachineHooks{
			OnTranscript: s.handleTranscript,
			OnTurn:       s.handleTurn,
		},
	})
	conn := streaming.NewConn(&streaming.ConnConfig{
		URL:         url,
		DialTimeout: s.cfg.DialTimeout,
		RedactURL:   logger.RedactURL,
		Logger:      log,
	}, streaming.Handlers{
		OnOpen:    m.HandleOpen,
		OnMessage: m.HandleMessage,
		OnClose:   m.HandleClose,
		OnError:   m.HandleError,
	})
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		_ = capt.Stop()
		return ErrSessionEnded
	}
	s.machine, s.conn, s.capturer, s.runCancel = m, conn, capt, cancel
	s.startedAt = time.Now()
	s.mu.Unlock()

	if err := m.Connect(conn); err != nil {
		s.abortStart(m, conn, capt, cancel, err)
		return err
	}
	log.Info("connecting", "video", opts.VideoEnabled)

	if err := conn.Open(ctx); err != nil {
		s.abortStart(m, conn, capt, cancel, err)
		connErr := newConnectionError("Start", err)
		var dialErr *streaming.DialError
		if errors.As(err, &dialErr) && dialErr.StatusCode != 0 {
			connErr.WithStatusCode(dialErr.StatusCode)
		}
		return s.failStart(connErr)
	}

	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var waitCancel context.CancelFunc
		waitCtx, waitCancel = context.WithTimeout(ctx, opts.SetupTimeout)
		defer waitCancel()
	}
	select {
	case <-m.Ready():
	case <-m.Done():
		cause := m.Err()
		if cause == nil {
			cause = ErrSessionEnded
		}
		s.abortStart(m, conn, capt, cancel, cause)
		return s.failStart(newConnectionError("Start", cause))
	case <-waitCtx.Done():
		cause := fmt.Errorf("awaiting setup acknowledgement: %w", waitCtx.Err())
		s.abortStart(m, conn, capt, cancel, cause)
		return s.failStart(newConnectionError("Start", cause))
	}

	if opts.HeartbeatInterval > 0 {
		conn.StartHeartbeat(runCtx, opts.HeartbeatInterval)
	}
	if err := capt.Start(runCtx, &captureSink{session: s, machine: m}); err != nil {
		s.abortStart(m, conn, capt, cancel, err)
		return s.failStart(newDeviceError("Start", err))
	}

	watchDone := make(chan struct{})
	s.mu.Lock()
	s.watchDone = watchDone
	s.mu.Unlock()
	go s.watch(m, conn, capt, watchDone)

	s.setConnected(true)
	s.emit.SessionStarted(opts.Model, opts.Voice, opts.VideoEnabled, m.SetupLatency())
	log.Info("session active", "setupLatency", m.SetupLatency())
	return nil
}

// connLogger returns the session logger bound to the model and voice of one
// connection. A caller-supplied Logger is used as is.
func (s *Session) connLogger(opts Options) Logger {
	cl, ok := s.log.(*logger.ComponentLogger)
	if !ok {
		return s.log
	}
	return cl.WithContext(logger.WithLoggingContext(cl.Context(), &logger.LoggingFields{
		Model: opts.Model,
		Voice: opts.Voice,
	}))
}

// failStart surfaces a transport or device failure from Start through
// onError and onConnectionChange(false), then returns it.
func (s *Session) failStart(err error) error {
	s.reportError(err)
	if fn := s.callbacks().onConnectionChange; fn != nil {
		fn(false)
	}
	return err
}

func (s *Session) newCapturer(opts Options, log Logger) *capture.Capturer {
	audioSrc := s.cfg.Audio
	if audioSrc == nil {
		audioSrc = capture.NewMicrophone(opts.AudioFrameDuration)
	}
	video := s.cfg.Video
	if video == nil {
		video = capture.NewWebcam(capture.WebcamConfig{})
	}
	return capture.NewCapturer(audioSrc, video, opts.captureConfig(s.reportCaptureError), log)
}

// abortStart fails the machine with cause and releases everything Start acquired.
func (s *Session) abortStart(m *Machine, conn *streaming.Conn, capt *capture.Capturer, cancel context.CancelFunc, cause error) {
	m.HandleError(cause)
	_ = capt.Stop()
	_ = conn.Close(websocket.CloseNormalClosure, "setup aborted")

	ctx, done := context.WithTimeout(context.Background(), abortCloseTimeout)
	defer done()
	select {
	case <-conn.Done():
	case <-ctx.Done():
	}
	cancel()
}

// watch polls playback for drain and tears down after the machine ends.
func (s *Session) watch(m *Machine, conn *streaming.Conn, capt *capture.Capturer, done chan struct{}) {
	defer close(done)

	captureErr := make(chan error, 1)
	go func() { captureErr <- capt.Wait() }()

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.player.Pending()
		case err := <-captureErr:
			if err != nil {
				s.reportError(newDeviceError("Capture", err))
			}
			captureErr = nil
		case <-m.Done():
			final := m.State()
			if final == StateFailed {
				s.log.Error("session lost", "error", m.Err())
				_ = capt.Stop()
				_ = conn.Close(websocket.CloseNormalClosure, "session failed")
				s.player.Interrupt()
				s.reportError(m.Err())
			}
			s.setConnected(false)

			s.mu.Lock()
			startedAt := s.startedAt
			s.mu.Unlock()
			s.emit.SessionEnded(final.String(), time.Since(startedAt), m.Err())
			return
		}
	}
}

// Stop ends the session: capture stops, queued envelopes are flushed within
// ctx, the transport is closed and playback halted. It always returns nil
// and may be called repeatedly.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	m, conn, capt, cancel, watchDone := s.machine, s.conn, s.capturer, s.runCancel, s.watchDone
	s.mu.Unlock()

	if capt != nil {
		if err := capt.Stop(); err != nil {
			s.log.Warn("capture release failed", "error", err)
		}
	}
	if m != nil {
		_ = m.Close(ctx)
		waitOrDone(ctx, conn.Done())
	}
	if cancel != nil {
		cancel()
	}
	if watchDone != nil {
		waitOrDone(ctx, watchDone)
	}

	s.player.Interrupt()
	if err := s.player.Close(); err != nil {
		s.log.Warn("playback close failed", "error", err)
	}
	s.setConnected(false)
	s.closeHistory(ctx)
	if s.ownsBus {
		s.bus.Close()
	}
	s.log.Info("session stopped")
	return nil
}

func waitOrDone(ctx context.Context, ch <-chan struct{}) {
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// SendImage sends one JPEG still, such as a photo of an outfit.
func (s *Session) SendImage(_ context.Context, jpeg []byte) error {
	return s.send("SendImage", gemini.EncodeFrame(jpeg))
}

// SendText sends a typed user turn.
func (s *Session) SendText(_ context.Context, text string, turnComplete bool) error {
	return s.send("SendText", gemini.BuildText(text, turnComplete))
}

// EndAudioStream tells the service the microphone stream has paused.
func (s *Session) EndAudioStream(_ context.Context) error {
	return s.send("EndAudioStream", gemini.BuildAudioStreamEnd())
}

func (s *Session) send(op string, env gemini.Envelope) error {
	s.mu.Lock()
	m := s.machine
	s.mu.Unlock()
	if m == nil {
		return newNotConnectedError(op, StateIdle, nil)
	}
	err := m.Send(env)
	if errors.Is(err, ErrProtocolViolation) {
		return newNotConnectedError(op, m.State(), err)
	}
	return err
}

// SetMuted mutes or unmutes the microphone. Muted audio is captured and discarded.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	capt := s.capturer
	s.mu.Unlock()
	if capt != nil {
		capt.SetMuted(muted)
	}
}

// SetVideoEnabled starts or stops camera frames.
func (s *Session) SetVideoEnabled(enabled bool) {
	s.mu.Lock()
	capt := s.capturer
	s.mu.Unlock()
	if capt != nil {
		capt.SetVideoEnabled(enabled)
	}
}

// OnTranscript registers the transcript callback. Partial fragments arrive
// with final=false; the whole turn arrives with final=true on turn completion.
func (s *Session) OnTranscript(fn func(speaker Speaker, text string, final bool)) {
	s.cbMu.Lock()
	s.cb.onTranscript = fn
	s.cbMu.Unlock()
}

// OnSpeaking registers the callback for model playback starting and stopping.
func (s *Session) OnSpeaking(fn func(speaking bool)) {
	s.cbMu.Lock()
	s.cb.onSpeaking = fn
	s.cbMu.Unlock()
}

// OnAudioLevel registers the callback for the RMS level of each microphone frame.
func (s *Session) OnAudioLevel(fn func(level float64)) {
	s.cbMu.Lock()
	s.cb.onAudioLevel = fn
	s.cbMu.Unlock()
}

// OnError registers the callback for asynchronous session errors.
func (s *Session) OnError(fn func(err error)) {
	s.cbMu.Lock()
	s.cb.onError = fn
	s.cbMu.Unlock()
}

// OnConnectionChange registers the callback for the session becoming active
// and for it ending.
func (s *Session) OnConnectionChange(fn func(connected bool)) {
	s.cbMu.Lock()
	s.cb.onConnectionChange = fn
	s.cbMu.Unlock()
}

// Subscribe registers an event listener; an empty kind subscribes to all events.
func (s *Session) Subscribe(kind events.EventType, fn events.Listener) events.Token {
	if kind == "" {
		return s.bus.SubscribeAll(fn)
	}
	return s.bus.Subscribe(kind, fn)
}

// Unsubscribe removes a listener added with Subscribe.
func (s *Session) Unsubscribe(token events.Token) {
	s.bus.Unsubscribe(token)
}

func (s *Session) callbacks() callbacks {
	s.cbMu.RLock()
	defer s.cbMu.RUnlock()
	return s.cb
}

func (s *Session) handleTranscript(speaker Speaker, text string, final bool) {
	if fn := s.callbacks().onTranscript; fn != nil {
		fn(speaker, text, final)
	}
}

func (s *Session) handleSpeaking(speaking bool) {
	if fn := s.callbacks().onSpeaking; fn != nil {
		fn(speaking)
	}
}

func (s *Session) reportError(err error) {
	if err == nil {
		return
	}
	s.emit.SessionError("session", err)
	if fn := s.callbacks().onError; fn != nil {
		fn(err)
	}
}

func (s *Session) reportCaptureError(err error) {
	s.log.Debug("capture error", "error", err)
	if errors.Is(err, capture.ErrPermissionDenied) {
		s.reportError(newPermissionError("Capture", err))
	}
}

func (s *Session) setConnected(connected bool) {
	s.mu.Lock()
	changed := s.connected != connected
	s.connected = connected
	s.mu.Unlock()
	if !changed {
		return
	}
	if fn := s.callbacks().onConnectionChange; fn != nil {
		fn(connected)
	}
}

// observeLevel runs local voice detection on a captured frame.
func (s *Session) observeLevel(pcm []byte) {
	a := s.vad.Analyze(pcm)
	if fn := s.callbacks().onAudioLevel; fn != nil {
		fn(a.Level)
	}
	if a.Transition == nil {
		return
	}
	switch a.Transition.State {
	case audio.VADStateSpeaking:
		s.emit.UserSpeech(true, a.Level)
	case audio.VADStateQuiet:
		s.emit.UserSpeech(false, a.Level)
	}
}

func (s *Session) handleTurn(record TurnRecord) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	if s.history == nil || s.historyClosed {
		return
	}
	select {
	case s.history <- record:
	default:
		s.log.Warn("turn history queue full, dropping turn", "turn", record.Index)
	}
}

func (s *Session) historyLoop() {
	defer close(s.historyDone)
	for record := range s.history {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		if err := s.cfg.Store.Append(ctx, record); err != nil {
			s.log.Warn("failed to persist turn", "turn", record.Index, "error", err)
		}
		cancel()
	}
}

func (s *Session) closeHistory(ctx context.Context) {
	s.historyMu.Lock()
	if s.history == nil || s.historyClosed {
		s.historyMu.Unlock()
		return
	}
	s.historyClosed = true
	close(s.history)
	s.historyMu.Unlock()
	waitOrDone(ctx, s.historyDone)
}

// captureSink forwards captured media into the machine without blocking.
type captureSink struct {
	session *Session
	machine *Machine
}

func (c *captureSink) AudioFrame(pcm []byte) {
	c.session.observeLevel(pcm)
	c.forward(gemini.EncodeAudio(pcm, gemini.InputSampleRate))
}

func (c *captureSink) VideoFrame(jpeg []byte) {
	c.forward(gemini.EncodeFrame(jpeg))
}

func (c *captureSink) forward(env gemini.Envelope) {
	if err := c.machine.Send(env); err != nil && !errors.Is(err, ErrQueueFull) {
		c.session.log.Debug("media not sent", "kind", string(env.Kind()), "error", err)
	}
}
