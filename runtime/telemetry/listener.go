package telemetry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/events"
)

// Span names.
const (
	SpanSession = "live.session"
	SpanSetup   = "live.setup"
	SpanTurn    = "live.turn"
)

// sessionState tracks the open spans of one session.
type sessionState struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // needed to parent child spans

	setup trace.Span
	turn  trace.Span

	dropped int
}

// OTelEventListener turns session events into spans: a root span per
// session, a setup span from dial to acknowledgement, and one span per
// conversation turn. Events arrive in order from a single bus dispatcher,
// but the listener is safe for concurrent use.
type OTelEventListener struct {
	tracer trace.Tracer

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewOTelEventListener creates a listener that creates OTel spans from session events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:   tracer,
		sessions: make(map[string]*sessionState),
	}
}

// StartSession opens the root span for sessionID under parentCtx. Sessions
// not started explicitly get a root span on their first event.
func (l *OTelEventListener) StartSession(parentCtx context.Context, sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startLocked(parentCtx, sessionID)
}

func (l *OTelEventListener) startLocked(parentCtx context.Context, sessionID string) *sessionState {
	if ss, ok := l.sessions[sessionID]; ok {
		return ss
	}
	ctx, span := l.tracer.Start(parentCtx, SpanSession,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	ss := &sessionState{span: span, ctx: ctx}
	l.sessions[sessionID] = ss
	return ss
}

// EndSession ends every open span of the session.
func (l *OTelEventListener) EndSession(sessionID string) {
	l.mu.Lock()
	ss, ok := l.sessions[sessionID]
	delete(l.sessions, sessionID)
	l.mu.Unlock()
	if ok {
		ss.end()
	}
}

// OnEvent handles a single session event. It can be passed to EventBus.SubscribeAll.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	if evt == nil || evt.SessionID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	//nolint:exhaustive // only span-producing events
	switch evt.Type {
	case events.EventStateChanged:
		l.handleStateChanged(evt)
	case events.EventSessionStarted:
		l.handleSessionStarted(evt)
	case events.EventSessionEnded:
		l.handleSessionEnded(evt)
	case events.EventTranscript, events.EventAudioScheduled:
		l.ensureTurn(l.startLocked(context.Background(), evt.SessionID))
	case events.EventTurnCompleted:
		l.handleTurnCompleted(evt)
	case events.EventInterrupted:
		l.handleInterrupted(evt)
	case events.EventUsage:
		l.handleUsage(evt)
	case events.EventMediaDropped:
		l.startLocked(context.Background(), evt.SessionID).dropped++
	case events.EventDecodeError:
		l.handleDecodeError(evt)
	case events.EventGoAway:
		l.handleGoAway(evt)
	case events.EventSessionError:
		l.handleSessionError(evt)
	}
}

func (l *OTelEventListener) handleStateChanged(evt *events.Event) {
	data, ok := evt.Data.(events.StateChangedData)
	if !ok {
		return
	}
	ss := l.startLocked(context.Background(), evt.SessionID)
	ss.span.AddEvent("state_changed", trace.WithAttributes(
		attribute.String("state.from", data.From),
		attribute.String("state.to", data.To),
	))
	if data.To == "connecting" && ss.setup == nil {
		_, ss.setup = l.tracer.Start(ss.ctx, SpanSetup)
	}
}

func (l *OTelEventListener) handleSessionStarted(evt *events.Event) {
	data, ok := evt.Data.(events.SessionStartedData)
	if !ok {
		return
	}
	ss := l.startLocked(context.Background(), evt.SessionID)
	ss.span.SetAttributes(
		attribute.String("gen_ai.request.model", data.Model),
		attribute.String("live.voice", data.Voice),
		attribute.Bool("live.video", data.Video),
	)
	if ss.setup != nil {
		ss.setup.SetAttributes(attribute.Int64("live.setup_latency_ms", data.SetupLatency.Milliseconds()))
		ss.setup.SetStatus(codes.Ok, "")
		ss.setup.End()
		ss.setup = nil
	}
}

func (l *OTelEventListener) handleSessionEnded(evt *events.Event) {
	ss, ok := l.sessions[evt.SessionID]
	if !ok {
		return
	}
	delete(l.sessions, evt.SessionID)

	data, _ := evt.Data.(events.SessionEndedData)
	ss.span.SetAttributes(
		attribute.String("live.final_state", data.FinalState),
		attribute.Int("live.media_dropped", ss.dropped),
	)
	if data.FinalState == "failed" {
		err := data.Error
		if err == nil {
			err = errors.New("session failed")
		}
		for _, s := range []trace.Span{ss.setup, ss.turn, ss.span} {
			if s != nil {
				s.RecordError(err)
				s.SetStatus(codes.Error, err.Error())
			}
		}
	} else {
		ss.span.SetStatus(codes.Ok, "")
	}
	ss.end()
}

func (l *OTelEventListener) ensureTurn(ss *sessionState) {
	if ss.turn == nil {
		_, ss.turn = l.tracer.Start(ss.ctx, SpanTurn)
	}
}

func (l *OTelEventListener) handleTurnCompleted(evt *events.Event) {
	data, ok := evt.Data.(events.TurnCompletedData)
	if !ok {
		return
	}
	ss := l.startLocked(context.Background(), evt.SessionID)
	l.ensureTurn(ss)
	ss.turn.SetAttributes(
		attribute.Int("turn.index", data.Index),
		attribute.Int("turn.user_chars", len(data.UserText)),
		attribute.Int("turn.model_chars", len(data.ModelText)),
	)
	ss.turn.End()
	ss.turn = nil
}

func (l *OTelEventListener) handleInterrupted(evt *events.Event) {
	data, _ := evt.Data.(events.InterruptedData)
	ss := l.startLocked(context.Background(), evt.SessionID)
	ss.span.AddEvent("interrupted", trace.WithAttributes(attribute.Int("playback.stopped", data.StoppedHandles)))
	if ss.turn != nil {
		ss.turn.SetAttributes(attribute.Bool("turn.interrupted", true))
	}
}

func (l *OTelEventListener) handleUsage(evt *events.Event) {
	data, ok := evt.Data.(events.UsageData)
	if !ok {
		return
	}
	ss := l.startLocked(context.Background(), evt.SessionID)
	ss.span.SetAttributes(
		attribute.Int("gen_ai.usage.input_tokens", data.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", data.ResponseTokens),
		attribute.Int("gen_ai.usage.total_tokens", data.TotalTokens),
	)
}

func (l *OTelEventListener) handleDecodeError(evt *events.Event) {
	data, _ := evt.Data.(events.DecodeErrorData)
	ss := l.startLocked(context.Background(), evt.SessionID)
	attrs := []attribute.KeyValue{attribute.String("mime_type", data.MimeType)}
	if data.Error != nil {
		attrs = append(attrs, attribute.String("error", data.Error.Error()))
	}
	ss.span.AddEvent("decode_error", trace.WithAttributes(attrs...))
}

func (l *OTelEventListener) handleGoAway(evt *events.Event) {
	data, _ := evt.Data.(events.GoAwayData)
	ss := l.startLocked(context.Background(), evt.SessionID)
	ss.span.AddEvent("go_away", trace.WithAttributes(attribute.String("time_left", data.TimeLeft)))
}

func (l *OTelEventListener) handleSessionError(evt *events.Event) {
	data, ok := evt.Data.(events.ErrorData)
	if !ok || data.Error == nil {
		return
	}
	ss := l.startLocked(context.Background(), evt.SessionID)
	ss.span.RecordError(data.Error, trace.WithAttributes(attribute.String("operation", data.Operation)))
}

func (ss *sessionState) end() {
	if ss.setup != nil {
		ss.setup.End()
	}
	if ss.turn != nil {
		ss.turn.End()
	}
	ss.span.End()
}
