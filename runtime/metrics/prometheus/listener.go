package prometheus

import (
	"sync"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/events"
)

// MetricsListener records session events as Prometheus metrics. Register
// Handle with an EventBus using SubscribeAll.
type MetricsListener struct {
	mu sync.Mutex
	// usage holds the last cumulative usage per session so token counters
	// receive deltas.
	usage  map[string]events.UsageData
	active map[string]bool
}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{
		usage:  make(map[string]events.UsageData),
		active: make(map[string]bool),
	}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	//exhaustive:ignore
	switch event.Type {
	case events.EventSessionStarted:
		l.handleSessionStarted(event)
	case events.EventSessionEnded:
		l.handleSessionEnded(event)
	case events.EventStateChanged:
		if data, ok := event.Data.(events.StateChangedData); ok {
			RecordStateTransition(data.From, data.To)
		}
	case events.EventEnvelopeSent:
		if data, ok := event.Data.(events.EnvelopeData); ok {
			RecordEnvelopeSent(data.Kind, data.Bytes)
		}
	case events.EventEnvelopeReceived:
		if data, ok := event.Data.(events.EnvelopeData); ok {
			RecordEnvelopeReceived(data.Kind)
		}
	case events.EventMediaDropped:
		if data, ok := event.Data.(events.MediaDroppedData); ok {
			RecordMediaDropped(data.Kind)
		}
	case events.EventDecodeError:
		RecordDecodeError()
	case events.EventInterrupted:
		RecordInterruption()
	case events.EventAudioScheduled:
		if data, ok := event.Data.(events.AudioScheduledData); ok {
			RecordAudioScheduled(data.Duration)
		}
	case events.EventTurnCompleted:
		RecordTurnCompleted()
	case events.EventUsage:
		l.handleUsage(event)
	case events.EventSessionError:
		if data, ok := event.Data.(events.ErrorData); ok {
			RecordError(data.Operation)
		}
	case events.EventGoAway:
		RecordGoAway()
	default:
		// Ignore events that don't have metrics
	}
}

func (l *MetricsListener) handleSessionStarted(event *events.Event) {
	data, ok := event.Data.(events.SessionStartedData)
	if !ok {
		return
	}
	l.mu.Lock()
	l.active[event.SessionID] = true
	l.mu.Unlock()
	RecordSessionStart(data.SetupLatency.Seconds())
}

func (l *MetricsListener) handleSessionEnded(event *events.Event) {
	data, ok := event.Data.(events.SessionEndedData)
	if !ok {
		return
	}
	l.mu.Lock()
	wasActive := l.active[event.SessionID]
	delete(l.active, event.SessionID)
	delete(l.usage, event.SessionID)
	l.mu.Unlock()
	RecordSessionEnd(data.FinalState, data.Duration.Seconds(), wasActive)
}

func (l *MetricsListener) handleUsage(event *events.Event) {
	data, ok := event.Data.(events.UsageData)
	if !ok {
		return
	}
	l.mu.Lock()
	prev := l.usage[event.SessionID]
	l.usage[event.SessionID] = data
	l.mu.Unlock()
	RecordTokens(data.PromptTokens-prev.PromptTokens, data.ResponseTokens-prev.ResponseTokens)
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
