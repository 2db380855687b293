// Package events provides a lightweight ordered pub/sub bus for live session
// observability. Metrics, tracing and transcript history subscribe here.
package events

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the number of events that may be queued for delivery.
const DefaultBufferSize = 1024

// Listener is a function that handles events.
type Listener func(*Event)

// Token identifies a subscription for Unsubscribe.
type Token uint64

type subscription struct {
	token     Token
	eventType EventType // empty means all types
	listener  Listener
}

// EventBus delivers events to listeners on a single dispatcher goroutine, so
// every listener sees events in publish order. Publish never blocks; when the
// queue is full the event is dropped and counted.
type EventBus struct {
	mu        sync.RWMutex
	subs      []subscription
	nextToken Token

	queue     chan *Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
}

// NewEventBus creates a new event bus with DefaultBufferSize.
func NewEventBus() *EventBus {
	return NewEventBusWithBuffer(DefaultBufferSize)
}

// NewEventBusWithBuffer creates a bus whose queue holds size events.
func NewEventBusWithBuffer(size int) *EventBus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	eb := &EventBus{
		queue: make(chan *Event, size),
		done:  make(chan struct{}),
	}
	eb.wg.Add(1)
	go eb.dispatch()
	return eb
}

// Subscribe registers a listener for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) Token {
	return eb.add(eventType, listener)
}

// SubscribeAll registers a listener for all event types.
func (eb *EventBus) SubscribeAll(listener Listener) Token {
	return eb.add("", listener)
}

func (eb *EventBus) add(eventType EventType, listener Listener) Token {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextToken++
	eb.subs = append(eb.subs, subscription{token: eb.nextToken, eventType: eventType, listener: listener})
	return eb.nextToken
}

// Unsubscribe removes a listener. Unknown tokens are ignored.
func (eb *EventBus) Unsubscribe(token Token) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, s := range eb.subs {
		if s.token == token {
			eb.subs = append(eb.subs[:i:i], eb.subs[i+1:]...)
			return
		}
	}
}

// Publish queues an event for delivery.
func (eb *EventBus) Publish(event *Event) {
	if event == nil || eb.closed.Load() {
		return
	}
	select {
	case eb.queue <- event:
	default:
		eb.dropped.Add(1)
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// Close stops accepting events, delivers what is queued and waits for the
// dispatcher to exit. It is idempotent.
func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() {
		eb.closed.Store(true)
		close(eb.done)
	})
	eb.wg.Wait()
}

// Clear removes all listeners (primarily for tests).
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subs = nil
}

func (eb *EventBus) dispatch() {
	defer eb.wg.Done()
	for {
		select {
		case event := <-eb.queue:
			eb.deliver(event)
		case <-eb.done:
			for {
				select {
				case event := <-eb.queue:
					eb.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (eb *EventBus) deliver(event *Event) {
	eb.mu.RLock()
	subs := make([]subscription, len(eb.subs))
	copy(subs, eb.subs)
	eb.mu.RUnlock()

	for _, s := range subs {
		if s.eventType == "" || s.eventType == event.Type {
			safeInvoke(s.listener, event)
		}
	}
}

func safeInvoke(listener Listener, event *Event) {
	defer func() { _ = recover() }()
	listener(event)
}
