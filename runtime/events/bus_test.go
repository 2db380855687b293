package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []*Event
}

func (c *collector) add(e *Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func TestEventBus_SpecificAndGlobalListeners(t *testing.T) {
	bus := NewEventBus()

	specific := &collector{}
	global := &collector{}
	bus.Subscribe(EventInterrupted, specific.add)
	bus.SubscribeAll(global.add)

	bus.Publish(&Event{Type: EventInterrupted})
	bus.Publish(&Event{Type: EventUsage})
	bus.Close()

	assert.Equal(t, []EventType{EventInterrupted}, specific.types())
	assert.Equal(t, []EventType{EventInterrupted, EventUsage}, global.types())
}

func TestEventBus_PreservesOrder(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}
	bus.SubscribeAll(c.add)

	want := make([]EventType, 0, 200)
	for i := 0; i < 100; i++ {
		bus.Publish(&Event{Type: EventTranscript})
		bus.Publish(&Event{Type: EventTurnCompleted})
		want = append(want, EventTranscript, EventTurnCompleted)
	}
	bus.Close()

	assert.Equal(t, want, c.types())
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	first := &collector{}
	second := &collector{}
	tok := bus.SubscribeAll(first.add)
	bus.SubscribeAll(second.add)

	bus.Unsubscribe(tok)
	bus.Unsubscribe(Token(999))
	bus.Publish(&Event{Type: EventUsage})
	bus.Close()

	assert.Empty(t, first.types())
	assert.Len(t, second.types(), 1)
}

func TestEventBus_ListenerPanicIsContained(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}
	bus.SubscribeAll(func(*Event) { panic("boom") })
	bus.SubscribeAll(c.add)

	bus.Publish(&Event{Type: EventUsage})
	bus.Close()

	assert.Len(t, c.types(), 1)
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBusWithBuffer(1)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.SubscribeAll(func(*Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	bus.Publish(&Event{Type: EventUsage})
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not start")
	}
	bus.Publish(&Event{Type: EventUsage}) // fills the queue
	bus.Publish(&Event{Type: EventUsage}) // dropped

	assert.Equal(t, uint64(1), bus.Dropped())
	close(release)
	bus.Close()
}

func TestEventBus_PublishAfterCloseIgnored(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}
	bus.SubscribeAll(c.add)
	bus.Close()
	bus.Close()

	bus.Publish(&Event{Type: EventUsage})
	bus.Publish(nil)
	assert.Empty(t, c.types())
}

func TestEventBus_Clear(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}
	bus.SubscribeAll(c.add)
	bus.Clear()
	bus.Publish(&Event{Type: EventUsage})
	bus.Close()

	assert.Empty(t, c.types())
}

func TestEmitter_StampsSession(t *testing.T) {
	bus := NewEventBus()
	c := &collector{}
	bus.SubscribeAll(c.add)

	em := NewEmitter(bus, "sess-9")
	em.SessionStarted("models/live", "Puck", true, 120*time.Millisecond)
	em.StateChanged("idle", "connecting")
	em.SessionError("Start", assert.AnError)
	em.EnvelopeSent("setup", 10)
	em.EnvelopeReceived("setup_complete", 20)
	em.MediaDropped("realtime_video")
	em.DecodeError("audio/mp3", assert.AnError)
	em.Transcript("user", "hi", false)
	em.TurnCompleted(1, "hi", "hello")
	em.AudioScheduled(0, 0.1, 4800)
	em.Interrupted(2)
	em.UserSpeech(true, 0.4)
	em.Usage(1, 2, 3)
	em.GoAway("10s")
	em.SessionEnded("closed", time.Second, nil)
	bus.Close()

	require.Len(t, c.events, 15)
	for _, e := range c.events {
		assert.Equal(t, "sess-9", e.SessionID)
		assert.False(t, e.Timestamp.IsZero())
		assert.NotNil(t, e.Data)
	}
	turn, ok := c.events[8].Data.(TurnCompletedData)
	require.True(t, ok)
	assert.Equal(t, "hello", turn.ModelText)
}

func TestEmitter_NilSafe(t *testing.T) {
	var em *Emitter
	em.Usage(1, 1, 2)
	NewEmitter(nil, "x").Usage(1, 1, 2)
}
