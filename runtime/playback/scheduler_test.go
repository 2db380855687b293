package playback

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pcmFor returns silent PCM lasting d at the output rate.
func pcmFor(d time.Duration) []byte {
	samples := int(math.Round(d.Seconds() * SampleRate))
	return make([]byte, samples*bytesPerSample)
}

func TestScheduler_Monotonic(t *testing.T) {
	clock := &ManualClock{}
	sink := &DiscardSink{}
	s := NewScheduler(sink, clock)

	var prevEnd float64
	for i := 0; i < 5; i++ {
		sc, err := s.Schedule(pcmFor(200 * time.Millisecond))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sc.Start, prevEnd)
		assert.InDelta(t, prevEnd, sc.Start, 1e-9, "back-to-back chunks are contiguous")
		assert.InDelta(t, 0.2, sc.Duration, 1e-9)
		prevEnd = sc.End()
	}
	assert.InDelta(t, 1.0, s.NextStartTime(), 1e-9)
	assert.Len(t, sink.Played(), 5)
}

func TestScheduler_LateChunkStartsNow(t *testing.T) {
	clock := &ManualClock{}
	s := NewScheduler(nil, clock)

	_, err := s.Schedule(pcmFor(100 * time.Millisecond))
	require.NoError(t, err)

	clock.Set(2.0)
	sc, err := s.Schedule(pcmFor(100 * time.Millisecond))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sc.Start, 1e-9)
	assert.InDelta(t, 2.1, s.NextStartTime(), 1e-9)
}

func TestScheduler_InterruptResets(t *testing.T) {
	clock := &ManualClock{}
	sink := &DiscardSink{}
	s := NewScheduler(sink, clock)

	for i := 0; i < 3; i++ {
		_, err := s.Schedule(pcmFor(500 * time.Millisecond))
		require.NoError(t, err)
	}
	clock.Set(0.25)
	require.Equal(t, 3, s.Pending())

	stopped := s.Interrupt()
	assert.Equal(t, 3, stopped)
	assert.Zero(t, s.Pending())
	assert.InDelta(t, 0.25, s.NextStartTime(), 1e-9, "cursor resets to the current clock value")
	assert.ElementsMatch(t, []Handle{1, 2, 3}, sink.Stopped())

	sc, err := s.Schedule(pcmFor(100 * time.Millisecond))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, sc.Start, 1e-9, "first chunk after interrupt starts at now")
}

func TestScheduler_PendingPrunesFinished(t *testing.T) {
	clock := &ManualClock{}
	s := NewScheduler(nil, clock)

	_, _ = s.Schedule(pcmFor(100 * time.Millisecond))
	_, _ = s.Schedule(pcmFor(100 * time.Millisecond))
	assert.Equal(t, 2, s.Pending())

	clock.Set(0.1)
	assert.Equal(t, 1, s.Pending())

	clock.Set(0.2)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_InvalidPCM(t *testing.T) {
	s := NewScheduler(nil, &ManualClock{})

	_, err := s.Schedule(nil)
	assert.ErrorIs(t, err, ErrInvalidPCM)
	_, err = s.Schedule([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidPCM)
	assert.Zero(t, s.NextStartTime())
}

type speakingLog struct {
	mu     sync.Mutex
	states []bool
}

func (l *speakingLog) record(v bool) {
	l.mu.Lock()
	l.states = append(l.states, v)
	l.mu.Unlock()
}

func (l *speakingLog) get() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.states...)
}

func TestScheduler_OnSpeakingTransitions(t *testing.T) {
	clock := &ManualClock{}
	s := NewScheduler(nil, clock)
	log := &speakingLog{}
	s.OnSpeaking(log.record)

	_, _ = s.Schedule(pcmFor(100 * time.Millisecond))
	_, _ = s.Schedule(pcmFor(100 * time.Millisecond))
	assert.Equal(t, []bool{true}, log.get())
	assert.True(t, s.Speaking())

	clock.Set(1)
	s.Pending()
	assert.Equal(t, []bool{true, false}, log.get())

	_, _ = s.Schedule(pcmFor(100 * time.Millisecond))
	s.Interrupt()
	assert.Equal(t, []bool{true, false, true, false}, log.get())

	s.Interrupt()
	assert.Len(t, log.get(), 4, "interrupt while idle does not notify")
}

func TestScheduler_DrainThenScheduleIsContinuous(t *testing.T) {
	clock := &ManualClock{}
	s := NewScheduler(nil, clock)
	log := &speakingLog{}
	s.OnSpeaking(log.record)

	_, _ = s.Schedule(pcmFor(100 * time.Millisecond))
	clock.Set(0.5)
	_, _ = s.Schedule(pcmFor(100 * time.Millisecond))

	assert.Equal(t, []bool{true}, log.get())
}

type failingSink struct{ DiscardSink }

func (f *failingSink) Play(Handle, []byte, float64) error { return errors.New("device lost") }

func TestScheduler_SinkError(t *testing.T) {
	s := NewScheduler(&failingSink{}, &ManualClock{})

	_, err := s.Schedule(pcmFor(100 * time.Millisecond))
	require.Error(t, err)
	assert.Zero(t, s.Pending())
}

func TestScheduler_Close(t *testing.T) {
	sink := &DiscardSink{}
	s := NewScheduler(sink, &ManualClock{})
	_, _ = s.Schedule(pcmFor(100 * time.Millisecond))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, sink.Closed())
	assert.Len(t, sink.Stopped(), 1)

	_, err := s.Schedule(pcmFor(100 * time.Millisecond))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWallClockAdvances(t *testing.T) {
	c := NewWallClock()
	first := c.Now()
	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, c.Now(), first)
}

func TestManualClockAdvance(t *testing.T) {
	c := &ManualClock{}
	c.Advance(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, c.Now(), 1e-9)
}
