package playback

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// SampleRate is the output sample rate in Hz.
	SampleRate = 24000
	// bytesPerSample is 16-bit mono.
	bytesPerSample = 2
)

var (
	// ErrClosed is returned by Schedule after Close.
	ErrClosed = errors.New("playback scheduler closed")
	// ErrInvalidPCM indicates empty or odd-length PCM.
	ErrInvalidPCM = errors.New("pcm must be a non-empty multiple of 2 bytes")
)

// Scheduled describes one accepted chunk.
type Scheduled struct {
	Handle   Handle
	Start    float64
	Duration float64
}

// End returns the chunk's end time.
func (s Scheduled) End() float64 { return s.Start + s.Duration }

// Scheduler owns the playback cursor and the set of in-flight handles.
type Scheduler struct {
	mu         sync.Mutex
	clock      Clock
	sink       Sink
	nextStart  float64
	nextHandle Handle
	inflight   map[Handle]float64 // handle -> end time
	speaking   bool
	onSpeaking func(bool)
	closed     bool
}

// NewScheduler returns a scheduler rendering into sink on clock's timeline.
// A nil clock means a WallClock, a nil sink a DiscardSink.
func NewScheduler(sink Sink, clock Clock) *Scheduler {
	if sink == nil {
		sink = &DiscardSink{}
	}
	if clock == nil {
		clock = NewWallClock()
	}
	return &Scheduler{
		clock:    clock,
		sink:     sink,
		inflight: make(map[Handle]float64),
	}
}

// OnSpeaking registers a callback fired when playback starts from idle and
// when it stops by interrupt or drain. The last registration wins.
func (s *Scheduler) OnSpeaking(fn func(bool)) {
	s.mu.Lock()
	s.onSpeaking = fn
	s.mu.Unlock()
}

// Schedule queues pcm for gapless playback.
func (s *Scheduler) Schedule(pcm []byte) (Scheduled, error) {
	if len(pcm) == 0 || len(pcm)%bytesPerSample != 0 {
		return Scheduled{}, fmt.Errorf("%w: got %d bytes", ErrInvalidPCM, len(pcm))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Scheduled{}, ErrClosed
	}

	now := s.clock.Now()
	drained := s.pruneLocked(now) != nil

	duration := float64(len(pcm)/bytesPerSample) / SampleRate
	start := max(s.nextStart, now)
	s.nextStart = start + duration
	s.nextHandle++
	sc := Scheduled{Handle: s.nextHandle, Start: start, Duration: duration}
	s.inflight[sc.Handle] = sc.End()

	// A drain observed just now followed by this chunk is not a transition.
	var notify func()
	if !s.speaking {
		s.speaking = true
		if !drained {
			notify = s.speakingCallback(true)
		}
	}

	// Sink calls stay under the lock so Play order matches cursor order.
	err := s.sink.Play(sc.Handle, pcm, start)
	if err != nil {
		delete(s.inflight, sc.Handle)
		if len(s.inflight) == 0 {
			s.speaking = false
			notify = nil
		}
	}
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	if err != nil {
		return Scheduled{}, fmt.Errorf("sink play: %w", err)
	}
	return sc, nil
}

// Interrupt stops every in-flight handle, clears the set and resets the
// cursor to the clock's current time.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	stopped := len(s.inflight)
	for h := range s.inflight {
		s.sink.Stop(h)
	}
	clear(s.inflight)
	s.nextStart = s.clock.Now()

	var notify func()
	if s.speaking {
		s.speaking = false
		notify = s.speakingCallback(false)
	}
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	return stopped
}

// NextStartTime returns the cursor.
func (s *Scheduler) NextStartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// Pending returns the number of handles that have not finished playing. It
// also detects drain and fires OnSpeaking(false).
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	notify := s.pruneLocked(s.clock.Now())
	n := len(s.inflight)
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	return n
}

// Speaking reports whether audio is playing or queued.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Close interrupts playback and releases the sink. It is idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Interrupt()
	return s.sink.Close()
}

// pruneLocked drops finished handles and returns a drain notification, if any.
func (s *Scheduler) pruneLocked(now float64) func() {
	for h, end := range s.inflight {
		if end <= now {
			delete(s.inflight, h)
		}
	}
	if s.speaking && len(s.inflight) == 0 {
		s.speaking = false
		return s.speakingCallback(false)
	}
	return nil
}

func (s *Scheduler) speakingCallback(v bool) func() {
	fn := s.onSpeaking
	if fn == nil {
		return nil
	}
	return func() { fn(v) }
}
