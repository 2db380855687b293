package playback

import "sync"

// Handle identifies one scheduled chunk.
type Handle uint64

// Sink renders scheduled audio. Play is called in schedule order with
// contiguous start times; Stop must silence a handle whether it is queued
// or already playing.
type Sink interface {
	Play(h Handle, pcm []byte, startAt float64) error
	Stop(h Handle)
	Close() error
}

// DiscardSink drops audio. It records what it was asked to do so headless
// runs and tests can inspect playback.
type DiscardSink struct {
	mu      sync.Mutex
	played  []Handle
	stopped []Handle
	closed  bool
}

// Play implements Sink.
func (s *DiscardSink) Play(h Handle, _ []byte, _ float64) error {
	s.mu.Lock()
	s.played = append(s.played, h)
	s.mu.Unlock()
	return nil
}

// Stop implements Sink.
func (s *DiscardSink) Stop(h Handle) {
	s.mu.Lock()
	s.stopped = append(s.stopped, h)
	s.mu.Unlock()
}

// Close implements Sink.
func (s *DiscardSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Played returns the handles passed to Play, in order.
func (s *DiscardSink) Played() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Handle(nil), s.played...)
}

// Stopped returns the handles passed to Stop, in order.
func (s *DiscardSink) Stopped() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Handle(nil), s.stopped...)
}

// Closed reports whether Close was called.
func (s *DiscardSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
