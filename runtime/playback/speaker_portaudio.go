//go:build portaudio

package playback

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// speakerFramesPerBuffer is 40ms of audio at 24kHz.
const speakerFramesPerBuffer = 960

// speakerQueueSize bounds the chunks waiting for the device.
const speakerQueueSize = 500

type speakerItem struct {
	handle Handle
	pcm    []byte
}

// SpeakerSink plays audio on the default output device through PortAudio.
// Chunks are written in Play order; the device clock provides the gapless
// timeline, so startAt is advisory.
type SpeakerSink struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	out      []int16
	queue    chan speakerItem
	canceled map[Handle]bool
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewSpeakerSink opens the default output device at 24kHz mono.
func NewSpeakerSink() (*SpeakerSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	out := make([]int16, speakerFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(SampleRate), speakerFramesPerBuffer, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	s := &SpeakerSink{
		stream:   stream,
		out:      out,
		queue:    make(chan speakerItem, speakerQueueSize),
		canceled: make(map[Handle]bool),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Play implements Sink.
func (s *SpeakerSink) Play(h Handle, pcm []byte, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.queue <- speakerItem{handle: h, pcm: pcm}:
		return nil
	default:
		return fmt.Errorf("playback buffer full")
	}
}

// Stop implements Sink.
func (s *SpeakerSink) Stop(h Handle) {
	s.mu.Lock()
	s.canceled[h] = true
	s.mu.Unlock()
}

func (s *SpeakerSink) isCanceled(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled[h]
}

func (s *SpeakerSink) forget(h Handle) {
	s.mu.Lock()
	delete(s.canceled, h)
	s.mu.Unlock()
}

func (s *SpeakerSink) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case item := <-s.queue:
			s.write(item)
			s.forget(item.handle)
		}
	}
}

// write plays one chunk a device buffer at a time, checking for
// cancellation between buffers.
func (s *SpeakerSink) write(item speakerItem) {
	blockBytes := len(s.out) * 2
	for off := 0; off < len(item.pcm); off += blockBytes {
		if s.isCanceled(item.handle) {
			return
		}
		select {
		case <-s.done:
			return
		default:
		}
		block := item.pcm[off:min(off+blockBytes, len(item.pcm))]
		for i := range s.out {
			if i*2+1 < len(block) {
				s.out[i] = int16(binary.LittleEndian.Uint16(block[i*2:]))
			} else {
				s.out[i] = 0
			}
		}
		if err := s.stream.Write(); err != nil {
			return
		}
	}
}

// Close implements Sink.
func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	_ = s.stream.Stop()
	err := s.stream.Close()
	_ = portaudio.Terminate()
	return err
}

// NewDeviceSink opens the default speaker.
func NewDeviceSink() (Sink, error) {
	return NewSpeakerSink()
}
