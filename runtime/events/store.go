package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// File system constants.
const (
	dirPermissions  = 0750
	filePermissions = 0600
	scannerBufSize  = 1024 * 1024
	streamChanSize  = 100
)

// ErrNoSessionID is returned for events and queries without a session ID.
var ErrNoSessionID = errors.New("session ID required")

// EventStore persists session events for later inspection.
type EventStore interface {
	// Append adds an event to the store.
	Append(ctx context.Context, event *Event) error

	// Query returns events matching the filter.
	Query(ctx context.Context, filter *EventFilter) ([]*StoredEvent, error)

	// Stream returns a channel of a session's events in append order.
	// The channel is closed when all events have been sent or ctx is canceled.
	Stream(ctx context.Context, sessionID string) (<-chan *StoredEvent, error)

	// Close releases any resources held by the store.
	Close() error
}

// EventFilter specifies criteria for querying events.
type EventFilter struct {
	SessionID string
	Types     []EventType
	Since     time.Time
	Until     time.Time
	Limit     int
}

// StoredEvent is one recorded event as written to disk. Data keeps the raw
// JSON payload since concrete payload types are not recovered on read.
type StoredEvent struct {
	Sequence  int64           `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id"`
	DataType  string          `json:"data_type,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func toStored(seq int64, e *Event) (*StoredEvent, error) {
	se := &StoredEvent{
		Sequence:  seq,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		SessionID: e.SessionID,
	}
	if e.Data == nil {
		return se, nil
	}
	se.DataType = fmt.Sprintf("%T", e.Data)
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	se.Data = data
	if err := payloadError(e.Data); err != nil {
		se.Error = err.Error()
	}
	return se, nil
}

// payloadError extracts the error carried by a payload; errors do not
// survive JSON encoding on their own.
func payloadError(data EventData) error {
	switch d := data.(type) {
	case ErrorData:
		return d.Error
	case SessionEndedData:
		return d.Error
	case DecodeErrorData:
		return d.Error
	default:
		return nil
	}
}

// FileEventStore implements EventStore using one JSON Lines file per session.
type FileEventStore struct {
	dir      string
	mu       sync.RWMutex
	files    map[string]*os.File
	sequence atomic.Int64
}

// NewFileEventStore creates a file-based event store rooted at dir.
func NewFileEventStore(dir string) (*FileEventStore, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("create event store directory: %w", err)
	}
	return &FileEventStore{
		dir:   dir,
		files: make(map[string]*os.File),
	}, nil
}

// Append adds an event to its session's file.
func (s *FileEventStore) Append(_ context.Context, event *Event) error {
	if event.SessionID == "" {
		return ErrNoSessionID
	}

	stored, err := toStored(s.sequence.Add(1), event)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.getOrCreateFile(event.SessionID)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Listener returns a bus listener that records every event it receives.
// Write failures are passed to onError when it is non-nil.
func (s *FileEventStore) Listener(onError func(error)) Listener {
	return func(e *Event) {
		if err := s.Append(context.Background(), e); err != nil && onError != nil {
			onError(err)
		}
	}
}

// Query returns the session's events matching the filter.
func (s *FileEventStore) Query(ctx context.Context, filter *EventFilter) ([]*StoredEvent, error) {
	if filter == nil || filter.SessionID == "" {
		return nil, ErrNoSessionID
	}

	f, err := os.Open(s.sessionPath(filter.SessionID)) //nolint:gosec // path is built from a session ID
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	var out []*StoredEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, scannerBufSize), scannerBufSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		var stored StoredEvent
		if err := json.Unmarshal(scanner.Bytes(), &stored); err != nil {
			continue // skip malformed lines
		}
		if filter.matches(&stored) {
			out = append(out, &stored)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
	}
	return out, scanner.Err()
}

// Stream returns a channel of a session's events.
func (s *FileEventStore) Stream(ctx context.Context, sessionID string) (<-chan *StoredEvent, error) {
	f, err := os.Open(s.sessionPath(sessionID)) //nolint:gosec // path is built from a session ID
	if err != nil {
		if os.IsNotExist(err) {
			ch := make(chan *StoredEvent)
			close(ch)
			return ch, nil
		}
		return nil, fmt.Errorf("open session file: %w", err)
	}

	ch := make(chan *StoredEvent, streamChanSize)
	go func() {
		defer close(ch)
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, scannerBufSize), scannerBufSize)
		for scanner.Scan() {
			var stored StoredEvent
			if err := json.Unmarshal(scanner.Bytes(), &stored); err != nil {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case ch <- &stored:
			}
		}
	}()
	return ch, nil
}

// Sync flushes all pending writes to disk.
func (s *FileEventStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, f := range s.files {
		errs = append(errs, f.Sync())
	}
	return errors.Join(errs...)
}

// Close syncs and closes every open session file.
func (s *FileEventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, f := range s.files {
		errs = append(errs, f.Sync(), f.Close())
	}
	s.files = make(map[string]*os.File)
	return errors.Join(errs...)
}

func (s *FileEventStore) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".jsonl")
}

// getOrCreateFile returns the file for a session, creating it if needed.
// Caller must hold s.mu.
func (s *FileEventStore) getOrCreateFile(sessionID string) (*os.File, error) {
	if f, ok := s.files[sessionID]; ok {
		return f, nil
	}
	//nolint:gosec // path is built from a session ID
	f, err := os.OpenFile(s.sessionPath(sessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("create session file: %w", err)
	}
	s.files[sessionID] = f
	return f, nil
}

func (f *EventFilter) matches(e *StoredEvent) bool {
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}

var _ EventStore = (*FileEventStore)(nil)
