// Package statestore persists the turn history of live sessions.
package statestore

import (
	"context"
	"errors"
)

// TranscriptStore stores finalized turns per session, in completion order.
type TranscriptStore interface {
	// Append adds a turn to its session's history.
	Append(ctx context.Context, record TurnRecord) error

	// Load returns a session's turns in the order they were appended.
	// Returns ErrNotFound if the session has no history.
	Load(ctx context.Context, sessionID string) ([]TurnRecord, error)

	// Delete removes a session's history.
	Delete(ctx context.Context, sessionID string) error

	// Sessions lists the IDs of sessions with stored history, sorted.
	Sessions(ctx context.Context) ([]string, error)
}

// ErrNotFound is returned when a session has no stored history.
var ErrNotFound = errors.New("session history not found")

// ErrInvalidID is returned when a session ID is empty.
var ErrInvalidID = errors.New("invalid session ID")
