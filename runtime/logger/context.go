package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
// Values stored under these keys are added to every log entry by ContextHandler.
const (
	// ContextKeySessionID identifies the live session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyModel identifies the model the session is bound to.
	ContextKeyModel contextKey = "model"

	// ContextKeyVoice identifies the prebuilt output voice.
	ContextKeyVoice contextKey = "voice"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyModel,
	ContextKeyVoice,
}

// LoggingFields holds the standard logging context fields.
type LoggingFields struct {
	SessionID string
	Model     string
	Voice     string
}

// WithLoggingContext returns a new context with every non-empty field set.
// Fields already on ctx are kept unless overridden.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.SessionID != "" {
		ctx = context.WithValue(ctx, ContextKeySessionID, fields.SessionID)
	}
	if fields.Model != "" {
		ctx = context.WithValue(ctx, ContextKeyModel, fields.Model)
	}
	if fields.Voice != "" {
		ctx = context.WithValue(ctx, ContextKeyVoice, fields.Voice)
	}
	return ctx
}
