package logger

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// ComponentLogger tags every entry with a component name and the logging
// fields carried by its context. It satisfies the small Debug/Info/Warn/Error
// logger interfaces used by the transport, capture and live packages.
//
// Records carry the program counter of the ComponentLogger's caller, so
// per-module levels apply to the package that logged.
type ComponentLogger struct {
	name string
	ctx  context.Context
}

// Component returns a logger that adds "component", name to every entry.
func Component(name string) *ComponentLogger {
	return &ComponentLogger{name: name, ctx: context.Background()}
}

// WithContext returns a copy whose entries carry the logging fields of ctx.
func (c *ComponentLogger) WithContext(ctx context.Context) *ComponentLogger {
	return &ComponentLogger{name: c.name, ctx: ctx}
}

// Context returns the context whose logging fields are attached to entries.
func (c *ComponentLogger) Context() context.Context {
	return c.ctx
}

// Debug logs at debug level.
func (c *ComponentLogger) Debug(msg string, keysAndValues ...any) {
	c.log(slog.LevelDebug, msg, keysAndValues)
}

// Info logs at info level.
func (c *ComponentLogger) Info(msg string, keysAndValues ...any) {
	c.log(slog.LevelInfo, msg, keysAndValues)
}

// Warn logs at warn level.
func (c *ComponentLogger) Warn(msg string, keysAndValues ...any) {
	c.log(slog.LevelWarn, msg, keysAndValues)
}

// Error logs at error level.
func (c *ComponentLogger) Error(msg string, keysAndValues ...any) {
	c.log(slog.LevelError, msg, keysAndValues)
}

func (c *ComponentLogger) log(level slog.Level, msg string, keysAndValues []any) {
	l := Default()
	if !l.Enabled(c.ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip Callers, log and the level method
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add("component", c.name)
	r.Add(keysAndValues...)
	_ = l.Handler().Handle(c.ctx, r)
}
