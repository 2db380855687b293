// Package logger provides structured logging with automatic secret redaction.
//
// This package wraps Go's standard log/slog with:
//   - Component loggers that carry session fields from a context
//   - Per-module levels resolved from the calling package
//   - Automatic API key redaction in URLs and payloads
//   - Level-based verbosity control
//
// Every ComponentLogger writes through the global logger returned by Default,
// which Configure, SetLevel and SetOutput replace atomically.
package logger

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	current atomic.Pointer[slog.Logger]

	logOutput io.Writer = os.Stderr
	outputMu  sync.Mutex
)

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	initLoggerWithConfig(level, nil, nil, false)
}

// Default returns the global structured logger. It is safe for concurrent use.
func Default() *slog.Logger {
	return current.Load()
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	initLoggerWithConfig(level, nil, nil, false)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
// This is a convenience wrapper around SetLevel for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects log output and rebuilds the logger at the given level.
// Primarily used by tests to capture log lines.
func SetOutput(w io.Writer, level slog.Level) {
	outputMu.Lock()
	logOutput = w
	outputMu.Unlock()
	SetLevel(level)
}

var (
	// apiKeyPatterns contains compiled regular expressions for detecting sensitive data.
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),     // OpenAI API keys
		regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),   // Google API keys
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_-]+`), // Bearer tokens
	}
)

// sensitiveQueryParams are URL query parameters whose values are never logged.
var sensitiveQueryParams = []string{"key", "api_key", "access_token"}

// RedactSensitiveData removes API keys and other sensitive information from strings.
// It replaces matched patterns with a redacted form that preserves the first few characters
// for debugging while hiding the sensitive portion.
//
// This function is safe for concurrent use as it only reads from the compiled patterns.
func RedactSensitiveData(input string) string {
	result := input

	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}

// RedactURL masks credentials carried in URL query parameters, then applies
// RedactSensitiveData to the result. Unparseable input is redacted as plain text.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RedactSensitiveData(rawURL)
	}
	q := u.Query()
	changed := false
	for _, name := range sensitiveQueryParams {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return RedactSensitiveData(u.String())
}
