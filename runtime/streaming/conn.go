// Package streaming provides the WebSocket transport used by live sessions.
//
// Conn owns exactly one connection. It separates transport concerns (dial,
// ordered writes, the read loop, heartbeat, graceful close) from the
// protocol: payloads are opaque bytes and are never parsed here.
package streaming

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Default connection constants.
const (
	DefaultDialTimeout      = 10 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultMaxMessageSize   = 16 * 1024 * 1024 // 16MB
	DefaultMaxRetries       = 1
	DefaultRetryBackoffBase = 1 * time.Second
	DefaultRetryBackoffMax  = 30 * time.Second
	DefaultCloseGracePeriod = 5 * time.Second
)

// jitterFactor is the +-25% jitter applied to backoff delays.
const jitterFactor = 0.25

// jitterPrecision is the granularity for crypto/rand jitter generation.
const jitterPrecision = 1000

// jitterHalfPrecision normalizes jitter output to the range [-1, 1].
const jitterHalfPrecision = jitterPrecision / 2

// Transport errors.
var (
	// ErrNotOpen is returned by Send when the connection is not open.
	ErrNotOpen = errors.New("websocket is not open")

	// ErrClosed is returned by Open after Close has been called.
	ErrClosed = errors.New("connection is closed")

	// ErrAlreadyOpen is returned by a second Open call.
	ErrAlreadyOpen = errors.New("connection already open")
)

// ConnConfig configures the WebSocket connection behavior.
type ConnConfig struct {
	// URL is the WebSocket endpoint URL. It may carry credentials and is
	// only logged through RedactURL.
	URL string

	// Headers are sent during the WebSocket handshake.
	Headers http.Header

	// DialTimeout is the handshake timeout. Defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// WriteWait is the write deadline for each message. Defaults to DefaultWriteWait.
	WriteWait time.Duration

	// MaxMessageSize is the read limit. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64

	// MaxRetries is the number of dial attempts made by Open.
	// Defaults to DefaultMaxRetries (a single attempt).
	MaxRetries int

	// RetryBackoffBase is the initial backoff delay. Defaults to DefaultRetryBackoffBase.
	RetryBackoffBase time.Duration

	// RetryBackoffMax caps the backoff delay. Defaults to DefaultRetryBackoffMax.
	RetryBackoffMax time.Duration

	// CloseGracePeriod is the deadline for writing the close frame.
	// Defaults to DefaultCloseGracePeriod.
	CloseGracePeriod time.Duration

	// RedactURL renders URL for logs. Defaults to hiding the whole URL.
	RedactURL func(string) string

	// Logger receives debug/warn/error log messages. Optional.
	Logger Logger
}

// Logger is an optional interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(_ string, _ ...any) {}
func (noopLogger) Info(_ string, _ ...any)  {}
func (noopLogger) Warn(_ string, _ ...any)  {}
func (noopLogger) Error(_ string, _ ...any) {}

func (c *ConnConfig) defaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoffBase == 0 {
		c.RetryBackoffBase = DefaultRetryBackoffBase
	}
	if c.RetryBackoffMax == 0 {
		c.RetryBackoffMax = DefaultRetryBackoffMax
	}
	if c.CloseGracePeriod == 0 {
		c.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if c.RedactURL == nil {
		c.RedactURL = func(string) string { return "[REDACTED]" }
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// Handlers receives transport events. All handlers run on the read
// goroutine, one at a time, in arrival order. Exactly one of OnClose or
// OnError is called when the read loop ends.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

func (h *Handlers) defaults() {
	if h.OnOpen == nil {
		h.OnOpen = func() {}
	}
	if h.OnMessage == nil {
		h.OnMessage = func([]byte) {}
	}
	if h.OnClose == nil {
		h.OnClose = func(int, string) {}
	}
	if h.OnError == nil {
		h.OnError = func(error) {}
	}
}

// Conn manages one WebSocket connection.
type Conn struct {
	cfg      ConnConfig
	handlers Handlers

	conn    *websocket.Conn
	mu      sync.Mutex
	writeMu sync.Mutex // serializes writes (gorilla/websocket requirement)
	opened  bool
	closed  bool
	closeCh chan struct{}
	doneCh  chan struct{}
}

// NewConn creates a new Conn. Call Open to establish the connection.
func NewConn(cfg *ConnConfig, handlers Handlers) *Conn {
	cfg.defaults()
	handlers.defaults()
	return &Conn{
		cfg:      *cfg,
		handlers: handlers,
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Open dials the endpoint, retrying with jittered backoff up to MaxRetries
// attempts, then fires OnOpen and starts the read loop.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.opened:
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.opened = true
	c.mu.Unlock()

	conn, err := c.dialWithRetry(ctx)
	if err != nil {
		close(c.doneCh)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		close(c.doneCh)
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.cfg.Logger.Info("WebSocket connected", "url", c.cfg.RedactURL(c.cfg.URL))
	c.handlers.OnOpen()
	go c.readLoop(conn)
	return nil
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}

	c.cfg.Logger.Debug("connecting to WebSocket", "url", c.cfg.RedactURL(c.cfg.URL))

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			c.cfg.Logger.Error("WebSocket dial failed", "error", err, "status", resp.StatusCode)
			return nil, &DialError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, &DialError{Err: err}
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	return conn, nil
}

func (c *Conn) dialWithRetry(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	backoff := c.cfg.RetryBackoffBase

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		c.cfg.Logger.Warn("connection attempt failed",
			"attempt", attempt, "maxAttempts", c.cfg.MaxRetries, "error", lastErr)

		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(backoff, c.cfg.RetryBackoffMax)):
			}
			backoff = min(backoff*2, c.cfg.RetryBackoffMax)
		}
	}

	if c.cfg.MaxRetries == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// DialError reports a failed handshake. StatusCode is set when the server
// answered with an HTTP response.
type DialError struct {
	StatusCode int
	Err        error
}

func (e *DialError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to connect (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to connect: %v", e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }

func (c *Conn) readLoop(conn *websocket.Conn) {
	defer close(c.doneCh)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		c.handlers.OnMessage(data)
	}
}

// finish classifies the error that ended the read loop. A dropped socket
// surfaces from gorilla as close code 1006 and is reported as an error.
func (c *Conn) finish(err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
		c.cfg.Logger.Info("WebSocket closed by peer", "code", closeErr.Code, "reason", closeErr.Text)
		c.handlers.OnClose(closeErr.Code, closeErr.Text)
		return
	}
	if c.IsClosed() {
		c.handlers.OnClose(websocket.CloseNormalClosure, "closed by client")
		return
	}
	c.cfg.Logger.Error("WebSocket read failed", "error", err)
	c.handlers.OnError(err)
}

// Send writes one text frame. It never panics; when the connection is not
// open the payload is dropped and ErrNotOpen returned.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		c.cfg.Logger.Warn("dropping send on closed websocket", "bytes", len(data))
		return ErrNotOpen
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// StartHeartbeat starts a goroutine that sends WebSocket ping frames at the given interval.
func (c *Conn) StartHeartbeat(ctx context.Context, interval time.Duration) {
	go c.heartbeatLoop(ctx, interval)
}

func (c *Conn) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Conn) sendPing() bool {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return false
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.cfg.Logger.Warn("failed to set write deadline for ping", "error", err)
		return true // non-fatal
	}
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.cfg.Logger.Warn("ping failed", "error", err)
		return false
	}
	return true
}

// Close writes a close frame with the given code and reason, then closes the
// socket. It is idempotent. The read loop then ends with OnClose.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	conn := c.conn
	if !c.opened {
		close(c.doneCh)
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(code, reason)
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.CloseGracePeriod))
	_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
	c.writeMu.Unlock()

	return conn.Close()
}

// Done is closed once the read loop has exited and its final handler has
// returned, or once Open has failed.
func (c *Conn) Done() <-chan struct{} {
	return c.doneCh
}

// IsClosed returns whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsConnected returns true if the connection has been established and has not been closed.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

// calculateBackoff computes a backoff duration with +-25% jitter, capped at maxDelay.
func calculateBackoff(base, maxDelay time.Duration) time.Duration {
	delay := float64(base)
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(jitterPrecision))
	jitter := delay * jitterFactor * (float64(n.Int64())/jitterHalfPrecision - 1)
	result := delay + jitter
	if result < 0 {
		result = float64(base)
	}
	if result > float64(maxDelay) {
		result = float64(maxDelay)
	}
	return time.Duration(math.Max(result, 0))
}
