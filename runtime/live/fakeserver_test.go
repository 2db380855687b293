package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/providers/gemini"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// fakeLive is a minimal Live API server. It acknowledges setup unless
// ackDelay is negative and lets tests push server messages.
type fakeLive struct {
	t        *testing.T
	srv      *httptest.Server
	ackDelay time.Duration

	mu          sync.Mutex
	connections int
	apiKeys     []string
	received    [][]byte
	ackedAt     int // len(received) when setupComplete was written, -1 before
	conn        *websocket.Conn
	writeMu     sync.Mutex
	closed      chan struct{}
}

func newFakeLive(t *testing.T) *fakeLive {
	t.Helper()
	f := &fakeLive{t: t, ackedAt: -1, closed: make(chan struct{})}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLive) endpoint() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeLive) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	f.mu.Lock()
	f.connections++
	f.apiKeys = append(f.apiKeys, r.URL.Query().Get("key"))
	f.conn = conn
	f.mu.Unlock()
	defer func() {
		select {
		case <-f.closed:
		default:
			close(f.closed)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.received = append(f.received, data)
		first := len(f.received) == 1
		f.mu.Unlock()

		if first && strings.Contains(string(data), `"setup"`) && f.ackDelay >= 0 {
			go func() {
				time.Sleep(f.ackDelay)
				f.mu.Lock()
				f.ackedAt = len(f.received)
				f.mu.Unlock()
				f.push(msgSetupComplete)
			}()
		}
	}
}

// push writes one server message to the current connection.
func (f *fakeLive) push(msg string) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	require.NotNil(f.t, conn, "no client connected")

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// drop closes the connection with the given close code.
func (f *fakeLive) drop(code int, reason string) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	_ = conn.Close()
}

func (f *fakeLive) connectionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connections
}

func (f *fakeLive) kinds() []gemini.EnvelopeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gemini.EnvelopeKind, 0, len(f.received))
	for _, raw := range f.received {
		out = append(out, envelopeKind(f.t, raw))
	}
	return out
}

func (f *fakeLive) hasKind(kind gemini.EnvelopeKind) bool {
	for _, k := range f.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// receivedBeforeAck returns the envelope kinds the server saw before it
// acknowledged setup.
func (f *fakeLive) receivedBeforeAck() []gemini.EnvelopeKind {
	kinds := f.kinds()
	f.mu.Lock()
	acked := f.ackedAt
	f.mu.Unlock()
	if acked < 0 || acked > len(kinds) {
		return kinds
	}
	return kinds[:acked]
}
