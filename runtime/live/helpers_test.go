package live

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/playback"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/providers/gemini"
)

// fakeTransport records sends in order. When gate is set, each Send waits
// for a value on it.
type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  int
	sendErr error
	gate    chan struct{}
}

func (f *fakeTransport) Send(data []byte) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Close(int, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) kinds(t *testing.T) []gemini.EnvelopeKind {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gemini.EnvelopeKind, 0, len(f.sent))
	for _, raw := range f.sent {
		out = append(out, envelopeKind(t, raw))
	}
	return out
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func envelopeKind(t *testing.T, raw []byte) gemini.EnvelopeKind {
	t.Helper()
	var env gemini.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env.Kind()
}

type transcriptEntry struct {
	Speaker Speaker
	Text    string
	Final   bool
}

type transcriptLog struct {
	mu      sync.Mutex
	entries []transcriptEntry
}

func (l *transcriptLog) record(sp Speaker, text string, final bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, transcriptEntry{Speaker: sp, Text: text, Final: final})
}

func (l *transcriptLog) get() []transcriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]transcriptEntry(nil), l.entries...)
}

// pcmSeconds returns silent 24kHz PCM of the given duration.
func pcmSeconds(d time.Duration) []byte {
	return make([]byte, int(d.Seconds()*playback.SampleRate)*2)
}

func audioMessage(pcm []byte) []byte {
	return []byte(fmt.Sprintf(
		`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":%q}}]}}}`,
		base64.StdEncoding.EncodeToString(pcm)))
}

const (
	msgSetupComplete = `{"setupComplete":{}}`
	msgInterrupted   = `{"serverContent":{"interrupted":true}}`
	msgTurnComplete  = `{"serverContent":{"turnComplete":true}}`
)

func inputTranscript(text string) []byte {
	return []byte(fmt.Sprintf(`{"serverContent":{"inputTranscription":{"text":%q}}}`, text))
}

func outputTranscript(text string) []byte {
	return []byte(fmt.Sprintf(`{"serverContent":{"outputTranscription":{"text":%q}}}`, text))
}

var errBoom = errors.New("boom")
