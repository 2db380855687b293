package gemini

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(events []InboundEvent) []InboundKind {
	out := make([]InboundKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestDecodeServerMessage_SetupComplete(t *testing.T) {
	events, err := DecodeServerMessage([]byte(`{"setupComplete":{}}`))
	require.NoError(t, err)
	assert.Equal(t, []InboundKind{InboundSetupComplete}, kinds(events))
}

func TestDecodeServerMessage_ServerContentOrder(t *testing.T) {
	raw := `{"serverContent":{
		"turnComplete":true,
		"interrupted":true,
		"modelTurn":{"parts":[
			{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAA="}},
			{"text":"Try the linen shirt."}
		]},
		"outputTranscription":{"text":"Try the"},
		"inputTranscription":{"text":"What should"}
	},"usageMetadata":{"totalTokenCount":42}}`

	events, err := DecodeServerMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []InboundKind{
		InboundInputTranscription,
		InboundOutputTranscription,
		InboundModelAudio,
		InboundModelText,
		InboundInterrupted,
		InboundTurnComplete,
		InboundUsage,
	}, kinds(events))

	assert.Equal(t, "What should", events[0].Text)
	assert.Equal(t, "Try the", events[1].Text)
	assert.Equal(t, "audio/pcm;rate=24000", events[2].Media.MimeType)
	assert.Equal(t, "Try the linen shirt.", events[3].Text)
	assert.Equal(t, 42, events[6].Usage.TotalTokenCount)
}

func TestDecodeServerMessage_UnknownFieldsIgnored(t *testing.T) {
	events, err := DecodeServerMessage([]byte(`{"toolCall":{"functionCalls":[]},"somethingNew":1}`))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDecodeServerMessage_GoAway(t *testing.T) {
	events, err := DecodeServerMessage([]byte(`{"goAway":{"timeLeft":"30s"}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, InboundGoAway, events[0].Kind)
	assert.Equal(t, "30s", events[0].TimeLeft)
}

func TestDecodeServerMessage_Malformed(t *testing.T) {
	_, err := DecodeServerMessage([]byte(`{"serverContent":`))
	assert.Error(t, err)
}

func TestDecodeServerMessage_NonAudioInlineDataSkipped(t *testing.T) {
	raw := `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"image/png","data":"AAA="}}]}}}`
	events, err := DecodeServerMessage([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestInboundKindString(t *testing.T) {
	assert.Equal(t, "turn_complete", InboundTurnComplete.String())
	assert.Equal(t, "unknown", InboundKind(99).String())
}

func TestTruncateForLog(t *testing.T) {
	long := strings.Repeat("A", 400)
	out := TruncateForLog([]byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm","data":"` + long + `"}}]}}}`))

	assert.NotContains(t, out, long)
	assert.Contains(t, out, "[400 bytes base64]")
	assert.Equal(t, "not json", TruncateForLog([]byte("not json")))
}

func TestLogPayload(t *testing.T) {
	long := strings.Repeat("B", 300)
	v := LogPayload(`{"data":"` + long + `"}`).LogValue()

	assert.Equal(t, slog.KindString, v.Kind())
	assert.Contains(t, v.String(), "[300 bytes base64]")
}
