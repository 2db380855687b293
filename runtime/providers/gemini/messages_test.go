package gemini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSetup_WireShape(t *testing.T) {
	env, err := BuildSetup(SetupConfig{
		Model:               "gemini-2.0-flash-live-001",
		Voice:               "Aoede",
		SystemInstruction:   "You are a friendly stylist.",
		InputTranscription:  true,
		OutputTranscription: true,
	})
	require.NoError(t, err)
	assert.Equal(t, KindSetup, env.Kind())

	data, err := Marshal(env)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	setup := got["setup"].(map[string]any)
	assert.Equal(t, "models/gemini-2.0-flash-live-001", setup["model"])

	gen := setup["generationConfig"].(map[string]any)
	assert.Equal(t, []any{"AUDIO"}, gen["responseModalities"])
	voice := gen["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
	assert.Equal(t, "Aoede", voice["voiceName"])

	sys := setup["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "You are a friendly stylist.", sys["text"])

	assert.Equal(t, map[string]any{}, setup["inputAudioTranscription"])
	assert.Equal(t, map[string]any{}, setup["outputAudioTranscription"])
}

func TestBuildSetup_TextModalityOmitsSpeech(t *testing.T) {
	env, err := BuildSetup(SetupConfig{Model: "models/m", ResponseModalities: []string{"text"}})
	require.NoError(t, err)

	assert.Equal(t, []string{ModalityText}, env.Setup.GenerationConfig.ResponseModalities)
	assert.Nil(t, env.Setup.GenerationConfig.SpeechConfig)
	assert.Nil(t, env.Setup.SystemInstruction)
	assert.Nil(t, env.Setup.InputAudioTranscription)
}

func TestBuildSetup_DefaultVoice(t *testing.T) {
	env, err := BuildSetup(SetupConfig{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, DefaultVoice, env.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
}

func TestBuildSetup_Errors(t *testing.T) {
	_, err := BuildSetup(SetupConfig{})
	assert.ErrorIs(t, err, ErrMissingModel)

	_, err = BuildSetup(SetupConfig{Model: "m", ResponseModalities: []string{"TEXT", "AUDIO"}})
	assert.ErrorIs(t, err, ErrInvalidModalities)

	_, err = BuildSetup(SetupConfig{Model: "m", ResponseModalities: []string{"VIDEO"}})
	assert.ErrorIs(t, err, ErrInvalidModalities)
}

func TestNormalizeModel(t *testing.T) {
	assert.Equal(t, "models/x", NormalizeModel("x"))
	assert.Equal(t, "models/x", NormalizeModel("models/x"))
	assert.Equal(t, "", NormalizeModel(""))
}

func TestBuildText(t *testing.T) {
	env := BuildText("what goes with navy chinos?", true)
	assert.Equal(t, KindClientText, env.Kind())

	data, err := Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"clientContent":{"turns":[{"role":"user","parts":[{"text":"what goes with navy chinos?"}]}],"turnComplete":true}}`,
		string(data))
}

func TestBuildAudioStreamEnd(t *testing.T) {
	env := BuildAudioStreamEnd()
	assert.Equal(t, KindAudioStreamEnd, env.Kind())

	data, err := Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"realtimeInput":{"audioStreamEnd":true}}`, string(data))
}

func TestRealtimeAudioWireShape(t *testing.T) {
	data, err := Marshal(EncodeAudio([]byte{0, 0}, InputSampleRate))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"realtimeInput":{"mediaChunks":[{"mimeType":"audio/pcm;rate=16000","data":"AAA="}]}}`,
		string(data))
}

func TestEnvelopeKind_Unknown(t *testing.T) {
	assert.Equal(t, KindUnknown, Envelope{}.Kind())
	assert.Equal(t, KindUnknown, Envelope{RealtimeInput: &RealtimeInput{}}.Kind())
}
