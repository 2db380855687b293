package gemini

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstChunk(t *testing.T, env Envelope) MediaChunk {
	t.Helper()
	require.NotNil(t, env.RealtimeInput)
	require.NotEmpty(t, env.RealtimeInput.MediaChunks)
	return env.RealtimeInput.MediaChunks[0]
}

func TestEncodeDecodeAudio_RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x01, 0x02},
		GenerateSineWave(InputSampleRate, 440, 0, DefaultChunkDuration, 0.5),
		GenerateSineWave(OutputSampleRate, 220, 90, 37*time.Millisecond, 1.5),
	}
	for _, rate := range []int{InputSampleRate, OutputSampleRate} {
		for _, pcm := range inputs {
			env := EncodeAudio(pcm, rate)
			got, err := DecodeAudio(firstChunk(t, env))
			require.NoError(t, err)
			assert.Equal(t, len(pcm), len(got))
			if len(pcm) > 0 {
				assert.Equal(t, pcm, got)
			}
		}
	}
}

func TestEncodeAudio_MimeType(t *testing.T) {
	env := EncodeAudio(make([]byte, DefaultChunkSize), InputSampleRate)

	chunk := firstChunk(t, env)
	assert.Equal(t, "audio/pcm;rate=16000", chunk.MimeType)
	assert.Equal(t, KindAudioChunk, env.Kind())
}

func TestEncodeAudio_OddLengthPanics(t *testing.T) {
	assert.Panics(t, func() {
		EncodeAudio([]byte{0x01, 0x02, 0x03}, InputSampleRate)
	})
}

func TestEncodeFrame(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	env := EncodeFrame(jpeg)

	chunk := firstChunk(t, env)
	assert.Equal(t, MimeTypeJPEG, chunk.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(jpeg), chunk.Data)
	assert.Equal(t, KindVideoFrame, env.Kind())
}

func TestDecodeAudio_Errors(t *testing.T) {
	tests := []struct {
		name  string
		chunk MediaChunk
		want  error
	}{
		{"non pcm mime", MediaChunk{MimeType: "audio/mp3", Data: "AAAA"}, ErrUnsupportedMimeType},
		{"image mime", MediaChunk{MimeType: MimeTypeJPEG, Data: "AAAA"}, ErrUnsupportedMimeType},
		{"bad rate", MediaChunk{MimeType: "audio/pcm;rate=12345", Data: "AAAA"}, ErrInvalidSampleRate},
		{"garbage rate", MediaChunk{MimeType: "audio/pcm;rate=abc", Data: "AAAA"}, ErrInvalidSampleRate},
		{"bad base64", MediaChunk{MimeType: "audio/pcm;rate=24000", Data: "!!!"}, ErrInvalidBase64},
		{"odd length", MediaChunk{MimeType: "audio/pcm;rate=24000", Data: base64.StdEncoding.EncodeToString([]byte{1, 2, 3})}, ErrInvalidChunkSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAudio(tt.chunk)
			require.Error(t, err)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.chunk.MimeType, decErr.MimeType)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestParsePCMRate(t *testing.T) {
	rate, err := ParsePCMRate("audio/pcm;rate=16000")
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)

	rate, err = ParsePCMRate("audio/pcm")
	require.NoError(t, err)
	assert.Equal(t, OutputSampleRate, rate)

	rate, err = ParsePCMRate("audio/PCM; rate=24000")
	require.NoError(t, err)
	assert.Equal(t, 24000, rate)
}

func TestPCMDurationAndChunkSize(t *testing.T) {
	assert.Equal(t, 3200, ChunkSize(100*time.Millisecond, InputSampleRate))
	assert.Equal(t, DefaultChunkSize, ChunkSize(DefaultChunkDuration, InputSampleRate))
	assert.Equal(t, 100*time.Millisecond, PCMDuration(3200, InputSampleRate))
	assert.Equal(t, time.Second, PCMDuration(48000, OutputSampleRate))
}

func TestGenerateSineWave(t *testing.T) {
	whole := GenerateSineWave(InputSampleRate, 440, 0, 40*time.Millisecond, 0.5)
	first := GenerateSineWave(InputSampleRate, 440, 0, 20*time.Millisecond, 0.5)
	second := GenerateSineWave(InputSampleRate, 440, 320, 20*time.Millisecond, 0.5)

	assert.Len(t, whole, 1280)
	assert.Equal(t, whole, append(first, second...), "offsets continue the wave")

	loud := GenerateSineWave(InputSampleRate, 440, 0, 10*time.Millisecond, 3)
	full := GenerateSineWave(InputSampleRate, 440, 0, 10*time.Millisecond, 1)
	assert.Equal(t, full, loud, "amplitude is clamped")
}
