package gemini

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// InputSampleRate is the rate of microphone audio sent to the service.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of model audio received from the service.
	OutputSampleRate = 24000
	// BytesPerSample is the size of one 16-bit mono PCM sample.
	BytesPerSample = 2

	// DefaultChunkDuration is 100ms of audio
	DefaultChunkDuration = 100 * time.Millisecond
	// DefaultChunkSize is the number of bytes for 100ms at 16kHz 16-bit mono
	// 16000 Hz * 0.1 sec * 2 bytes/sample = 3200 bytes
	DefaultChunkSize = InputSampleRate / 10 * BytesPerSample

	// MimeTypeJPEG is the MIME type of video frames.
	MimeTypeJPEG = "image/jpeg"

	mimeTypePCM    = "audio/pcm"
	rateParamLabel = "rate="
)

// supportedRates lists the PCM sample rates the codec accepts.
var supportedRates = map[int]bool{
	8000:  true,
	16000: true,
	22050: true,
	24000: true,
	32000: true,
	44100: true,
	48000: true,
}

// PCMMimeType returns the MIME type for 16-bit PCM at the given rate.
func PCMMimeType(sampleRateHz int) string {
	return fmt.Sprintf("%s;%s%d", mimeTypePCM, rateParamLabel, sampleRateHz)
}

// ParsePCMRate extracts the sample rate from a PCM MIME type. A bare
// "audio/pcm" means the service's output rate.
func ParsePCMRate(mime string) (int, error) {
	parts := strings.Split(mime, ";")
	if !strings.EqualFold(strings.TrimSpace(parts[0]), mimeTypePCM) {
		return 0, ErrUnsupportedMimeType
	}
	rate := OutputSampleRate
	for _, param := range parts[1:] {
		param = strings.TrimSpace(param)
		if !strings.HasPrefix(strings.ToLower(param), rateParamLabel) {
			continue
		}
		n, err := strconv.Atoi(param[len(rateParamLabel):])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSampleRate, param)
		}
		rate = n
	}
	if !supportedRates[rate] {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSampleRate, rate)
	}
	return rate, nil
}

// EncodeAudio wraps little-endian 16-bit mono PCM into a realtime audio
// envelope. Odd-length input is a caller bug and panics.
func EncodeAudio(pcm16 []byte, sampleRateHz int) Envelope {
	if len(pcm16)%BytesPerSample != 0 {
		panic(fmt.Sprintf("gemini: EncodeAudio called with odd PCM length %d", len(pcm16)))
	}
	return Envelope{RealtimeInput: &RealtimeInput{
		MediaChunks: []MediaChunk{{
			MimeType: PCMMimeType(sampleRateHz),
			Data:     base64.StdEncoding.EncodeToString(pcm16),
		}},
	}}
}

// EncodeFrame wraps one JPEG image into a realtime video envelope.
func EncodeFrame(jpeg []byte) Envelope {
	return Envelope{RealtimeInput: &RealtimeInput{
		MediaChunks: []MediaChunk{{
			MimeType: MimeTypeJPEG,
			Data:     base64.StdEncoding.EncodeToString(jpeg),
		}},
	}}
}

// DecodeAudio returns the raw PCM carried by an inbound audio chunk.
func DecodeAudio(chunk MediaChunk) ([]byte, error) {
	if _, err := ParsePCMRate(chunk.MimeType); err != nil {
		return nil, &DecodeError{MimeType: chunk.MimeType, Err: err}
	}
	pcm, err := base64.StdEncoding.DecodeString(chunk.Data)
	if err != nil {
		return nil, &DecodeError{MimeType: chunk.MimeType, Err: fmt.Errorf("%w: %v", ErrInvalidBase64, err)}
	}
	if len(pcm)%BytesPerSample != 0 {
		return nil, &DecodeError{MimeType: chunk.MimeType, Err: ErrInvalidChunkSize}
	}
	return pcm, nil
}

// PCMDuration returns the playback duration of 16-bit mono PCM at the given rate.
func PCMDuration(byteLen, sampleRateHz int) time.Duration {
	samples := byteLen / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRateHz)
}

// ChunkSize returns the byte size of d worth of 16-bit mono PCM at the given rate.
func ChunkSize(d time.Duration, sampleRateHz int) int {
	samples := int(int64(sampleRateHz) * int64(d) / int64(time.Second))
	return samples * BytesPerSample
}

// ConvertInt16ToPCM converts []int16 samples to PCM bytes (little-endian)
func ConvertInt16ToPCM(samples []int16) []byte {
	pcmData := make([]byte, len(samples)*BytesPerSample)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcmData[i*BytesPerSample:], uint16(sample))
	}
	return pcmData
}

// GenerateSineWave returns d worth of sine PCM at the given rate. The wave
// starts at sample offset startSample, so consecutive calls with advancing
// offsets stay phase-continuous. Amplitude is clamped to [0, 1].
func GenerateSineWave(sampleRateHz int, frequency float64, startSample int, d time.Duration, amplitude float64) []byte {
	amplitude = max(0, min(amplitude, 1))

	numSamples := ChunkSize(d, sampleRateHz) / BytesPerSample
	samples := make([]int16, numSamples)
	for i := range samples {
		t := float64(startSample+i) / float64(sampleRateHz)
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*t) * math.MaxInt16)
	}
	return ConvertInt16ToPCM(samples)
}
