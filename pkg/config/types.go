package config

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// LiveSessionConfig is a live session manifest in K8s style.
type LiveSessionConfig struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       LiveSessionSpec   `yaml:"spec"`
}

// LiveSessionSpec configures one conversation and its surroundings.
type LiveSessionSpec struct {
	Model              string   `yaml:"model"`
	Voice              string   `yaml:"voice,omitempty"`
	SystemInstruction  string   `yaml:"systemInstruction,omitempty"`
	ResponseModalities []string `yaml:"responseModalities,omitempty"`

	Transcription TranscriptionSpec `yaml:"transcription,omitempty"`
	Video         VideoSpec         `yaml:"video,omitempty"`
	Audio         AudioSpec         `yaml:"audio,omitempty"`

	// Endpoint overrides the Live API WebSocket URL.
	Endpoint string `yaml:"endpoint,omitempty"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"apiKeyEnv,omitempty"`
	// SetupTimeout bounds the wait for setup acknowledgement, e.g. "10s".
	SetupTimeout string `yaml:"setupTimeout,omitempty"`

	Logging   *LoggingConfigSpec `yaml:"logging,omitempty"`
	Metrics   MetricsSpec        `yaml:"metrics,omitempty"`
	Telemetry TelemetrySpec      `yaml:"telemetry,omitempty"`
	History   HistorySpec        `yaml:"history,omitempty"`
	Recording RecordingSpec      `yaml:"recording,omitempty"`
}

// TranscriptionSpec toggles transcripts. Unset fields default to on.
type TranscriptionSpec struct {
	Input  *bool `yaml:"input,omitempty"`
	Output *bool `yaml:"output,omitempty"`
}

// VideoSpec configures the camera.
type VideoSpec struct {
	Enabled     bool    `yaml:"enabled,omitempty"`
	FPS         float64 `yaml:"fps,omitempty"`
	JPEGQuality int     `yaml:"jpegQuality,omitempty"`
	MaxWidth    int     `yaml:"maxWidth,omitempty"`
	MaxHeight   int     `yaml:"maxHeight,omitempty"`
	// Device is the camera index.
	Device int `yaml:"device,omitempty"`
}

// AudioSpec configures the microphone.
type AudioSpec struct {
	FrameDurationMs int `yaml:"frameDurationMs,omitempty"`
	// Tone replaces the microphone with a generated tone for headless runs.
	Tone bool `yaml:"tone,omitempty"`
}

// MetricsSpec configures the Prometheus endpoint.
type MetricsSpec struct {
	Addr string `yaml:"addr,omitempty"`
}

// TelemetrySpec configures OTLP span export.
type TelemetrySpec struct {
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`
	ServiceName  string `yaml:"serviceName,omitempty"`
	// SampleRatio is the fraction of sessions traced; 0 means all.
	SampleRatio float64 `yaml:"sampleRatio,omitempty"`
}

// HistorySpec configures turn history persistence in Redis.
type HistorySpec struct {
	RedisAddr string `yaml:"redisAddr,omitempty"`
	// TTL is a duration such as "24h"; "0s" disables expiry.
	TTL    string `yaml:"ttl,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// RecordingSpec configures JSON Lines event recording.
type RecordingSpec struct {
	Dir string `yaml:"dir,omitempty"`
}

// DefaultAPIKeyEnv is read when APIKeyEnv is empty.
const DefaultAPIKeyEnv = "GEMINI_API_KEY"
