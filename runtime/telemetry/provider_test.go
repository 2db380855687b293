package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracer_NilProvider(t *testing.T) {
	if Tracer(nil) == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestTracer_WithProvider(t *testing.T) {
	if Tracer(noop.NewTracerProvider()) == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestSetupPropagation(t *testing.T) {
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)

	SetupPropagation()

	fields := otel.GetTextMapPropagator().Fields()
	want := map[string]bool{"traceparent": false, "baggage": false}
	for _, f := range fields {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("expected propagator to handle %q, got fields: %v", f, fields)
		}
	}
}

func TestNewTracerProvider(t *testing.T) {
	// The exporter connects lazily, so an unreachable endpoint is fine here.
	tp, err := NewTracerProvider(t.Context(), ProviderConfig{
		Endpoint:       "http://localhost:0/v1/traces",
		ServiceVersion: "test",
		SampleRatio:    0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = tp.Shutdown(t.Context()) }()

	if Tracer(tp) == nil {
		t.Fatal("expected tracer from provider")
	}
}

func TestServiceAttributes(t *testing.T) {
	attrs := serviceAttributes(ProviderConfig{})
	if len(attrs) != 1 || attrs[0].Value.AsString() != DefaultServiceName {
		t.Fatalf("expected default service name only, got %v", attrs)
	}

	attrs = serviceAttributes(ProviderConfig{ServiceName: "mirror", ServiceVersion: "1.2.0"})
	if len(attrs) != 2 || attrs[0].Value.AsString() != "mirror" || attrs[1].Value.AsString() != "1.2.0" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		got := sampler(tt.ratio).Description()
		if !strings.Contains(got, tt.want) {
			t.Errorf("sampler(%v) = %q, want it to contain %q", tt.ratio, got, tt.want)
		}
	}
}
