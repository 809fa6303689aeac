package telemetry

import (
	"slices"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracer_FallsBackToGlobal(t *testing.T) {
	if Tracer(nil) == nil {
		t.Fatal("expected non-nil tracer")
	}
	if Tracer(noop.NewTracerProvider()) == nil {
		t.Fatal("expected non-nil tracer from explicit provider")
	}
}

func TestSetupPropagation(t *testing.T) {
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)

	SetupPropagation()

	fields := otel.GetTextMapPropagator().Fields()
	for _, want := range []string{"traceparent", "baggage"} {
		if !slices.Contains(fields, want) {
			t.Errorf("propagator fields %v missing %q", fields, want)
		}
	}
}

func TestNewTracerProvider(t *testing.T) {
	// The exporter connects lazily, so an unreachable endpoint is fine here.
	tp, err := NewTracerProvider(t.Context(), "http://127.0.0.1:1/v1/traces", "museumctl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = tp.Shutdown(t.Context()) }()

	if Tracer(tp) == nil {
		t.Fatal("expected tracer from provider")
	}
}
