package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tccoin/museum-agent/pkg/httputil"
)

func TestDefaultConstants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 15*time.Second, httputil.DefaultCredentialTimeout)
	assert.Equal(t, 15*time.Second, httputil.DefaultNegotiationTimeout)
	assert.Equal(t, 30*time.Second, httputil.DefaultToolTimeout)
}

func TestNewHTTPClient_Timeout(t *testing.T) {
	t.Parallel()

	for _, timeout := range []time.Duration{httputil.DefaultCredentialTimeout, 5 * time.Second, 0} {
		client := httputil.NewHTTPClient(timeout)
		require.NotNil(t, client)
		assert.Equal(t, timeout, client.Timeout)
		assert.NotNil(t, client.Transport, "client must carry the tracing transport")
	}
}

// Not parallel: swaps the global propagator.
func TestNewHTTPClient_PropagatesTraceContext(t *testing.T) {
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(t.Context()) }()
	ctx, span := tp.Tracer("test").Start(t.Context(), "connect")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := httputil.NewHTTPClient(time.Second).Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.NotEmpty(t, traceparent)
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}
