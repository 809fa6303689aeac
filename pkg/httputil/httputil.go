// Package httputil provides shared HTTP client construction utilities.
// It centralizes timeout defaults so that every module that talks to the
// credential service or the realtime endpoint uses consistent configuration.
package httputil

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Standard timeout defaults used across the project.
const (
	// DefaultCredentialTimeout bounds a single credential fetch or session mint.
	DefaultCredentialTimeout = 15 * time.Second

	// DefaultNegotiationTimeout bounds the SDP offer/answer exchange and the wait
	// for the control channel to open.
	DefaultNegotiationTimeout = 15 * time.Second

	// DefaultToolTimeout bounds the execution of one local tool call.
	DefaultToolTimeout = 30 * time.Second
)

// NewHTTPClient returns an *http.Client configured with the given timeout.
// Requests get a client span and W3C trace headers from the global
// OpenTelemetry provider and propagator; both are no-ops until configured.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
