// Package credentials obtains the short-lived client secret a realtime
// session authenticates with.
//
// A Source returns the secret. EndpointSource asks an application token
// endpoint for one; SessionSource mints one directly from the provider's
// session API, authenticating that call with a long-lived Credential (an
// OpenAI API key or an Azure AD token). NewCachedSource reuses a secret until
// shortly before it expires.
package credentials

import (
	"context"
	"net/http"
)

// Source returns a client secret for one connect attempt.
type Source interface {
	FetchCredential(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (string, error)

// FetchCredential calls f(ctx).
func (f SourceFunc) FetchCredential(ctx context.Context) (string, error) {
	return f(ctx)
}

// Credential applies long-lived authentication to HTTP requests that mint
// client secrets.
type Credential interface {
	// Apply adds authentication to the HTTP request.
	Apply(ctx context.Context, req *http.Request) error

	// Type returns the credential type identifier (e.g., "api_key", "azure").
	Type() string
}

// APIKeyCredential implements header-based API key authentication.
type APIKeyCredential struct {
	apiKey     string
	headerName string
	prefix     string // Optional prefix like "Bearer "
}

// APIKeyOption configures an APIKeyCredential.
type APIKeyOption func(*APIKeyCredential)

// WithHeaderName sets the header name for the API key.
func WithHeaderName(name string) APIKeyOption {
	return func(c *APIKeyCredential) {
		c.headerName = name
	}
}

// WithPrefix sets a custom prefix for the API key.
func WithPrefix(prefix string) APIKeyOption {
	return func(c *APIKeyCredential) {
		c.prefix = prefix
	}
}

// NewAPIKeyCredential creates a new API key credential.
// By default, it uses "Authorization" header with "Bearer " prefix.
func NewAPIKeyCredential(apiKey string, opts ...APIKeyOption) *APIKeyCredential {
	c := &APIKeyCredential{
		apiKey:     apiKey,
		headerName: "Authorization",
		prefix:     "Bearer ",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply adds the API key to the request header.
func (c *APIKeyCredential) Apply(_ context.Context, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set(c.headerName, c.prefix+c.apiKey)
	}
	return nil
}

// Type returns "api_key".
func (c *APIKeyCredential) Type() string {
	return "api_key"
}
