package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/pkg/httputil"
	"github.com/tccoin/museum-agent/runtime/logger"
)

const maxResponseBytes = 1 << 20

// Secret is a client secret and its expiry. A zero ExpiresAt means unknown.
type Secret struct {
	Value     string
	ExpiresAt time.Time
}

// SecretSource is a Source that also reports expiry.
type SecretSource interface {
	Source
	FetchSecret(ctx context.Context) (*Secret, error)
}

// sessionResponse is the session object returned by both the token endpoint
// and the provider session API.
type sessionResponse struct {
	ClientSecret *struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

func (r *sessionResponse) secret() (*Secret, error) {
	if r.ClientSecret == nil || r.ClientSecret.Value == "" {
		return nil, &pkgerrors.AuthError{Cause: pkgerrors.ErrNoCredential}
	}
	s := &Secret{Value: r.ClientSecret.Value}
	if r.ClientSecret.ExpiresAt > 0 {
		s.ExpiresAt = time.Unix(r.ClientSecret.ExpiresAt, 0)
	}
	return s, nil
}

// EndpointSource fetches a client secret from an application token endpoint
// with a GET request.
type EndpointSource struct {
	URL    string
	Client *http.Client
}

// NewEndpointSource creates a token endpoint source.
func NewEndpointSource(url string) *EndpointSource {
	return &EndpointSource{URL: url, Client: httputil.NewHTTPClient(httputil.DefaultCredentialTimeout)}
}

// FetchCredential implements Source.
func (s *EndpointSource) FetchCredential(ctx context.Context) (string, error) {
	return valueOf(s.FetchSecret(ctx))
}

// FetchSecret implements SecretSource.
func (s *EndpointSource) FetchSecret(ctx context.Context) (*Secret, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, http.NoBody)
	if err != nil {
		return nil, &pkgerrors.AuthError{Cause: err}
	}
	return doSessionRequest(s.Client, req, "token-endpoint")
}

// SessionSource mints a client secret from a provider session API with a
// POST carrying the session defaults.
type SessionSource struct {
	URL        string
	Model      string
	Voice      string
	Credential Credential
	Client     *http.Client
}

// FetchCredential implements Source.
func (s *SessionSource) FetchCredential(ctx context.Context) (string, error) {
	return valueOf(s.FetchSecret(ctx))
}

// FetchSecret implements SecretSource.
func (s *SessionSource) FetchSecret(ctx context.Context) (*Secret, error) {
	body := map[string]string{"model": s.Model}
	if s.Voice != "" {
		body["voice"] = s.Voice
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &pkgerrors.AuthError{Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(data))
	if err != nil {
		return nil, &pkgerrors.AuthError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Credential != nil {
		if err := s.Credential.Apply(ctx, req); err != nil {
			return nil, &pkgerrors.AuthError{Cause: err}
		}
	}
	return doSessionRequest(s.Client, req, "session-api")
}

// doSessionRequest performs the request and decodes the session response.
// Every failure is reported as an AuthError: a connect attempt cannot proceed
// without a secret.
func doSessionRequest(client *http.Client, req *http.Request, service string) (*Secret, error) {
	if client == nil {
		client = httputil.NewHTTPClient(httputil.DefaultCredentialTimeout)
	}
	logger.APIRequest(service, req.Method, req.URL.String(), nil, nil)

	resp, err := client.Do(req)
	if err != nil {
		logger.APIResponse(service, 0, "", err)
		return nil, &pkgerrors.AuthError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &pkgerrors.AuthError{StatusCode: resp.StatusCode, Cause: err}
	}
	logger.APIResponse(service, resp.StatusCode, string(raw), nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &pkgerrors.AuthError{
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("%s returned %s", service, http.StatusText(resp.StatusCode)),
		}
	}

	var parsed sessionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &pkgerrors.AuthError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("decode session: %w", err)}
	}
	return parsed.secret()
}

func valueOf(s *Secret, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

// StaticSource returns a fixed secret. An empty secret fails like a token
// endpoint that issued none.
func StaticSource(secret string) Source {
	return SourceFunc(func(context.Context) (string, error) {
		if secret == "" {
			return "", &pkgerrors.AuthError{Cause: pkgerrors.ErrNoCredential}
		}
		return secret, nil
	})
}

// IsNoCredential reports whether err means no secret was issued.
func IsNoCredential(err error) bool {
	return errors.Is(err, pkgerrors.ErrNoCredential)
}
