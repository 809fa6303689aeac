package credentials

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/tccoin/museum-agent/pkg/httputil"
)

// DefaultEarlyExpiry is how long before expiry a cached secret is refreshed.
const DefaultEarlyExpiry = 10 * time.Second

// CachedSource reuses a client secret until shortly before it expires.
// Secrets without an expiry are never reused.
type CachedSource struct {
	ts oauth2.TokenSource
}

// NewCachedSource wraps src with expiry-aware reuse.
func NewCachedSource(src SecretSource, earlyExpiry time.Duration) *CachedSource {
	if earlyExpiry <= 0 {
		earlyExpiry = DefaultEarlyExpiry
	}
	return &CachedSource{
		ts: oauth2.ReuseTokenSourceWithExpiry(nil, &secretTokenSource{src: src}, earlyExpiry),
	}
}

// FetchCredential implements Source. The caller's context does not reach
// refreshes, which are bounded by httputil.DefaultCredentialTimeout instead.
func (c *CachedSource) FetchCredential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := c.ts.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// secretTokenSource adapts a SecretSource to oauth2.TokenSource.
type secretTokenSource struct {
	src SecretSource
}

func (s *secretTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), httputil.DefaultCredentialTimeout)
	defer cancel()
	secret, err := s.src.FetchSecret(ctx)
	if err != nil {
		return nil, err
	}
	expiry := secret.ExpiresAt
	if expiry.IsZero() {
		// oauth2 treats a zero expiry as never expiring; force a refetch instead.
		expiry = time.Unix(1, 0)
	}
	return &oauth2.Token{AccessToken: secret.Value, TokenType: "Bearer", Expiry: expiry}, nil
}
