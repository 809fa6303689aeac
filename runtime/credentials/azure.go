package credentials

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/tccoin/museum-agent/pkg/httputil"
)

// tokenRefreshBuffer is the time before token expiration to trigger a refresh.
const tokenRefreshBuffer = 5 * time.Minute

// cognitiveServicesScope is the AAD scope of Azure OpenAI.
const cognitiveServicesScope = "https://cognitiveservices.azure.com/.default"

// DefaultAzureAPIVersion is the realtime sessions API version.
const DefaultAzureAPIVersion = "2025-04-01-preview"

// AzureCredential implements Azure AD token-based authentication for Azure OpenAI.
type AzureCredential struct {
	cred        azcore.TokenCredential
	mu          sync.RWMutex
	cachedToken *azcore.AccessToken
	now         func() time.Time
}

// NewAzureCredential creates a new Azure credential using the default credential chain.
// This supports Managed Identity, Azure CLI, environment variables, and more.
func NewAzureCredential() (*AzureCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return NewAzureCredentialFrom(cred), nil
}

// NewAzureCredentialFrom wraps an existing token credential.
func NewAzureCredentialFrom(cred azcore.TokenCredential) *AzureCredential {
	return &AzureCredential{cred: cred, now: time.Now}
}

// Apply adds the Azure AD token to the request.
func (c *AzureCredential) Apply(ctx context.Context, req *http.Request) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get Azure token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	return nil
}

// Type returns "azure".
func (c *AzureCredential) Type() string {
	return "azure"
}

// getToken retrieves the current Azure AD token, refreshing if necessary.
func (c *AzureCredential) getToken(ctx context.Context) (*azcore.AccessToken, error) {
	c.mu.RLock()
	if c.fresh() {
		token := c.cachedToken
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.fresh() {
		return c.cachedToken, nil
	}

	token, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{cognitiveServicesScope},
	})
	if err != nil {
		return nil, err
	}
	c.cachedToken = &token
	return &token, nil
}

// fresh reports whether the cached token outlives the refresh buffer.
// Caller must hold c.mu.
func (c *AzureCredential) fresh() bool {
	return c.cachedToken != nil && c.cachedToken.ExpiresOn.After(c.now().Add(tokenRefreshBuffer))
}

// AzureSessionConfig locates an Azure OpenAI realtime deployment.
type AzureSessionConfig struct {
	// Endpoint is the resource endpoint, e.g. https://my-resource.openai.azure.com.
	Endpoint   string
	Deployment string
	APIVersion string
	Voice      string
}

// NewAzureSessionSource mints client secrets from an Azure OpenAI realtime
// deployment, authenticating with cred.
func NewAzureSessionSource(cfg AzureSessionConfig, cred Credential) (*SessionSource, error) {
	if cfg.Endpoint == "" || cfg.Deployment == "" {
		return nil, fmt.Errorf("azure endpoint and deployment are required")
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}
	u, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/") + "/openai/realtimeapi/sessions")
	if err != nil {
		return nil, fmt.Errorf("invalid azure endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api-version", version)
	u.RawQuery = q.Encode()

	return &SessionSource{
		URL:        u.String(),
		Model:      cfg.Deployment,
		Voice:      cfg.Voice,
		Credential: cred,
		Client:     httputil.NewHTTPClient(httputil.DefaultCredentialTimeout),
	}, nil
}
