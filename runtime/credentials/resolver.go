package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tccoin/museum-agent/pkg/httputil"
	"github.com/tccoin/museum-agent/runtime/realtime"
)

// DefaultOpenAISessionsURL is the OpenAI realtime session minting endpoint.
const DefaultOpenAISessionsURL = "https://api.openai.com/v1/realtime/sessions"

// DefaultEnvVars are consulted, in order, when no API key is configured.
var DefaultEnvVars = []string{"OPENAI_API_KEY", "OPENAI_TOKEN"}

// ErrNoSourceConfigured is returned when nothing identifies a credential source.
var ErrNoSourceConfigured = errors.New("no credential source configured: set a token endpoint, an Azure endpoint or an API key")

// ResolverConfig holds configuration for credential source resolution.
type ResolverConfig struct {
	// TokenEndpoint is an application endpoint issuing client secrets.
	TokenEndpoint string

	// APIKey, APIKeyFile and APIKeyEnv locate an OpenAI API key.
	APIKey     string
	APIKeyFile string
	APIKeyEnv  string

	// Azure selects Azure OpenAI session minting when Endpoint is set.
	Azure AzureSessionConfig

	// SessionsURL overrides DefaultOpenAISessionsURL.
	SessionsURL string

	Model string
	Voice string

	// Cache wraps the source with expiry-aware reuse.
	Cache bool

	// ConfigDir is the base directory for relative APIKeyFile paths.
	ConfigDir string
}

// Resolve picks a Source according to the chain:
//  1. token endpoint
//  2. Azure OpenAI deployment (Azure AD via the default credential chain)
//  3. OpenAI API key (explicit, file, environment variable, default env vars)
func Resolve(cfg ResolverConfig) (Source, error) {
	var src SecretSource
	switch {
	case cfg.TokenEndpoint != "":
		src = NewEndpointSource(cfg.TokenEndpoint)
	case cfg.Azure.Endpoint != "":
		cred, err := NewAzureCredential()
		if err != nil {
			return nil, err
		}
		azure := cfg.Azure
		if azure.Voice == "" {
			azure.Voice = cfg.Voice
		}
		s, err := NewAzureSessionSource(azure, cred)
		if err != nil {
			return nil, err
		}
		src = s
	default:
		key, err := findAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		if key == "" {
			return nil, ErrNoSourceConfigured
		}
		src = NewOpenAISessionSource(key, cfg.SessionsURL, cfg.Model, cfg.Voice)
	}

	if cfg.Cache {
		return NewCachedSource(src, DefaultEarlyExpiry), nil
	}
	return src, nil
}

// NewOpenAISessionSource mints client secrets with an OpenAI API key.
func NewOpenAISessionSource(apiKey, sessionsURL, model, voice string) *SessionSource {
	if sessionsURL == "" {
		sessionsURL = DefaultOpenAISessionsURL
	}
	if model == "" {
		model = realtime.DefaultModel
	}
	return &SessionSource{
		URL:        sessionsURL,
		Model:      model,
		Voice:      voice,
		Credential: NewAPIKeyCredential(apiKey),
		Client:     httputil.NewHTTPClient(httputil.DefaultCredentialTimeout),
	}
}

// findAPIKey searches for an API key in the resolution chain.
func findAPIKey(cfg ResolverConfig) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.APIKeyFile != "" {
		key, err := readCredentialFile(cfg.APIKeyFile, cfg.ConfigDir)
		if err != nil {
			return "", fmt.Errorf("failed to read credential file: %w", err)
		}
		return key, nil
	}
	if cfg.APIKeyEnv != "" {
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return "", fmt.Errorf("environment variable %s is not set", cfg.APIKeyEnv)
		}
		return key, nil
	}
	for _, envVar := range DefaultEnvVars {
		if key := os.Getenv(envVar); key != "" {
			return key, nil
		}
	}
	return "", nil
}

// readCredentialFile reads an API key from a file.
func readCredentialFile(path, configDir string) (string, error) {
	if !filepath.IsAbs(path) && configDir != "" {
		path = filepath.Join(configDir, path)
	}
	//nolint:gosec // G304: File path is from trusted configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
