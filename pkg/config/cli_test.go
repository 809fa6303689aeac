package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCLIConfig_Valid(t *testing.T) {
	cfg := DefaultCLIConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, TransportWebRTC, cfg.Transport.Kind)
	assert.Equal(t, DefaultAgentSetName, cfg.AgentSet)
}

func TestCLIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr string
	}{
		{"no agent set", func(c *CLIConfig) { c.AgentSet = "" }, "agent_set"},
		{"bad transport", func(c *CLIConfig) { c.Transport.Kind = "sip" }, "transport.kind"},
		{"bad codec", func(c *CLIConfig) { c.Transport.Codec = "g722" }, "g722"},
		{"bad voice", func(c *CLIConfig) { c.Session.Voice = "robotic" }, "session.voice"},
		{"bad speed", func(c *CLIConfig) { c.Session.Speed = 2 }, "session.speed"},
		{"azure without deployment", func(c *CLIConfig) { c.Auth.AzureEndpoint = "https://x.openai.azure.com" }, "azure_deployment"},
		{"bad log level", func(c *CLIConfig) { c.Logging.DefaultLevel = "loud" }, "defaultLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCLIConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCLIConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "museumctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent_set: simpleExample\n"), 0o600))
	assert.NoError(t, ValidateCLIConfigFile(path))

	err := ValidateCLIConfigFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
