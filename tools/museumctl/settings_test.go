package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tccoin/museum-agent/pkg/config"
)

func newTestConnectCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "connect"}
	addConnectFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadSettings_Defaults(t *testing.T) {
	cfg, err := loadSettings(newTestConnectCmd(t))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultAgentSetName, cfg.AgentSet)
	assert.Equal(t, config.TransportWebRTC, cfg.Transport.Kind)
	assert.Equal(t, "opus", cfg.Transport.Codec)
	assert.Equal(t, time.Second, cfg.Session.GreetingDelay)
	assert.Equal(t, 15*time.Second, cfg.Transport.NegotiationTimeout)
	assert.Nil(t, cfg.Session.PushToTalk)
}

func TestLoadSettings_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "museumctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`agent_set: simpleExample
transport:
  kind: websocket
session:
  voice: sage
  greeting_delay: 2s
preferences:
  redis_addr: localhost:6379
`), 0o600))
	t.Setenv("MUSEUM_SESSION_VOICE", "alloy")
	t.Setenv("MUSEUM_AUTH_API_KEY", "sk-env")

	cfg, err := loadSettings(newTestConnectCmd(t, "--config", path, "--transport", "webrtc", "--ptt"))
	require.NoError(t, err)

	assert.Equal(t, "simpleExample", cfg.AgentSet, "file")
	assert.Equal(t, "alloy", cfg.Session.Voice, "env over file")
	assert.Equal(t, config.TransportWebRTC, cfg.Transport.Kind, "flag over file")
	assert.Equal(t, 2*time.Second, cfg.Session.GreetingDelay)
	assert.Equal(t, "localhost:6379", cfg.Prefs.RedisAddr)
	assert.Equal(t, "sk-env", cfg.Auth.APIKey)
	require.NotNil(t, cfg.Session.PushToTalk)
	assert.True(t, *cfg.Session.PushToTalk)
}

func TestLoadSettings_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "museumctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  kind: sip\n"), 0o600))

	_, err := loadSettings(newTestConnectCmd(t, "--config", path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestLoadSettings_InvalidFlag(t *testing.T) {
	_, err := loadSettings(newTestConnectCmd(t, "--speed", "4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.speed")
}
