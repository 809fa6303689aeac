package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/tccoin/museum-agent/runtime/realtime"
)

// Transport kinds accepted in TransportConfig.Kind.
const (
	TransportWebRTC    = "webrtc"
	TransportWebSocket = "websocket"
)

// SupportedCodecs lists the audio codecs the WebRTC transport can negotiate.
var SupportedCodecs = []string{"opus", "pcmu", "pcma"}

// DefaultCLIConfig returns the configuration museumctl starts from before
// the config file, environment and flags are applied.
func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		AgentSet: DefaultAgentSetName,
		Transport: TransportConfig{
			Kind:               TransportWebRTC,
			Codec:              "opus",
			Model:              realtime.DefaultModel,
			NegotiationTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			Speed:         realtime.DefaultSpeed,
			GreetingDelay: time.Second,
		},
		Prefs: PreferencesConfig{
			Profile: "default",
		},
		Logging: DefaultLoggingConfig(),
	}
}

// Validate checks values the schema cannot: ranges that depend on runtime
// constants and combinations of fields.
func (c *CLIConfig) Validate() error {
	var errs []error
	if c.AgentSet == "" && c.AgentSetFile == "" {
		errs = append(errs, errors.New("agent_set or agent_set_file is required"))
	}
	switch c.Transport.Kind {
	case TransportWebRTC, TransportWebSocket:
	default:
		errs = append(errs, fmt.Errorf("transport.kind must be %s or %s, got %q", TransportWebRTC, TransportWebSocket, c.Transport.Kind))
	}
	if c.Transport.Codec != "" && !slices.Contains(SupportedCodecs, c.Transport.Codec) {
		errs = append(errs, fmt.Errorf("transport.codec %q is not supported", c.Transport.Codec))
	}
	if c.Session.Voice != "" {
		if err := realtime.ValidateVoice(c.Session.Voice); err != nil {
			errs = append(errs, fmt.Errorf("session.voice: %w", err))
		}
	}
	if c.Session.Speed != 0 {
		if err := realtime.ValidateSpeed(c.Session.Speed); err != nil {
			errs = append(errs, fmt.Errorf("session.speed: %w", err))
		}
	}
	if c.Auth.AzureEndpoint != "" && c.Auth.AzureDeploy == "" {
		errs = append(errs, errors.New("auth.azure_deployment is required with auth.azure_endpoint"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateCLIConfigFile schema-checks a museumctl configuration file.
func ValidateCLIConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return ValidateCLIConfig(data)
}
