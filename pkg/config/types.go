package config

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/tccoin/museum-agent/runtime/agents"
)

// Manifest kinds.
const (
	KindAgentSet = "AgentSet"
	KindCLI      = "MuseumctlConfig"
)

// ObjectMeta is a simplified metadata structure for museum-agent manifests.
// Based on K8s ObjectMeta but with YAML-friendly tags and optional fields.
type ObjectMeta struct {
	Name        string            `yaml:"name,omitempty"`
	Namespace   string            `yaml:"namespace,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

// AgentSetConfig is an agent set in K8s-style manifest format.
type AgentSetConfig struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   ObjectMeta   `yaml:"metadata,omitempty"`
	Spec       AgentSetSpec `yaml:"spec"`
}

// AgentSetConfigK8s is the agent set manifest using full K8s ObjectMeta for
// unmarshaling.
type AgentSetConfigK8s struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       AgentSetSpec      `yaml:"spec"`
}

// AgentSetSpec lists the agents of a set.
type AgentSetSpec struct {
	// ID is filled from metadata.name when the manifest is loaded.
	ID          string `yaml:"-"`
	Description string `yaml:"description,omitempty"`
	// DefaultAgent is the agent a session starts with; the first agent when empty.
	DefaultAgent string          `yaml:"defaultAgent,omitempty"`
	Agents       []*agents.Agent `yaml:"agents"`
}

// AgentSet is a loaded and validated agent set.
type AgentSet struct {
	Name        string
	Description string
	Labels      map[string]string
	Graph       *agents.Graph
	// Source is the file the set was read from, or "builtin:<name>".
	Source string
	// Warnings are non-fatal findings of the semantic validator.
	Warnings []string
}

// CLIConfig is the museumctl configuration, read by viper from the config
// file, MUSEUM_ environment variables and flags.
type CLIConfig struct {
	AgentSet     string `mapstructure:"agent_set" yaml:"agent_set,omitempty"`
	AgentSetFile string `mapstructure:"agent_set_file" yaml:"agent_set_file,omitempty"`
	Agent        string `mapstructure:"agent" yaml:"agent,omitempty"`

	Transport TransportConfig   `mapstructure:"transport" yaml:"transport,omitempty"`
	Auth      AuthConfig        `mapstructure:"auth" yaml:"auth,omitempty"`
	Session   SessionConfig     `mapstructure:"session" yaml:"session,omitempty"`
	Prefs     PreferencesConfig `mapstructure:"preferences" yaml:"preferences,omitempty"`
	Observe   ObserveConfig     `mapstructure:"observability" yaml:"observability,omitempty"`
	Logging   LoggingConfigSpec `mapstructure:"logging" yaml:"logging,omitempty"`
}

// TransportConfig selects and tunes the transport.
type TransportConfig struct {
	// Kind is "webrtc" or "websocket".
	Kind               string        `mapstructure:"kind" yaml:"kind,omitempty"`
	Codec              string        `mapstructure:"codec" yaml:"codec,omitempty"`
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Model              string        `mapstructure:"model" yaml:"model,omitempty"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout" yaml:"negotiation_timeout,omitempty"`
}

// AuthConfig selects the credential source.
type AuthConfig struct {
	TokenEndpoint string `mapstructure:"token_endpoint" yaml:"token_endpoint,omitempty"`
	APIKey        string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	APIKeyEnv     string `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	APIKeyFile    string `mapstructure:"api_key_file" yaml:"api_key_file,omitempty"`
	AzureEndpoint string `mapstructure:"azure_endpoint" yaml:"azure_endpoint,omitempty"`
	AzureDeploy   string `mapstructure:"azure_deployment" yaml:"azure_deployment,omitempty"`
	Cache         bool   `mapstructure:"cache" yaml:"cache,omitempty"`
}

// SessionConfig carries initial session settings.
type SessionConfig struct {
	Voice         string        `mapstructure:"voice" yaml:"voice,omitempty"`
	Speed         float64       `mapstructure:"speed" yaml:"speed,omitempty"`
	PushToTalk    *bool         `mapstructure:"push_to_talk" yaml:"push_to_talk,omitempty"`
	GreetingDelay time.Duration `mapstructure:"greeting_delay" yaml:"greeting_delay,omitempty"`
	Record        string        `mapstructure:"record" yaml:"record,omitempty"`
}

// PreferencesConfig selects the preferences store. Redis wins over the file.
type PreferencesConfig struct {
	File      string        `mapstructure:"file" yaml:"file,omitempty"`
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	Profile   string        `mapstructure:"profile" yaml:"profile,omitempty"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

// ObserveConfig enables the optional observability outputs.
type ObserveConfig struct {
	MetricsAddr  string `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint,omitempty"`
	EventLogDir  string `mapstructure:"event_log_dir" yaml:"event_log_dir,omitempty"`
}
