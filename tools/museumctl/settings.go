package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tccoin/museum-agent/pkg/config"
)

const envPrefix = "MUSEUM"

// flagKeys maps connect flags to configuration keys.
var flagKeys = map[string]string{
	"agent-set":      "agent_set",
	"agent-set-file": "agent_set_file",
	"agent":          "agent",
	"voice":          "session.voice",
	"speed":          "session.speed",
	"greeting-delay": "session.greeting_delay",
	"record":         "session.record",
	"transport":      "transport.kind",
	"codec":          "transport.codec",
	"base-url":       "transport.base_url",
	"model":          "transport.model",
	"token-endpoint": "auth.token_endpoint",
	"api-key-file":   "auth.api_key_file",
	"metrics-addr":   "observability.metrics_addr",
	"otlp-endpoint":  "observability.otlp_endpoint",
	"event-log":      "observability.event_log_dir",
	"prefs-file":     "preferences.file",
	"redis-addr":     "preferences.redis_addr",
	"profile":        "preferences.profile",
}

// envOnlyKeys are read from MUSEUM_* variables and the config file but have
// no flag.
var envOnlyKeys = []string{
	"auth.api_key",
	"auth.api_key_env",
	"auth.azure_endpoint",
	"auth.azure_deployment",
	"auth.cache",
	"transport.negotiation_timeout",
	"preferences.ttl",
	"logging.defaultLevel",
	"logging.format",
}

func setDefaults(v *viper.Viper) {
	d := config.DefaultCLIConfig()
	v.SetDefault("agent_set", d.AgentSet)
	v.SetDefault("transport.kind", d.Transport.Kind)
	v.SetDefault("transport.codec", d.Transport.Codec)
	v.SetDefault("transport.model", d.Transport.Model)
	v.SetDefault("transport.negotiation_timeout", d.Transport.NegotiationTimeout)
	v.SetDefault("session.speed", d.Session.Speed)
	v.SetDefault("session.greeting_delay", d.Session.GreetingDelay)
	v.SetDefault("preferences.profile", d.Prefs.Profile)
	v.SetDefault("logging.defaultLevel", d.Logging.DefaultLevel)
	v.SetDefault("logging.format", d.Logging.Format)
}

// loadSettings merges defaults, the --config file, MUSEUM_* environment
// variables and flags, in increasing precedence.
func loadSettings(cmd *cobra.Command) (*config.CLIConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := config.ValidateCLIConfigFile(path); err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	var cfg config.CLIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// --ptt is tri-state: unset leaves the stored preference alone.
	if cmd.Flags().Changed("ptt") {
		ptt, _ := cmd.Flags().GetBool("ptt")
		cfg.Session.PushToTalk = &ptt
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
