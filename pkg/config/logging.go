package config

import (
	"strconv"

	"github.com/tccoin/museum-agent/runtime/logger"
)

// LoggingConfigSpec defines the logging section of the CLI configuration.
type LoggingConfigSpec struct {
	// DefaultLevel is the default log level for all modules.
	// Supported values: trace, debug, info, warn, error.
	DefaultLevel string `mapstructure:"defaultLevel" yaml:"defaultLevel,omitempty"`

	// Format specifies the output format.
	// "json" produces machine-parseable JSON logs.
	// "text" produces human-readable text logs.
	Format string `mapstructure:"format" yaml:"format,omitempty"`

	// CommonFields are key-value pairs added to every log entry.
	// Useful for venue, kiosk id, environment, etc.
	CommonFields map[string]string `mapstructure:"commonFields" yaml:"commonFields,omitempty"`

	// Modules configures logging for specific modules.
	// Module names use dot notation (e.g., runtime.session).
	Modules []ModuleLoggingConfig `mapstructure:"modules" yaml:"modules,omitempty"`
}

// ModuleLoggingConfig configures logging for a specific module.
type ModuleLoggingConfig struct {
	// Name is the module name pattern using dot notation.
	// Examples: "runtime", "runtime.session", "runtime.transport".
	// More specific names take precedence over less specific ones.
	Name string `mapstructure:"name" yaml:"name"`

	// Level is the log level for this module.
	// Overrides the default level for matching loggers.
	Level string `mapstructure:"level" yaml:"level"`
}

// LogLevel constants for programmatic use.
const (
	LogLevelTrace = "trace"
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogFormat constants for programmatic use.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// DefaultLoggingConfig returns a LoggingConfigSpec with sensible defaults.
func DefaultLoggingConfig() LoggingConfigSpec {
	return LoggingConfigSpec{
		DefaultLevel: LogLevelInfo,
		Format:       LogFormatText,
	}
}

// Validate validates the LoggingConfigSpec.
func (c *LoggingConfigSpec) Validate() error {
	// Validate default level
	if c.DefaultLevel != "" && !isValidLogLevel(c.DefaultLevel) {
		return &ValidationError{
			Field:   "defaultLevel",
			Message: "must be one of: trace, debug, info, warn, error",
			Value:   c.DefaultLevel,
		}
	}

	// Validate format
	if c.Format != "" && c.Format != LogFormatJSON && c.Format != LogFormatText {
		return &ValidationError{
			Field:   "format",
			Message: "must be one of: json, text",
			Value:   c.Format,
		}
	}

	// Validate module configs
	for i, mod := range c.Modules {
		if mod.Name == "" {
			return &ValidationError{
				Field:   "modules[" + strconv.Itoa(i) + "].name",
				Message: "module name is required",
			}
		}
		if mod.Level != "" && !isValidLogLevel(mod.Level) {
			return &ValidationError{
				Field:   "modules[" + mod.Name + "].level",
				Message: "must be one of: trace, debug, info, warn, error",
				Value:   mod.Level,
			}
		}
	}

	return nil
}

// LoggerSpec converts the section into the form logger.Configure accepts.
func (c *LoggingConfigSpec) LoggerSpec() *logger.LoggingConfigSpec {
	spec := &logger.LoggingConfigSpec{
		DefaultLevel: c.DefaultLevel,
		Format:       c.Format,
		CommonFields: c.CommonFields,
	}
	for _, mod := range c.Modules {
		spec.Modules = append(spec.Modules, logger.ModuleLoggingSpec{Name: mod.Name, Level: mod.Level})
	}
	return spec
}

// isValidLogLevel checks if a log level string is valid.
func isValidLogLevel(level string) bool {
	switch level {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return "logging config validation error: " + e.Field + ": " + e.Message + " (got: " + e.Value + ")"
	}
	return "logging config validation error: " + e.Field + ": " + e.Message
}
