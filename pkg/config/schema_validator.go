package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// SchemaBaseURL is the base URL of the museum-agent JSON schemas. The schemas
// are embedded; the URL only identifies them.
const SchemaBaseURL = "https://museum-agent.tccoin.github.io/schemas/" + SchemaVersion

const errorFormat = "  - %s"

//go:embed schemas/*.json
var schemaFS embed.FS

// ConfigType represents the type of configuration file
type ConfigType string

const (
	ConfigTypeAgentSet ConfigType = "agentset"
	ConfigTypeCLI      ConfigType = "museumctlconfig"
)

// SchemaValidationError represents a validation error from JSON schema validation
type SchemaValidationError struct {
	Field       string
	Description string
	Value       interface{}
}

// Error implements the error interface
func (e SchemaValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// SchemaValidationResult contains the results of schema validation
type SchemaValidationResult struct {
	Valid  bool
	Errors []SchemaValidationError
}

// Schema returns the embedded JSON schema of a configuration type.
func Schema(configType ConfigType) ([]byte, error) {
	data, err := schemaFS.ReadFile("schemas/" + string(configType) + ".json")
	if err != nil {
		return nil, fmt.Errorf("no schema for config type %q: %w", configType, err)
	}
	return data, nil
}

// ValidateWithSchema validates YAML data against the embedded JSON schema of configType
func ValidateWithSchema(yamlData []byte, configType ConfigType) (*SchemaValidationResult, error) {
	schema, err := Schema(configType)
	if err != nil {
		return nil, err
	}

	// Convert YAML to JSON for schema validation
	var data interface{}
	if err := yaml.Unmarshal(yamlData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	validationResult := &SchemaValidationResult{
		Valid:  result.Valid(),
		Errors: make([]SchemaValidationError, 0),
	}

	if !result.Valid() {
		for _, err := range result.Errors() {
			validationResult.Errors = append(validationResult.Errors, SchemaValidationError{
				Field:       err.Field(),
				Description: err.Description(),
				Value:       err.Value(),
			})
		}
	}

	return validationResult, nil
}

// ValidateAgentSet validates an AgentSet manifest against its schema
func ValidateAgentSet(yamlData []byte) error {
	return validate(yamlData, ConfigTypeAgentSet, "agent set")
}

// ValidateCLIConfig validates a museumctl configuration file against its schema
func ValidateCLIConfig(yamlData []byte) error {
	return validate(yamlData, ConfigTypeCLI, "museumctl")
}

func validate(yamlData []byte, configType ConfigType, label string) error {
	result, err := ValidateWithSchema(yamlData, configType)
	if err != nil {
		return err
	}

	if !result.Valid {
		var errorMessages []string
		for _, e := range result.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf(errorFormat, e.Error()))
		}
		return fmt.Errorf("%s configuration does not match schema:\n%s", label, strings.Join(errorMessages, "\n"))
	}

	return nil
}

// DetectConfigType attempts to detect the configuration type from YAML data
func DetectConfigType(yamlData []byte) (ConfigType, error) {
	var data map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &data); err != nil {
		return "", fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Check for K8s-style manifest with kind field
	if kind, ok := data["kind"].(string); ok {
		switch kind {
		case KindAgentSet:
			return ConfigTypeAgentSet, nil
		case KindCLI:
			return ConfigTypeCLI, nil
		}
	}

	return "", fmt.Errorf("unable to detect configuration type: missing or unknown 'kind' field")
}
