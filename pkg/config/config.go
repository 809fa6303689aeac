// Package config provides configuration management for museum-agent.
//
// This package handles YAML-based configuration loading and validation for:
//   - Agent sets: the cooperating agents of a session and their handoff edges
//   - The museumctl CLI configuration (transport, credentials, preferences,
//     observability and logging)
//
// Agent sets are K8s-style manifests (apiVersion, kind, metadata, spec),
// validated against an embedded JSON schema before they are decoded. Two
// sets ship with the binary; see BuiltinAgentSetNames.
//
// The package is organized into:
//   - types.go: Manifest and CLI configuration types
//   - loader.go: Loading agent sets from files, bytes and the built-in sets
//   - schema_validator.go: JSON schema validation of manifests
//   - validator.go: Semantic validation and warnings
//   - logging.go: Logging section of the CLI configuration
package config
