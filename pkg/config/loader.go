package config

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tccoin/museum-agent/runtime/agents"
)

// DefaultAgentSetName is the built-in set used when none is selected.
const DefaultAgentSetName = "museumAgent"

const builtinPrefix = "builtin:"

//go:embed agentsets/*.yaml
var builtinFS embed.FS

// LoadAgentSet loads and validates an agent set from a YAML file in K8s-style
// manifest format.
func LoadAgentSet(filename string) (*AgentSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent set file: %w", err)
	}
	return ParseAgentSet(data, filename)
}

// ParseAgentSet validates manifest bytes and builds the handoff graph.
// source names the origin in errors and in AgentSet.Source.
func ParseAgentSet(data []byte, source string) (*AgentSet, error) {
	// Step 1: JSON Schema validation (structure, types, required fields, kind values)
	if err := ValidateAgentSet(data); err != nil {
		return nil, fmt.Errorf("%s: schema validation failed: %w", source, err)
	}

	manifest, err := decodeK8sManifest[AgentSetConfigK8s](data, KindAgentSet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	spec := &manifest.Spec

	// Step 2: semantic validation (voices, tool schemas, graph shape)
	validator := NewAgentSetValidator(spec)
	if err := validator.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	graph, err := agents.NewGraph(spec.Agents, spec.DefaultAgent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	return &AgentSet{
		Name:        spec.ID,
		Description: spec.Description,
		Labels:      manifest.Metadata.Labels,
		Graph:       graph,
		Source:      source,
		Warnings:    validator.GetWarnings(),
	}, nil
}

// k8sManifest is an interface for K8s-style manifest types
type k8sManifest interface {
	GetAPIVersion() string
	GetKind() string
	GetName() string
	SetID(id string)
}

// decodeK8sManifest unmarshals a schema-validated manifest and copies
// metadata.name into the spec id.
func decodeK8sManifest[T any, PT interface {
	*T
	k8sManifest
}](data []byte, expectedKind string) (PT, error) {
	var config T
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", expectedKind, err)
	}
	manifest := PT(&config)
	if manifest.GetKind() != expectedKind {
		return nil, fmt.Errorf("expected kind %s, got %q", expectedKind, manifest.GetKind())
	}

	// Use metadata.name as the ID
	manifest.SetID(manifest.GetName())
	return manifest, nil
}

// BuiltinAgentSetNames lists the agent sets compiled into the binary.
func BuiltinAgentSetNames() []string {
	entries, err := builtinFS.ReadDir("agentsets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// BuiltinAgentSet loads a built-in agent set by name. An empty name selects
// DefaultAgentSetName.
func BuiltinAgentSet(name string) (*AgentSet, error) {
	if name == "" {
		name = DefaultAgentSetName
	}
	data, err := builtinFS.ReadFile("agentsets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown agent set %q (available: %s)", name, strings.Join(BuiltinAgentSetNames(), ", "))
	}
	return ParseAgentSet(data, builtinPrefix+name)
}

// ResolveAgentSet loads file when set, otherwise the named built-in set.
func ResolveAgentSet(name, file string) (*AgentSet, error) {
	if file != "" {
		return LoadAgentSet(file)
	}
	return BuiltinAgentSet(name)
}
