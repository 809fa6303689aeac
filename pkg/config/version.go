package config

// Version constants for museum-agent manifests.
// These are the single source of truth for versioning across the codebase.
const (
	// APIVersion is the Kubernetes-style API version for museum-agent manifests
	APIVersion = "museum-agent.tccoin.github.io/v1alpha1"

	// SchemaVersion is the version string used in schema URLs and paths
	SchemaVersion = "v1alpha1"
)
