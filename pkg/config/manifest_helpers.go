package config

// K8s manifest interface implementation for AgentSetConfig
func (c *AgentSetConfig) GetAPIVersion() string {
	return c.APIVersion
}

func (c *AgentSetConfig) GetKind() string {
	return c.Kind
}

func (c *AgentSetConfig) GetName() string {
	return c.Metadata.Name
}

func (c *AgentSetConfig) SetID(id string) {
	c.Spec.ID = id
}

// K8s manifest interface implementation for AgentSetConfigK8s
func (c *AgentSetConfigK8s) GetAPIVersion() string {
	return c.APIVersion
}

func (c *AgentSetConfigK8s) GetKind() string {
	return c.Kind
}

func (c *AgentSetConfigK8s) GetName() string {
	return c.Metadata.Name
}

func (c *AgentSetConfigK8s) SetID(id string) {
	c.Spec.ID = id
}
