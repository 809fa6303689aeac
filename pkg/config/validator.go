package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tccoin/museum-agent/runtime/agents"
	"github.com/tccoin/museum-agent/runtime/realtime"
)

// AgentSetValidator validates agent set consistency beyond what the JSON
// schema can express.
type AgentSetValidator struct {
	spec   *AgentSetSpec
	errors []error
	warns  []string
	// toolOwners maps a tool name to the first agent declaring it.
	toolOwners map[string]*agents.Agent
}

// NewAgentSetValidator creates a new agent set validator
func NewAgentSetValidator(spec *AgentSetSpec) *AgentSetValidator {
	return &AgentSetValidator{
		spec:       spec,
		errors:     make([]error, 0),
		warns:      make([]string, 0),
		toolOwners: make(map[string]*agents.Agent),
	}
}

// Validate performs semantic validation of the agent set
func (v *AgentSetValidator) Validate() error {
	v.validateAgents()
	v.validateDefault()
	v.validateReachability()

	if len(v.errors) > 0 {
		return fmt.Errorf("agent set validation failed with %d errors: %v", len(v.errors), v.errors)
	}
	return nil
}

// GetWarnings returns all validation warnings
func (v *AgentSetValidator) GetWarnings() []string {
	return v.warns
}

func (v *AgentSetValidator) validateAgents() {
	seen := make(map[string]bool)
	for i, a := range v.spec.Agents {
		if a == nil || a.Name == "" {
			v.errors = append(v.errors, fmt.Errorf("agent at index %d missing name", i))
			continue
		}
		if seen[a.Name] {
			v.errors = append(v.errors, fmt.Errorf("duplicate agent name: %s", a.Name))
		}
		seen[a.Name] = true

		if a.Voice != "" {
			if err := realtime.ValidateVoice(a.Voice); err != nil {
				v.errors = append(v.errors, fmt.Errorf("agent %s: %w", a.Name, err))
			}
		}
		if a.PublicDescription == "" && len(v.spec.Agents) > 1 {
			v.warns = append(v.warns, fmt.Sprintf("agent %s has no publicDescription; transfer tools to it will be vague", a.Name))
		}
		v.validateTools(a)
	}
}

func (v *AgentSetValidator) validateTools(a *agents.Agent) {
	names := make(map[string]bool)
	for _, tool := range a.Tools {
		if agents.IsTransferTool(tool.Name) {
			v.errors = append(v.errors, fmt.Errorf("agent %s: tool %s uses the reserved %s prefix",
				a.Name, tool.Name, agents.TransferToolPrefix))
		}
		if names[tool.Name] {
			v.errors = append(v.errors, fmt.Errorf("agent %s: duplicate tool %s", a.Name, tool.Name))
		}
		names[tool.Name] = true
		v.checkSharedTool(a, tool)

		if tool.Description == "" {
			v.warns = append(v.warns, fmt.Sprintf("agent %s: tool %s has no description", a.Name, tool.Name))
		}
		if tool.Parameters != nil {
			schema, err := json.Marshal(tool.Parameters)
			if err == nil {
				_, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
			}
			if err != nil {
				v.errors = append(v.errors, fmt.Errorf("agent %s: tool %s has an invalid parameter schema: %w",
					a.Name, tool.Name, err))
			}
		}
	}
}

// checkSharedTool requires agents that declare the same tool name to agree
// on its parameters; local tools are registered once per set.
func (v *AgentSetValidator) checkSharedTool(a *agents.Agent, tool realtime.ToolDefinition) {
	owner, ok := v.toolOwners[tool.Name]
	if !ok {
		v.toolOwners[tool.Name] = a
		return
	}
	if owner == a {
		return
	}
	for _, t := range owner.Tools {
		if t.Name == tool.Name && !reflect.DeepEqual(t.Parameters, tool.Parameters) {
			v.errors = append(v.errors, fmt.Errorf("agent %s: tool %s redeclares agent %s's tool with different parameters",
				a.Name, tool.Name, owner.Name))
			return
		}
	}
}

func (v *AgentSetValidator) validateDefault() {
	if v.spec.DefaultAgent == "" {
		return
	}
	for _, a := range v.spec.Agents {
		if a != nil && a.Name == v.spec.DefaultAgent {
			return
		}
	}
	v.errors = append(v.errors, fmt.Errorf("defaultAgent %s is not defined", v.spec.DefaultAgent))
}

// validateReachability warns about agents no handoff path from the default
// agent can reach.
func (v *AgentSetValidator) validateReachability() {
	if len(v.errors) > 0 || len(v.spec.Agents) < 2 {
		return
	}
	graph, err := agents.NewGraph(v.spec.Agents, v.spec.DefaultAgent)
	if err != nil {
		v.errors = append(v.errors, err)
		return
	}

	start := graph.Default().Name
	reached := []string{start}
	for queue := []string{start}; len(queue) > 0; queue = queue[1:] {
		for _, next := range graph.Neighbors(queue[0]) {
			if !slices.Contains(reached, next) {
				reached = append(reached, next)
				queue = append(queue, next)
			}
		}
	}
	for _, name := range graph.Names() {
		if !slices.Contains(reached, name) {
			v.warns = append(v.warns, fmt.Sprintf("agent %s is unreachable from %s", name, start))
		}
	}
}
