package agents

import (
	"errors"
	"fmt"
	"slices"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/realtime"
)

var (
	// ErrNoAgents is returned when a graph is built from an empty set.
	ErrNoAgents = errors.New("agent set contains no agents")
	// ErrNotTransferTool is returned when resolving a tool that is not a handoff.
	ErrNotTransferTool = errors.New("tool is not a transfer tool")
)

// Graph is the static handoff graph of an agent set. It is built once and is
// safe for concurrent reads.
type Graph struct {
	order     []string
	agents    map[string]*Agent
	edges     map[string][]string
	tools     map[string][]realtime.ToolDefinition
	toolNames map[string]string // transfer tool name -> target agent
	def       string
}

// NewGraph validates agents and builds the adjacency and the merged tool list
// of every agent. defaultAgent may be empty to select the first agent.
func NewGraph(agents []*Agent, defaultAgent string) (*Graph, error) {
	if len(agents) == 0 {
		return nil, ErrNoAgents
	}

	g := &Graph{
		agents:    make(map[string]*Agent, len(agents)),
		edges:     make(map[string][]string, len(agents)),
		tools:     make(map[string][]realtime.ToolDefinition, len(agents)),
		toolNames: make(map[string]string, len(agents)),
	}

	for _, a := range agents {
		if a == nil || a.Name == "" {
			return nil, errors.New("agent name is required")
		}
		if _, dup := g.agents[a.Name]; dup {
			return nil, fmt.Errorf("duplicate agent name %q", a.Name)
		}
		toolName := TransferToolName(a.Name)
		if other, clash := g.toolNames[toolName]; clash {
			return nil, fmt.Errorf("agents %q and %q map to the same transfer tool %q", other, a.Name, toolName)
		}
		g.agents[a.Name] = a
		g.toolNames[toolName] = a.Name
		g.order = append(g.order, a.Name)
	}

	for _, a := range agents {
		neighbors, err := g.neighborsOf(a)
		if err != nil {
			return nil, err
		}
		g.edges[a.Name] = neighbors
		merged, err := g.mergeTools(a, neighbors)
		if err != nil {
			return nil, err
		}
		g.tools[a.Name] = merged
	}

	g.def = g.order[0]
	if defaultAgent != "" {
		if _, ok := g.agents[defaultAgent]; !ok {
			return nil, &pkgerrors.UnknownPersonaError{Name: defaultAgent}
		}
		g.def = defaultAgent
	}
	return g, nil
}

func (g *Graph) neighborsOf(a *Agent) ([]string, error) {
	if a.Handoffs == nil {
		out := make([]string, 0, len(g.order)-1)
		for _, name := range g.order {
			if name != a.Name {
				out = append(out, name)
			}
		}
		return out, nil
	}
	out := make([]string, 0, len(a.Handoffs))
	for _, target := range a.Handoffs {
		if _, ok := g.agents[target]; !ok {
			return nil, fmt.Errorf("agent %q: handoff target %q does not exist", a.Name, target)
		}
		if target == a.Name {
			return nil, fmt.Errorf("agent %q: cannot hand off to itself", a.Name)
		}
		if !slices.Contains(out, target) {
			out = append(out, target)
		}
	}
	return out, nil
}

func (g *Graph) mergeTools(a *Agent, neighbors []string) ([]realtime.ToolDefinition, error) {
	merged := make([]realtime.ToolDefinition, 0, len(a.Tools)+len(neighbors))
	for _, t := range a.Tools {
		if IsTransferTool(t.Name) {
			return nil, fmt.Errorf("agent %q: tool %q uses the reserved prefix %q", a.Name, t.Name, TransferToolPrefix)
		}
		if t.Type == "" {
			t.Type = "function"
		}
		merged = append(merged, t)
	}
	for _, target := range neighbors {
		merged = append(merged, buildTransferTool(g.agents[target]))
	}
	return merged, nil
}

// Default returns the agent a session starts with.
func (g *Graph) Default() *Agent {
	return g.agents[g.def]
}

// Agent returns the agent with the given name.
func (g *Graph) Agent(name string) (*Agent, error) {
	a, ok := g.agents[name]
	if !ok {
		return nil, &pkgerrors.UnknownPersonaError{Name: name}
	}
	return a, nil
}

// Names returns agent names in configuration order.
func (g *Graph) Names() []string {
	return slices.Clone(g.order)
}

// Neighbors returns the agents name may transfer to.
func (g *Graph) Neighbors(name string) []string {
	return slices.Clone(g.edges[name])
}

// CanTransfer reports whether the edge from -> to exists.
func (g *Graph) CanTransfer(from, to string) bool {
	return slices.Contains(g.edges[from], to)
}

// Tools returns the merged tool list of an agent: its own tools followed by
// one transfer tool per neighbor.
func (g *Graph) Tools(name string) []realtime.ToolDefinition {
	return slices.Clone(g.tools[name])
}

// TransferTarget maps a transfer tool name back to its target agent.
func (g *Graph) TransferTarget(toolName string) (string, bool) {
	target, ok := g.toolNames[toolName]
	if !ok || !IsTransferTool(toolName) {
		return "", false
	}
	return target, true
}

// ResolveTransfer validates a handoff requested by the model while from is
// active. target may be empty, in which case it is derived from toolName.
//
// An unknown target yields UnknownPersonaError. A missing edge, or a tool the
// active agent was never given, yields UnauthorizedTransferError.
func (g *Graph) ResolveTransfer(from, toolName, target string) (*Agent, error) {
	if !IsTransferTool(toolName) {
		return nil, fmt.Errorf("%w: %s", ErrNotTransferTool, toolName)
	}
	if target == "" {
		name, ok := g.TransferTarget(toolName)
		if !ok {
			return nil, &pkgerrors.UnknownPersonaError{Name: toolName[len(TransferToolPrefix):]}
		}
		target = name
	}

	to, ok := g.agents[target]
	if !ok {
		return nil, &pkgerrors.UnknownPersonaError{Name: target}
	}
	if TransferToolName(target) != toolName || !g.CanTransfer(from, target) {
		return nil, &pkgerrors.UnauthorizedTransferError{From: from, To: target}
	}
	return to, nil
}
