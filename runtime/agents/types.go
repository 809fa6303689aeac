// Package agents defines the cooperating personas of a realtime session and
// the static handoff graph between them.
//
// Each agent carries its own instructions, voice and tools. The graph is built
// once from configuration: an edge from A to B means A may hand the
// conversation to B, which the model triggers by calling A's synthesized
// transfer_to_<B> tool.
package agents

import "github.com/tccoin/museum-agent/runtime/realtime"

// Agent is an immutable persona once loaded into a Graph.
type Agent struct {
	Name              string                    `json:"name" yaml:"name"`
	PublicDescription string                    `json:"publicDescription,omitempty" yaml:"publicDescription,omitempty"`
	Instructions      string                    `json:"instructions" yaml:"instructions"`
	Voice             string                    `json:"voice,omitempty" yaml:"voice,omitempty"`
	Tools             []realtime.ToolDefinition `json:"tools,omitempty" yaml:"tools,omitempty"`
	// Handoffs lists the agents this agent may transfer to. Nil connects the
	// agent to every other agent in the set; an empty slice allows none.
	Handoffs []string `json:"handoffs,omitempty" yaml:"handoffs,omitempty"`
}

// Transfer tool argument names.
const (
	ArgRationale           = "rationale_for_transfer"
	ArgConversationContext = "conversation_context"
)

// TransferArgs are the arguments the model supplies with a transfer call.
type TransferArgs struct {
	Rationale           string `json:"rationale_for_transfer"`
	ConversationContext string `json:"conversation_context"`
}
