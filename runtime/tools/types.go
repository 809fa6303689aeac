// Package tools executes the local function tools an agent exposes to the
// realtime model.
//
// A Registry maps tool names to a descriptor (JSON Schema for the arguments)
// and a Go handler. Arguments produced by the model are validated against the
// schema before the handler runs, and handler output is serialized back to the
// JSON string the model receives as the function call output.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tccoin/museum-agent/runtime/realtime"
)

// ToolDescriptor represents a normalized tool definition.
type ToolDescriptor struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty" yaml:"input_schema,omitempty"` // JSON Schema Draft-07
}

// DescriptorFromDefinition converts a realtime tool definition into a descriptor.
func DescriptorFromDefinition(def realtime.ToolDefinition) (*ToolDescriptor, error) {
	desc := &ToolDescriptor{Name: def.Name, Description: def.Description}
	if def.Parameters != nil {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshal parameters of %s: %w", def.Name, err)
		}
		desc.InputSchema = schema
	}
	return desc, nil
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
	ID   string          `json:"id"` // call_id assigned by the model
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	Name      string          `json:"name"`
	ID        string          `json:"id"`
	Result    json.RawMessage `json:"result,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
	Error     string          `json:"error,omitempty"`
}

// Output renders the result as the function_call_output string sent to the model.
func (r *ToolResult) Output() string {
	if r.Error != "" {
		data, _ := json.Marshal(map[string]string{"error": r.Error})
		return string(data)
	}
	if len(r.Result) == 0 {
		return "{}"
	}
	return string(r.Result)
}

// Handler executes one tool call. The returned value is marshaled to JSON.
type Handler interface {
	Handle(ctx context.Context, args json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Handle calls f(ctx, args).
func (f HandlerFunc) Handle(ctx context.Context, args json.RawMessage) (any, error) {
	return f(ctx, args)
}

// ValidationError represents a tool validation failure.
type ValidationError struct {
	Type   string `json:"type"` // "args_invalid" | "args_malformed"
	Tool   string `json:"tool"`
	Detail string `json:"detail"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s validation error (%s): %s", e.Tool, e.Type, e.Detail)
}
