package agents

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tccoin/museum-agent/runtime/realtime"
)

// TransferToolPrefix prefixes every synthesized handoff tool.
const TransferToolPrefix = "transfer_to_"

var invalidToolChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// TransferToolName returns the name of the tool that transfers to target.
func TransferToolName(target string) string {
	return TransferToolPrefix + invalidToolChars.ReplaceAllString(target, "_")
}

// IsTransferTool reports whether name has the transfer tool prefix.
func IsTransferTool(name string) bool {
	return strings.HasPrefix(name, TransferToolPrefix)
}

// buildTransferTool creates the function definition for a handoff to target.
func buildTransferTool(target *Agent) realtime.ToolDefinition {
	description := fmt.Sprintf("Transfer the conversation to the %s agent.", target.Name)
	if target.PublicDescription != "" {
		description += " " + target.PublicDescription
	}
	return realtime.ToolDefinition{
		Type:        "function",
		Name:        TransferToolName(target.Name),
		Description: description,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				ArgRationale: map[string]any{
					"type":        "string",
					"description": "Why the conversation is being transferred.",
				},
				ArgConversationContext: map[string]any{
					"type":        "string",
					"description": "Summary of relevant context to carry forward to the next agent.",
				},
			},
			"required": []string{ArgRationale, ArgConversationContext},
		},
	}
}
