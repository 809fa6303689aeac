package session

import (
	"encoding/json"
	"time"

	"github.com/tccoin/museum-agent/runtime/agents"
	"github.com/tccoin/museum-agent/runtime/logger"
)

type transferOutput struct {
	DestinationAgent string `json:"destination_agent,omitempty"`
	DidTransfer      bool   `json:"did_transfer"`
	Error            string `json:"error,omitempty"`
}

// handoffLocked applies a model-requested transfer. A rejected transfer
// leaves the active agent untouched and lets the model continue; an accepted
// one answers the call, then reconfigures the session for the new agent,
// whose greeting replaces the usual response.create.
func (c *Controller) handoffLocked(callID, toolName, args string) {
	start := time.Now()
	from := c.state.Agent.Name

	var targs agents.TransferArgs
	if err := json.Unmarshal([]byte(args), &targs); err != nil {
		logger.Debug("transfer arguments not decodable", "call_id", callID, "error", err)
	}

	to, err := c.graph.ResolveTransfer(from, toolName, "")
	if err != nil {
		logger.Warn("handoff rejected", "session_id", c.cfg.SessionID, "from", from, "tool", toolName, "error", err)
		target, _ := c.graph.TransferTarget(toolName)
		c.emitter.HandoffFailed(from, target, toolName, callID, err)
		c.emitter.ToolCallFailed(toolName, callID, time.Since(start), err)

		output := string(mustJSON(transferOutput{DidTransfer: false, Error: err.Error()}))
		c.transcript.AddBreadcrumb("function call result: "+toolName, map[string]any{
			"output": output,
			"error":  err.Error(),
		})
		c.sendToolOutputLocked(callID, output, true)
		return
	}

	logger.Info("handoff", "session_id", c.cfg.SessionID, "from", from, "to", to.Name,
		"rationale", targs.Rationale)
	c.emitter.HandoffCompleted(from, to.Name, toolName, callID)

	output := string(mustJSON(transferOutput{DestinationAgent: to.Name, DidTransfer: true}))
	c.emitter.ToolCallCompleted(toolName, callID, time.Since(start), output)
	c.transcript.AddBreadcrumb("function call result: "+toolName, map[string]any{"output": output})
	c.sendToolOutputLocked(callID, output, false)
	c.activateAgentLocked(to)
}
