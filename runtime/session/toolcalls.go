package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/agents"
	"github.com/tccoin/museum-agent/runtime/logger"
	"github.com/tccoin/museum-agent/runtime/realtime"
	"github.com/tccoin/museum-agent/runtime/tools"
)

// unhandledToolOutput answers calls no local handler claims, so the model
// can carry on.
const unhandledToolOutput = `{"result":true}`

type pendingToolCall struct {
	args strings.Builder
}

func (c *Controller) appendArgumentsLocked(callID, delta string) {
	if callID == "" {
		return
	}
	if _, done := c.dispatched[callID]; done {
		return
	}
	p, ok := c.pending[callID]
	if !ok {
		p = &pendingToolCall{}
		c.pending[callID] = p
	}
	p.args.WriteString(delta)
}

// handleFunctionCallLocked runs a completed function call exactly once per
// call id, whether it is first seen in arguments.done or response.done.
func (c *Controller) handleFunctionCallLocked(callID, name, args string) {
	if callID == "" || name == "" {
		logger.Warn("function call without id or name", "call_id", callID, "name", name)
		return
	}
	if _, done := c.dispatched[callID]; done {
		return
	}
	c.dispatched[callID] = struct{}{}
	if p, ok := c.pending[callID]; ok {
		if args == "" {
			args = p.args.String()
		}
		delete(c.pending, callID)
	}
	if args == "" {
		args = "{}"
	}
	raw := json.RawMessage(args)
	if !json.Valid(raw) {
		raw = mustJSON(args)
	}

	logger.Info("function call", "session_id", c.cfg.SessionID, "tool", name, "call_id", callID)
	c.transcript.AddBreadcrumb("function call: "+name, map[string]any{"arguments": args})
	c.emitter.ToolCallStarted(name, callID, raw)

	if agents.IsTransferTool(name) {
		c.handoffLocked(callID, name, args)
		return
	}
	c.runToolLocked(callID, name, raw)
}

// runToolLocked executes a local tool without holding the lock and reports
// the result if the connection that requested it is still current.
func (c *Controller) runToolLocked(callID, name string, args json.RawMessage) {
	gen := c.generation
	ctx := logger.WithCallID(c.connCtx, callID)
	registry := c.cfg.Tools

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()
		output, err := executeTool(ctx, registry, tools.ToolCall{Name: name, Args: args, ID: callID})
		duration := time.Since(start)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.emitter.ToolCallFailed(name, callID, duration, err)
		} else {
			c.emitter.ToolCallCompleted(name, callID, duration, output)
		}
		if c.generation != gen {
			logger.Debug("discarding tool result for closed connection", "tool", name, "call_id", callID)
			return
		}
		c.transcript.AddBreadcrumb("function call result: "+name, map[string]any{"output": output})
		c.sendToolOutputLocked(callID, output, true)
	}()
}

// executeTool returns the function_call_output for one call. Handler
// failures are reported to the model in the output and also returned.
func executeTool(ctx context.Context, registry *tools.Registry, call tools.ToolCall) (string, error) {
	if registry == nil || !registry.HasHandler(call.Name) {
		logger.Debug("no handler for tool, answering default result", "tool", call.Name)
		return unhandledToolOutput, nil
	}
	result, err := registry.Execute(ctx, call)
	if errors.Is(err, pkgerrors.ErrToolNotRegistered) {
		return unhandledToolOutput, nil
	}
	if err != nil {
		return string(mustJSON(map[string]string{"error": err.Error()})), err
	}
	if result.Error != "" {
		return result.Output(), errors.New(result.Error)
	}
	return result.Output(), nil
}

func (c *Controller) sendToolOutputLocked(callID, output string, respond bool) {
	if err := c.sendLocked(realtime.NewFunctionCallOutput(callID, output), ""); err != nil {
		return
	}
	if respond {
		_ = c.sendLocked(realtime.NewResponseCreate(), "")
	}
}
