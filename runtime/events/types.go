package events

import (
	"encoding/json"
	"time"

	"github.com/tccoin/museum-agent/runtime/transcript"
)

// EventType identifies the type of event emitted by the session engine.
type EventType string

const (
	// EventClientEvent marks a control message sent to the model.
	EventClientEvent EventType = "client.event"
	// EventServerEvent marks a control message received from the model.
	EventServerEvent EventType = "server.event"

	// EventStatusChanged marks a connection status transition.
	EventStatusChanged EventType = "session.status_changed"

	// EventChannelOpened marks the control channel becoming ready.
	EventChannelOpened EventType = "channel.opened"
	// EventChannelClosed marks the control channel closing.
	EventChannelClosed EventType = "channel.closed"

	// EventTranscriptItemAdded marks a new transcript item.
	EventTranscriptItemAdded EventType = "transcript.item_added"
	// EventTranscriptItemUpdated marks a change to an existing transcript item.
	EventTranscriptItemUpdated EventType = "transcript.item_updated"

	// EventAgentSelected marks a manual agent change.
	EventAgentSelected EventType = "agent.selected"
	// EventHandoffCompleted marks a successful model-initiated handoff.
	EventHandoffCompleted EventType = "agent.handoff.completed"
	// EventHandoffFailed marks a rejected handoff.
	EventHandoffFailed EventType = "agent.handoff.failed"

	// EventToolCallStarted marks tool call start.
	EventToolCallStarted EventType = "tool.call.started"
	// EventToolCallCompleted marks tool call completion.
	EventToolCallCompleted EventType = "tool.call.completed"
	// EventToolCallFailed marks tool call failure.
	EventToolCallFailed EventType = "tool.call.failed"

	// EventDispatchError marks an inbound event that was dropped.
	EventDispatchError EventType = "dispatch.error"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a session event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	// Sequence is assigned by the bus in publish order.
	Sequence int64
	Data     EventData
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// ProtocolEventData carries one control-channel message, in either direction.
type ProtocolEventData struct {
	baseEventData
	EventType string          `json:"event_type"`
	EventID   string          `json:"event_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// StatusChangedData describes a connection status transition.
type StatusChangedData struct {
	baseEventData
	From  string `json:"from"`
	To    string `json:"to"`
	Error error  `json:"-"`
}

// ChannelEventData describes a control channel lifecycle change.
type ChannelEventData struct {
	baseEventData
	Transport string `json:"transport"`
	Error     error  `json:"-"`
}

// TranscriptItemData carries a snapshot of a transcript item.
type TranscriptItemData struct {
	baseEventData
	Item transcript.Item `json:"item"`
}

// AgentChangeData describes a change of the active agent.
type AgentChangeData struct {
	baseEventData
	From     string `json:"from"`
	To       string `json:"to"`
	ToolName string `json:"tool_name,omitempty"`
	CallID   string `json:"call_id,omitempty"`
	Error    error  `json:"-"`
}

// ToolCallEventData is the unified payload for all tool call lifecycle events
// (started, completed, failed). Fields like Duration, Error, Output are
// zero-valued when not applicable to the current phase.
type ToolCallEventData struct {
	baseEventData
	ToolName string          `json:"tool_name"`
	CallID   string          `json:"call_id"`
	Args     json.RawMessage `json:"args,omitempty"` // Set on started
	Duration time.Duration   `json:"duration,omitempty"`
	Output   string          `json:"output,omitempty"` // Set on completed
	Error    error           `json:"-"`                // Set on failed
}

// ErrorData carries a contained failure.
type ErrorData struct {
	baseEventData
	Error error `json:"-"`
}
