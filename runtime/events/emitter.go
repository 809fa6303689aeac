package events

import (
	"encoding/json"
	"time"

	"github.com/tccoin/museum-agent/runtime/transcript"
)

// Emitter provides helpers for publishing session events with shared metadata.
// A nil Emitter, or one without a bus, drops everything.
type Emitter struct {
	bus       *EventBus
	sessionID string
	now       func() time.Time
}

// NewEmitter creates a new event emitter.
func NewEmitter(bus *EventBus, sessionID string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID, now: time.Now}
}

// Bus returns the underlying bus.
func (e *Emitter) Bus() *EventBus {
	if e == nil {
		return nil
	}
	return e.bus
}

// emit publishes an event with shared context fields.
func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: e.now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

// ClientEvent emits a client.event for an outbound control message.
func (e *Emitter) ClientEvent(eventType, eventID string, payload json.RawMessage) {
	e.emit(EventClientEvent, ProtocolEventData{EventType: eventType, EventID: eventID, Payload: payload})
}

// ServerEvent emits a server.event for an inbound control message.
func (e *Emitter) ServerEvent(eventType, eventID string, payload json.RawMessage) {
	e.emit(EventServerEvent, ProtocolEventData{EventType: eventType, EventID: eventID, Payload: payload})
}

// StatusChanged emits the session.status_changed event.
func (e *Emitter) StatusChanged(from, to string, err error) {
	e.emit(EventStatusChanged, StatusChangedData{From: from, To: to, Error: err})
}

// ChannelOpened emits the channel.opened event.
func (e *Emitter) ChannelOpened(transport string) {
	e.emit(EventChannelOpened, ChannelEventData{Transport: transport})
}

// ChannelClosed emits the channel.closed event.
func (e *Emitter) ChannelClosed(transport string, err error) {
	e.emit(EventChannelClosed, ChannelEventData{Transport: transport, Error: err})
}

// TranscriptChanged emits transcript.item_added or transcript.item_updated.
func (e *Emitter) TranscriptChanged(item transcript.Item, added bool) {
	t := EventTranscriptItemUpdated
	if added {
		t = EventTranscriptItemAdded
	}
	e.emit(t, TranscriptItemData{Item: item})
}

// AgentSelected emits the agent.selected event.
func (e *Emitter) AgentSelected(from, to string) {
	e.emit(EventAgentSelected, AgentChangeData{From: from, To: to})
}

// HandoffCompleted emits the agent.handoff.completed event.
func (e *Emitter) HandoffCompleted(from, to, toolName, callID string) {
	e.emit(EventHandoffCompleted, AgentChangeData{From: from, To: to, ToolName: toolName, CallID: callID})
}

// HandoffFailed emits the agent.handoff.failed event.
func (e *Emitter) HandoffFailed(from, to, toolName, callID string, err error) {
	e.emit(EventHandoffFailed, AgentChangeData{From: from, To: to, ToolName: toolName, CallID: callID, Error: err})
}

// ToolCallStarted emits the tool.call.started event.
func (e *Emitter) ToolCallStarted(toolName, callID string, args json.RawMessage) {
	e.emit(EventToolCallStarted, ToolCallEventData{ToolName: toolName, CallID: callID, Args: args})
}

// ToolCallCompleted emits the tool.call.completed event.
func (e *Emitter) ToolCallCompleted(toolName, callID string, duration time.Duration, output string) {
	e.emit(EventToolCallCompleted, ToolCallEventData{
		ToolName: toolName,
		CallID:   callID,
		Duration: duration,
		Output:   output,
	})
}

// ToolCallFailed emits the tool.call.failed event.
func (e *Emitter) ToolCallFailed(toolName, callID string, duration time.Duration, err error) {
	e.emit(EventToolCallFailed, ToolCallEventData{
		ToolName: toolName,
		CallID:   callID,
		Duration: duration,
		Error:    err,
	})
}

// DispatchError emits the dispatch.error event.
func (e *Emitter) DispatchError(err error) {
	e.emit(EventDispatchError, ErrorData{Error: err})
}
