package prometheus

import (
	"sync"
	"time"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/events"
)

// Label values.
const (
	statusSuccess = "success"
	statusError   = "error"

	resultAuthError      = "auth_error"
	resultTransportError = "transport_error"
	resultAborted        = "aborted"

	kindHandoff = "handoff"
	kindManual  = "manual"

	directionClient = "client"
	directionServer = "server"
)

// Status names as published in session.status_changed events.
const (
	statusConnecting   = "CONNECTING"
	statusConnected    = "CONNECTED"
	statusDisconnected = "DISCONNECTED"
)

// MetricsListener records session events as Prometheus metrics. Register
// Handle with EventBus.SubscribeAll.
type MetricsListener struct {
	mu           sync.Mutex
	connectStart map[string]time.Time
}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{connectStart: make(map[string]time.Time)}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	//exhaustive:ignore
	switch event.Type {
	case events.EventStatusChanged:
		if data, ok := event.Data.(events.StatusChangedData); ok {
			l.handleStatus(event, data)
		}
	case events.EventClientEvent, events.EventServerEvent:
		if data, ok := event.Data.(events.ProtocolEventData); ok {
			direction := directionServer
			if event.Type == events.EventClientEvent {
				direction = directionClient
			}
			RecordControlEvent(direction, data.EventType)
		}
	case events.EventDispatchError:
		RecordDispatchError()
	case events.EventAgentSelected:
		if data, ok := event.Data.(events.AgentChangeData); ok {
			RecordAgentChange(data.From, data.To, kindManual, statusSuccess)
		}
	case events.EventHandoffCompleted:
		if data, ok := event.Data.(events.AgentChangeData); ok {
			RecordAgentChange(data.From, data.To, kindHandoff, statusSuccess)
		}
	case events.EventHandoffFailed:
		if data, ok := event.Data.(events.AgentChangeData); ok {
			RecordAgentChange(data.From, data.To, kindHandoff, statusError)
		}
	case events.EventToolCallCompleted:
		if data, ok := event.Data.(events.ToolCallEventData); ok {
			RecordToolCall(data.ToolName, statusSuccess, data.Duration.Seconds())
		}
	case events.EventToolCallFailed:
		if data, ok := event.Data.(events.ToolCallEventData); ok {
			RecordToolCall(data.ToolName, statusError, data.Duration.Seconds())
		}
	default:
	}
}

func (l *MetricsListener) handleStatus(event *events.Event, data events.StatusChangedData) {
	if data.From == statusConnected {
		RecordConnected(false)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case data.To == statusConnecting:
		l.connectStart[event.SessionID] = event.Timestamp
	case data.From == statusConnecting:
		start, ok := l.connectStart[event.SessionID]
		delete(l.connectStart, event.SessionID)
		if !ok {
			start = event.Timestamp
		}
		result := connectResult(data)
		RecordConnectAttempt(result, event.Timestamp.Sub(start).Seconds())
		if data.To == statusConnected {
			RecordConnected(true)
		}
	}
}

func connectResult(data events.StatusChangedData) string {
	if data.To == statusConnected {
		return statusSuccess
	}
	if _, ok := pkgerrors.AsAuthError(data.Error); ok {
		return resultAuthError
	}
	if _, ok := pkgerrors.AsTransportError(data.Error); ok {
		return resultTransportError
	}
	if data.To == statusDisconnected && data.Error == nil {
		return resultAborted
	}
	return statusError
}

// Listener returns Handle as an events.Listener.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
