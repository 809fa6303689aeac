package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tccoin/museum-agent/runtime/events"
)

// Span names.
const (
	SpanSession    = "museum.session"
	SpanConnection = "museum.connection"
	SpanTool       = "museum.tool"
)

// Status names as published in session.status_changed events.
const (
	statusConnected = "CONNECTED"
)

type spanEntry struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // parents child spans
}

// OTelEventListener converts session events into spans: one root span per
// session, one span per connected period and one per local tool call.
// Handoffs and dropped events become span events on the innermost open
// span. The bus delivers in publish order, so starts always precede ends.
type OTelEventListener struct {
	tracer trace.Tracer

	mu       sync.Mutex
	sessions map[string]*spanEntry // sessionID → root span
	inflight map[string]*spanEntry // "conn:<sessionID>" or "tool:<callID>"
}

// NewOTelEventListener creates a listener that creates spans from session events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:   tracer,
		sessions: make(map[string]*spanEntry),
		inflight: make(map[string]*spanEntry),
	}
}

// StartSession creates a root span for the session, parented under any span
// in parentCtx.
func (l *OTelEventListener) StartSession(parentCtx context.Context, sessionID string) {
	ctx, span := l.tracer.Start(parentCtx, SpanSession,
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	l.mu.Lock()
	l.sessions[sessionID] = &spanEntry{span: span, ctx: ctx}
	l.mu.Unlock()
}

// EndSession ends the session's root span and any span still open under it.
func (l *OTelEventListener) EndSession(sessionID string) {
	l.mu.Lock()
	root, ok := l.sessions[sessionID]
	delete(l.sessions, sessionID)
	conn, connOK := l.inflight[connKey(sessionID)]
	delete(l.inflight, connKey(sessionID))
	l.mu.Unlock()

	if connOK {
		conn.span.End()
	}
	if ok {
		root.span.End()
	}
}

// OnEvent handles a single session event. It can be passed to
// EventBus.SubscribeAll.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	//nolint:exhaustive // Only handling span-producing events
	switch evt.Type {
	case events.EventStatusChanged:
		if data, ok := evt.Data.(events.StatusChangedData); ok {
			l.handleStatus(evt, data)
		}
	case events.EventToolCallStarted:
		if data, ok := evt.Data.(events.ToolCallEventData); ok {
			l.startSpan(evt.SessionID, toolKey(data.CallID), SpanTool,
				attribute.String("tool.name", data.ToolName),
				attribute.String("tool.call_id", data.CallID),
			)
		}
	case events.EventToolCallCompleted:
		if data, ok := evt.Data.(events.ToolCallEventData); ok {
			l.endSpan(toolKey(data.CallID), nil, attribute.Int64("tool.duration_ms", data.Duration.Milliseconds()))
		}
	case events.EventToolCallFailed:
		if data, ok := evt.Data.(events.ToolCallEventData); ok {
			l.endSpan(toolKey(data.CallID), data.Error, attribute.Int64("tool.duration_ms", data.Duration.Milliseconds()))
		}
	case events.EventAgentSelected, events.EventHandoffCompleted, events.EventHandoffFailed:
		if data, ok := evt.Data.(events.AgentChangeData); ok {
			l.addEvent(evt.SessionID, string(evt.Type), data.Error,
				attribute.String("agent.from", data.From),
				attribute.String("agent.to", data.To),
				attribute.String("tool.name", data.ToolName),
			)
		}
	case events.EventDispatchError:
		if data, ok := evt.Data.(events.ErrorData); ok {
			l.addEvent(evt.SessionID, string(evt.Type), data.Error)
		}
	}
}

func (l *OTelEventListener) handleStatus(evt *events.Event, data events.StatusChangedData) {
	switch {
	case data.To == statusConnected:
		l.startSpan(evt.SessionID, connKey(evt.SessionID), SpanConnection)
	case data.From == statusConnected:
		l.endSpan(connKey(evt.SessionID), data.Error)
	}
}

// parentCtx returns the innermost open span context of the session.
func (l *OTelEventListener) parentCtx(sessionID string) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.inflight[connKey(sessionID)]; ok {
		return e.ctx
	}
	if e, ok := l.sessions[sessionID]; ok {
		return e.ctx
	}
	return context.Background()
}

func (l *OTelEventListener) startSpan(sessionID, key, name string, attrs ...attribute.KeyValue) {
	ctx, span := l.tracer.Start(l.parentCtx(sessionID), name, trace.WithAttributes(attrs...))
	l.mu.Lock()
	prev := l.inflight[key]
	l.inflight[key] = &spanEntry{span: span, ctx: ctx}
	l.mu.Unlock()
	if prev != nil {
		prev.span.End()
	}
}

func (l *OTelEventListener) endSpan(key string, err error, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	entry, ok := l.inflight[key]
	delete(l.inflight, key)
	l.mu.Unlock()
	if !ok {
		return
	}
	entry.span.SetAttributes(attrs...)
	if err != nil {
		entry.span.RecordError(err)
		entry.span.SetStatus(codes.Error, err.Error())
	} else {
		entry.span.SetStatus(codes.Ok, "")
	}
	entry.span.End()
}

func (l *OTelEventListener) addEvent(sessionID, name string, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(l.parentCtx(sessionID))
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func connKey(sessionID string) string { return "conn:" + sessionID }

func toolKey(callID string) string { return "tool:" + callID }
