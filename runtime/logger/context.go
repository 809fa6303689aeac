package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
// Values stored under these keys are added to every log entry made with the context.
const (
	// ContextKeySessionID identifies the realtime session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyAttempt identifies one connect attempt within a session.
	ContextKeyAttempt contextKey = "attempt"

	// ContextKeyAgent is the active agent name.
	ContextKeyAgent contextKey = "agent"

	// ContextKeyModel is the realtime model.
	ContextKeyModel contextKey = "model"

	// ContextKeyTransport is the transport kind (webrtc, websocket).
	ContextKeyTransport contextKey = "transport"

	// ContextKeyCallID identifies a model function call.
	ContextKeyCallID contextKey = "call_id"

	// ContextKeyEnvironment identifies the deployment environment.
	ContextKeyEnvironment contextKey = "environment"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyAttempt,
	ContextKeyAgent,
	ContextKeyModel,
	ContextKeyTransport,
	ContextKeyCallID,
	ContextKeyEnvironment,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithAttempt returns a new context with the connect attempt set.
func WithAttempt(ctx context.Context, attempt string) context.Context {
	return context.WithValue(ctx, ContextKeyAttempt, attempt)
}

// WithAgent returns a new context with the agent name set.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, ContextKeyAgent, agent)
}

// WithModel returns a new context with the model name set.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ContextKeyModel, model)
}

// WithTransport returns a new context with the transport kind set.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, ContextKeyTransport, transport)
}

// WithCallID returns a new context with the function call ID set.
func WithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, ContextKeyCallID, callID)
}

// WithEnvironment returns a new context with the environment set.
func WithEnvironment(ctx context.Context, environment string) context.Context {
	return context.WithValue(ctx, ContextKeyEnvironment, environment)
}

// LoggingFields holds all standard logging context fields.
type LoggingFields struct {
	SessionID   string
	Attempt     string
	Agent       string
	Model       string
	Transport   string
	CallID      string
	Environment string
}

// WithLoggingContext returns a new context with multiple logging fields set at once.
// Only non-empty values are set.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	set := func(key contextKey, v string) {
		if v != "" {
			ctx = context.WithValue(ctx, key, v)
		}
	}
	set(ContextKeySessionID, fields.SessionID)
	set(ContextKeyAttempt, fields.Attempt)
	set(ContextKeyAgent, fields.Agent)
	set(ContextKeyModel, fields.Model)
	set(ContextKeyTransport, fields.Transport)
	set(ContextKeyCallID, fields.CallID)
	set(ContextKeyEnvironment, fields.Environment)
	return ctx
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	get := func(key contextKey) string {
		s, _ := ctx.Value(key).(string)
		return s
	}
	return LoggingFields{
		SessionID:   get(ContextKeySessionID),
		Attempt:     get(ContextKeyAttempt),
		Agent:       get(ContextKeyAgent),
		Model:       get(ContextKeyModel),
		Transport:   get(ContextKeyTransport),
		CallID:      get(ContextKeyCallID),
		Environment: get(ContextKeyEnvironment),
	}
}
