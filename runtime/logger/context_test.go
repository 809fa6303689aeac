package logger

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithAttempt(ctx, "2")
	ctx = WithAgent(ctx, "Fetch")
	ctx = WithModel(ctx, "gpt-4o-realtime-preview")
	ctx = WithTransport(ctx, "webrtc")
	ctx = WithCallID(ctx, "call_1")
	ctx = WithEnvironment(ctx, "test")

	got := ExtractLoggingFields(ctx)
	want := LoggingFields{
		SessionID:   "sess-1",
		Attempt:     "2",
		Agent:       "Fetch",
		Model:       "gpt-4o-realtime-preview",
		Transport:   "webrtc",
		CallID:      "call_1",
		Environment: "test",
	}
	if got != want {
		t.Errorf("ExtractLoggingFields() = %+v, want %+v", got, want)
	}
}

func TestWithLoggingContext(t *testing.T) {
	ctx := WithLoggingContext(context.Background(), &LoggingFields{
		SessionID: "sess-9",
		Agent:     "Curator",
	})

	got := ExtractLoggingFields(ctx)
	if got.SessionID != "sess-9" || got.Agent != "Curator" {
		t.Errorf("unexpected fields %+v", got)
	}
	if got.CallID != "" {
		t.Errorf("empty fields must not be set, got call id %q", got.CallID)
	}

	if WithLoggingContext(ctx, nil) != ctx {
		t.Error("nil fields should return the same context")
	}
}

func TestExtractLoggingFields_Empty(t *testing.T) {
	if got := ExtractLoggingFields(context.Background()); got != (LoggingFields{}) {
		t.Errorf("expected zero fields, got %+v", got)
	}
}
