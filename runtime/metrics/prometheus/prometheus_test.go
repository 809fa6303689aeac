package prometheus

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/events"
)

func resetAll() {
	sessionsConnected.Set(0)
	connectDuration.Reset()
	connectAttemptsTotal.Reset()
	controlEventsTotal.Reset()
	agentChangesTotal.Reset()
	toolCallDuration.Reset()
	toolCallsTotal.Reset()
}

func statusEvent(session, from, to string, at time.Time, err error) *events.Event {
	return &events.Event{
		Type:      events.EventStatusChanged,
		SessionID: session,
		Timestamp: at,
		Data:      events.StatusChangedData{From: from, To: to, Error: err},
	}
}

func TestListener_ConnectLifecycle(t *testing.T) {
	resetAll()
	l := NewMetricsListener()
	t0 := time.Now()

	l.Handle(statusEvent("s1", "DISCONNECTED", "CONNECTING", t0, nil))
	l.Handle(statusEvent("s1", "CONNECTING", "CONNECTED", t0.Add(2*time.Second), nil))

	if got := testutil.ToFloat64(sessionsConnected); got != 1 {
		t.Errorf("Expected 1 connected session, got %f", got)
	}
	if got := testutil.ToFloat64(connectAttemptsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 successful attempt, got %f", got)
	}

	l.Handle(statusEvent("s1", "CONNECTED", "DISCONNECTED", t0.Add(time.Minute), nil))
	if got := testutil.ToFloat64(sessionsConnected); got != 0 {
		t.Errorf("Expected 0 connected sessions, got %f", got)
	}
}

func TestListener_ConnectFailures(t *testing.T) {
	resetAll()
	l := NewMetricsListener()
	t0 := time.Now()

	cases := []struct {
		err    error
		result string
	}{
		{&pkgerrors.AuthError{StatusCode: 401}, "auth_error"},
		{&pkgerrors.TransportError{Op: "answer", Cause: errors.New("boom")}, "transport_error"},
		{nil, "aborted"},
		{errors.New("other"), "error"},
	}
	for _, c := range cases {
		l.Handle(statusEvent("s2", "DISCONNECTED", "CONNECTING", t0, nil))
		l.Handle(statusEvent("s2", "CONNECTING", "DISCONNECTED", t0.Add(time.Second), c.err))
		if got := testutil.ToFloat64(connectAttemptsTotal.WithLabelValues(c.result)); got != 1 {
			t.Errorf("Expected 1 %s attempt, got %f", c.result, got)
		}
	}
	if got := testutil.ToFloat64(sessionsConnected); got != 0 {
		t.Errorf("Expected no connected sessions, got %f", got)
	}
}

func TestListener_ProtocolAndAgents(t *testing.T) {
	resetAll()
	l := NewMetricsListener()

	l.Handle(&events.Event{Type: events.EventClientEvent, Data: events.ProtocolEventData{EventType: "response.create"}})
	l.Handle(&events.Event{Type: events.EventServerEvent, Data: events.ProtocolEventData{EventType: "response.done"}})
	l.Handle(&events.Event{Type: events.EventServerEvent, Data: events.ProtocolEventData{EventType: "response.done"}})
	l.Handle(&events.Event{Type: events.EventHandoffCompleted, Data: events.AgentChangeData{From: "Fetch", To: "Quest"}})
	l.Handle(&events.Event{Type: events.EventHandoffFailed, Data: events.AgentChangeData{From: "Fetch", To: "Ghost"}})
	l.Handle(&events.Event{Type: events.EventAgentSelected, Data: events.AgentChangeData{From: "Quest", To: "Fetch"}})

	if got := testutil.ToFloat64(controlEventsTotal.WithLabelValues("client", "response.create")); got != 1 {
		t.Errorf("Expected 1 client event, got %f", got)
	}
	if got := testutil.ToFloat64(controlEventsTotal.WithLabelValues("server", "response.done")); got != 2 {
		t.Errorf("Expected 2 server events, got %f", got)
	}
	if got := testutil.ToFloat64(agentChangesTotal.WithLabelValues("Fetch", "Quest", "handoff", "success")); got != 1 {
		t.Errorf("Expected 1 handoff, got %f", got)
	}
	if got := testutil.ToFloat64(agentChangesTotal.WithLabelValues("Fetch", "Ghost", "handoff", "error")); got != 1 {
		t.Errorf("Expected 1 failed handoff, got %f", got)
	}
	if got := testutil.ToFloat64(agentChangesTotal.WithLabelValues("Quest", "Fetch", "manual", "success")); got != 1 {
		t.Errorf("Expected 1 manual selection, got %f", got)
	}
}

func TestListener_DispatchErrorsAndTools(t *testing.T) {
	resetAll()
	before := testutil.ToFloat64(dispatchErrorsTotal)
	l := NewMetricsListener()

	l.Handle(&events.Event{Type: events.EventDispatchError, Data: events.ErrorData{Error: errors.New("bad")}})
	l.Handle(&events.Event{Type: events.EventToolCallCompleted, Data: events.ToolCallEventData{ToolName: "show_image", Duration: 10 * time.Millisecond}})
	l.Handle(&events.Event{Type: events.EventToolCallFailed, Data: events.ToolCallEventData{ToolName: "show_image", Duration: time.Second}})
	l.Handle(&events.Event{Type: events.EventTranscriptItemAdded})

	if got := testutil.ToFloat64(dispatchErrorsTotal) - before; got != 1 {
		t.Errorf("Expected 1 dispatch error, got %f", got)
	}
	if got := testutil.ToFloat64(toolCallsTotal.WithLabelValues("show_image", "success")); got != 1 {
		t.Errorf("Expected 1 successful tool call, got %f", got)
	}
	if got := testutil.ToFloat64(toolCallsTotal.WithLabelValues("show_image", "error")); got != 1 {
		t.Errorf("Expected 1 failed tool call, got %f", got)
	}
	if count := testutil.CollectAndCount(toolCallDuration); count == 0 {
		t.Error("Expected tool call histogram observations")
	}
}

func TestListener_ThroughBus(t *testing.T) {
	resetAll()
	bus := events.NewEventBus()
	unsubscribe := bus.SubscribeAll(NewMetricsListener().Listener())
	defer unsubscribe()

	em := events.NewEmitter(bus, "s4")
	em.ClientEvent("session.update", "evt_1", nil)
	bus.Close()

	if got := testutil.ToFloat64(controlEventsTotal.WithLabelValues("client", "session.update")); got != 1 {
		t.Errorf("Expected 1 session.update, got %f", got)
	}
}

func TestExporter_Handler(t *testing.T) {
	resetAll()
	RecordControlEvent("client", "response.cancel")

	e := NewExporter(":0")
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "museum_agent_control_events_total") {
		t.Errorf("Expected session metrics in output, got:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("Expected Go runtime metrics in output")
	}
}

func TestExporter_ServeAndShutdown(t *testing.T) {
	e := NewExporterWithRegistry("", prometheus.NewRegistry())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Serve(ln) }()

	var addr net.Addr
	for i := 0; i < 100 && addr == nil; i++ {
		addr = e.Addr()
		time.Sleep(10 * time.Millisecond)
	}
	if addr == nil {
		t.Fatal("exporter never bound")
	}

	resp, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("Expected ok, got %q", body)
	}

	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("Expected ErrServerClosed, got %v", err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
}
