package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/agents"
	"github.com/tccoin/museum-agent/runtime/credentials"
	"github.com/tccoin/museum-agent/runtime/preferences"
	"github.com/tccoin/museum-agent/runtime/realtime"
	"github.com/tccoin/museum-agent/runtime/transport"
)

// fakeConn records outbound control messages and lets tests play server
// events into the session.
type fakeConn struct {
	mu       sync.Mutex
	sent     [][]byte
	open     bool
	closes   int
	handlers transport.Handlers
}

func (f *fakeConn) Kind() transport.Kind { return transport.KindWebSocket }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return &pkgerrors.ChannelNotOpenError{}
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeConn) Media() *transport.AudioRouter { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closes++
	return nil
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Types returns the type tag of every message sent since the last reset.
func (f *fakeConn) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, data := range f.sent {
		var ev struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(data, &ev)
		out = append(out, ev.Type)
	}
	return out
}

// Sent decodes the i-th message sent since the last reset.
func (f *fakeConn) Sent(t *testing.T, i int) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Less(t, i, len(f.sent))
	var out map[string]any
	require.NoError(t, json.Unmarshal(f.sent[i], &out))
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func (f *fakeConn) deliver(msg string) {
	f.handlers.OnMessage([]byte(msg))
}

func (f *fakeConn) remoteClose(err error) {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	f.handlers.OnClose(err)
}

type fakeEstablisher struct {
	conn *fakeConn
	err  error
	// block, when set, holds Establish until it is closed.
	block chan struct{}
	// ignoreCancel keeps a blocked Establish waiting after its context ends,
	// simulating a negotiation that completes after a disconnect.
	ignoreCancel bool

	calls      atomic.Int32
	credential atomic.Value
}

func (f *fakeEstablisher) Establish(ctx context.Context, credential string, h transport.Handlers) (transport.Connection, error) {
	f.calls.Add(1)
	f.credential.Store(credential)
	if f.block != nil {
		if f.ignoreCancel {
			<-f.block
		} else {
			select {
			case <-f.block:
			case <-ctx.Done():
				return nil, &pkgerrors.TransportError{Op: "offer", Cause: ctx.Err()}
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	f.conn.mu.Lock()
	f.conn.handlers = h
	f.conn.open = true
	f.conn.mu.Unlock()
	return f.conn, nil
}

func testGraph(t *testing.T) *agents.Graph {
	t.Helper()
	g, err := agents.NewGraph([]*agents.Agent{
		{
			Name:         "Fetch",
			Instructions: "You are Fetch, the museum greeter.",
			Tools:        []realtime.ToolDefinition{{Type: "function", Name: "lookup_artwork"}},
		},
		{
			Name:              "Quest",
			PublicDescription: "Runs the scavenger hunt.",
			Instructions:      "You are Quest.",
			Voice:             "sage",
			Handoffs:          []string{"Fetch"},
		},
		{
			Name:         "Vault",
			Instructions: "You are Vault.",
			Handoffs:     []string{},
		},
	}, "")
	require.NoError(t, err)
	return g
}

// newTestController builds a Controller over a fake transport. The greeting
// is disabled unless a test overrides GreetingDelay.
func newTestController(t *testing.T, opts ...func(*Config)) (*Controller, *fakeEstablisher) {
	t.Helper()
	est := &fakeEstablisher{conn: &fakeConn{}}
	cfg := Config{
		Graph:       testGraph(t),
		Establisher: est,
		Credentials: credentials.StaticSource("ek_test"),
		SessionID:   "sess-test",
		Preferences: preferences.NewMemoryStore(),

		GreetingDelay: -1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, est
}

// connected returns a CONNECTED controller with the initial sends cleared.
func connected(t *testing.T, opts ...func(*Config)) (*Controller, *fakeConn) {
	t.Helper()
	c, est := newTestController(t, opts...)
	require.NoError(t, c.Connect(context.Background()))
	est.conn.reset()
	return c, est.conn
}
