// Package session is the realtime session engine. A Controller owns the
// connection lifecycle and the Session state; its Dispatcher folds inbound
// server events into the transcript; its TurnController implements
// push-to-talk and barge-in; model-invoked tool calls are routed either to
// the agent handoff graph or to the local tool registry.
//
// Every public operation and every inbound event runs under the
// Controller's mutex, so the session behaves as a single logical thread.
// Credential fetch, transport negotiation, the greeting delay and tool
// execution run with the mutex released and re-check the connect attempt's
// generation when they resume.
package session

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tccoin/museum-agent/runtime/agents"
	"github.com/tccoin/museum-agent/runtime/credentials"
	"github.com/tccoin/museum-agent/runtime/events"
	"github.com/tccoin/museum-agent/runtime/preferences"
	"github.com/tccoin/museum-agent/runtime/tools"
	"github.com/tccoin/museum-agent/runtime/transport"
)

// Status is the connection status of a session.
type Status string

// Connection statuses.
const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusConnected    Status = "CONNECTED"
)

// DefaultGreetingDelay separates the first configuration push from the
// response.create that produces the opening turn.
const DefaultGreetingDelay = time.Second

// Session is the mutable state of one conversation. Fields have a single
// writer each; everything else only reads them:
//
//	Status, Voice, Speed, PushToTalk, AudioPlayback   Controller
//	Agent                                             Controller (SelectAgent) and the handoff coordinator
//	OutputAudioActive                                 Dispatcher (server confirmation) and TurnController (cancel)
//	UserSpeaking                                      TurnController, cleared by the Controller on disconnect
//
// Transcript contents are not part of the Session and are never cleared
// by the engine.
type Session struct {
	ID                string
	RemoteSessionID   string
	Status            Status
	Agent             *agents.Agent
	Voice             string
	Speed             float64
	PushToTalk        bool
	AudioPlayback     bool
	LogsExpanded      bool
	OutputAudioActive bool
	UserSpeaking      bool
}

// StatusFunc observes status changes. It runs on the event bus worker, never
// under the Controller's lock, so it may call back into the Controller.
type StatusFunc func(from, to Status, err error)

// Config configures a Controller.
type Config struct {
	// Graph holds the loaded agent set. Required.
	Graph *agents.Graph
	// Establisher opens the transport. Required.
	Establisher transport.Establisher
	// Credentials issues the short-lived secret for each connect. Required.
	Credentials credentials.Source

	// SessionID defaults to a random UUID.
	SessionID string
	// Agent selects the initial agent; defaults to the graph's default.
	Agent string
	// Voice defaults to the initial agent's voice, then realtime.DefaultVoice.
	Voice string
	// Speed defaults to realtime.DefaultSpeed.
	Speed              float64
	TranscriptionModel string

	// GreetingDelay defaults to DefaultGreetingDelay. A negative delay
	// disables the opening response.
	GreetingDelay time.Duration

	// Tools executes non-transfer function calls. Calls without a handler
	// are answered with {"result":true}.
	Tools *tools.Registry
	// Preferences are read once by New and written on every change.
	Preferences preferences.Store
	// Bus receives every session event. New creates a private bus when nil.
	Bus *events.EventBus
	// TracerProvider traces connect attempts; nil uses the global provider.
	TracerProvider trace.TracerProvider

	// PlaybackSink receives remote audio while playback is enabled.
	PlaybackSink transport.AudioSink
	// Recorder, when set, captures remote audio once it starts flowing.
	Recorder Recorder

	OnStatusChange StatusFunc
}

func (c *Config) validate() error {
	var errs []error
	if c.Graph == nil {
		errs = append(errs, errors.New("agent graph is required"))
	}
	if c.Establisher == nil {
		errs = append(errs, errors.New("transport establisher is required"))
	}
	if c.Credentials == nil {
		errs = append(errs, errors.New("credential source is required"))
	}
	return errors.Join(errs...)
}
