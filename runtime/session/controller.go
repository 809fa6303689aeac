package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/agents"
	"github.com/tccoin/museum-agent/runtime/events"
	"github.com/tccoin/museum-agent/runtime/logger"
	"github.com/tccoin/museum-agent/runtime/preferences"
	"github.com/tccoin/museum-agent/runtime/realtime"
	"github.com/tccoin/museum-agent/runtime/telemetry"
	"github.com/tccoin/museum-agent/runtime/transcript"
	"github.com/tccoin/museum-agent/runtime/transport"
)

// Controller drives one realtime session through
// DISCONNECTED -> CONNECTING -> CONNECTED -> DISCONNECTED.
type Controller struct {
	cfg        Config
	graph      *agents.Graph
	transcript *transcript.Transcript
	emitter    *events.Emitter
	tracer     trace.Tracer
	ownsBus    bool
	unsubs     []func()

	dispatcher *Dispatcher
	turns      *TurnController

	mu    sync.Mutex
	state Session
	// generation identifies the current connect attempt. Teardown bumps it
	// so late completions of an abandoned attempt are discarded.
	generation uint64
	cancel     context.CancelFunc
	conn       transport.Connection
	connCtx    context.Context //nolint:containedctx // lifetime of the current connection
	timers     []*time.Timer
	pending    map[string]*pendingToolCall
	dispatched map[string]struct{}
	recording  *transport.AudioRouter

	eventSeq atomic.Int64
	wg       sync.WaitGroup
}

// New creates a Controller in DISCONNECTED state. Preferences are read here
// and only here.
func New(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	agent := cfg.Graph.Default()
	if cfg.Agent != "" {
		a, err := cfg.Graph.Agent(cfg.Agent)
		if err != nil {
			return nil, err
		}
		agent = a
	}
	voice := cfg.Voice
	if voice == "" {
		voice = agent.Voice
	}
	if voice == "" {
		voice = realtime.DefaultVoice
	}
	if err := realtime.ValidateVoice(voice); err != nil {
		return nil, err
	}
	if cfg.Speed == 0 {
		cfg.Speed = realtime.DefaultSpeed
	}
	if err := realtime.ValidateSpeed(cfg.Speed); err != nil {
		return nil, err
	}
	if cfg.GreetingDelay == 0 {
		cfg.GreetingDelay = DefaultGreetingDelay
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	c := &Controller{
		cfg:        cfg,
		graph:      cfg.Graph,
		tracer:     telemetry.Tracer(cfg.TracerProvider),
		connCtx:    logger.WithSessionID(context.Background(), cfg.SessionID),
		pending:    make(map[string]*pendingToolCall),
		dispatched: make(map[string]struct{}),
	}

	bus := cfg.Bus
	if bus == nil {
		bus = events.NewEventBus()
		c.ownsBus = true
	}
	c.emitter = events.NewEmitter(bus, cfg.SessionID)
	c.transcript = transcript.New(transcript.WithChangeFunc(c.emitter.TranscriptChanged))
	if cfg.OnStatusChange != nil {
		fn := cfg.OnStatusChange
		c.unsubs = append(c.unsubs, bus.Subscribe(events.EventStatusChanged, func(e *events.Event) {
			if data, ok := e.Data.(events.StatusChangedData); ok && e.SessionID == cfg.SessionID {
				fn(Status(data.From), Status(data.To), data.Error)
			}
		}))
	}
	c.dispatcher = newDispatcher(c)
	c.turns = &TurnController{c: c}

	prefs := preferences.Load(context.Background(), cfg.Preferences)
	c.state = Session{
		ID:            cfg.SessionID,
		Status:        StatusDisconnected,
		Agent:         agent,
		Voice:         voice,
		Speed:         cfg.Speed,
		PushToTalk:    prefs.PushToTalk,
		AudioPlayback: prefs.AudioPlayback,
		LogsExpanded:  prefs.LogsExpanded,
	}
	return c, nil
}

// ID returns the session id.
func (c *Controller) ID() string { return c.cfg.SessionID }

// Transcript returns the session transcript. The owner decides when to
// clear it.
func (c *Controller) Transcript() *transcript.Transcript { return c.transcript }

// Bus returns the event bus the session publishes on.
func (c *Controller) Bus() *events.EventBus { return c.emitter.Bus() }

// Graph returns the loaded agent graph.
func (c *Controller) Graph() *agents.Graph { return c.graph }

// Dispatcher returns the inbound event dispatcher.
func (c *Controller) Dispatcher() *Dispatcher { return c.dispatcher }

// Turns returns the turn and interruption controller.
func (c *Controller) Turns() *TurnController { return c.turns }

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the connection status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Status
}

// Connect opens the session. It is a no-op unless the session is
// DISCONNECTED. Credential failures return an *errors.AuthError and
// transport failures an *errors.TransportError or AuthError; in both cases
// the session returns to DISCONNECTED. A Disconnect during the attempt makes
// Connect return errors.ErrConnectAborted.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Status != StatusDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	gen := c.generation
	attemptCtx, cancel := context.WithCancel(ctx)
	connCtx, connCancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = func() {
		cancel()
		connCancel()
	}
	c.connCtx = logger.WithSessionID(connCtx, c.cfg.SessionID)
	agentName := c.state.Agent.Name
	c.setStatusLocked(StatusConnecting, nil)
	c.mu.Unlock()

	spanCtx, span := c.tracer.Start(attemptCtx, "museum.connect", trace.WithAttributes(
		attribute.String("session.id", c.cfg.SessionID),
		attribute.String("agent.name", agentName),
	))
	defer span.End()

	credential, err := c.cfg.Credentials.FetchCredential(spanCtx)
	if err == nil && credential == "" {
		err = pkgerrors.ErrNoCredential
	}
	if err != nil {
		if _, ok := pkgerrors.AsAuthError(err); !ok {
			err = &pkgerrors.AuthError{Cause: err}
		}
		return c.failAttempt(gen, span, err)
	}
	if c.stale(gen) {
		return pkgerrors.ErrConnectAborted
	}

	conn, err := c.cfg.Establisher.Establish(spanCtx, credential, transport.Handlers{
		OnMessage: func(data []byte) { c.handleMessage(gen, data) },
		OnClose:   func(err error) { c.handleRemoteClose(gen, err) },
	})
	if err != nil {
		return c.failAttempt(gen, span, err)
	}

	c.mu.Lock()
	if c.generation != gen || c.state.Status != StatusConnecting {
		c.mu.Unlock()
		_ = conn.Close()
		span.SetStatus(codes.Error, pkgerrors.ErrConnectAborted.Error())
		return pkgerrors.ErrConnectAborted
	}
	c.conn = conn
	span.SetAttributes(attribute.String("transport", string(conn.Kind())))
	c.onChannelOpenLocked(gen)
	c.mu.Unlock()

	span.SetStatus(codes.Ok, "")
	return nil
}

// stale reports whether gen is no longer the current attempt.
func (c *Controller) stale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != gen
}

func (c *Controller) failAttempt(gen uint64, span trace.Span, err error) error {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		span.SetStatus(codes.Error, pkgerrors.ErrConnectAborted.Error())
		return pkgerrors.ErrConnectAborted
	}
	logger.Error("connect failed", "session_id", c.cfg.SessionID, "error", err)
	cleanup := c.teardownLocked(err)
	c.mu.Unlock()
	cleanup()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// onChannelOpenLocked completes CONNECTING -> CONNECTED: playback routing,
// the agent breadcrumb, the full configuration push and the delayed
// opening response.
func (c *Controller) onChannelOpenLocked(gen uint64) {
	c.setStatusLocked(StatusConnected, nil)
	c.emitter.ChannelOpened(string(c.conn.Kind()))
	logger.Info("control channel open", "session_id", c.cfg.SessionID, "transport", c.conn.Kind())

	if router := c.conn.Media(); router != nil {
		if c.cfg.PlaybackSink != nil {
			router.SetPlaybackSink(c.cfg.PlaybackSink)
		}
		router.SetPlaybackEnabled(c.state.AudioPlayback)
		c.watchRemoteAudioLocked(gen, router)
	}

	c.agentBreadcrumbLocked(c.state.Agent)
	c.pushConfigLocked()
	c.scheduleGreetingLocked(gen)
}

// Disconnect closes the session. It is idempotent and safe to call while
// Connect is in flight.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	if c.state.Status == StatusDisconnected {
		c.mu.Unlock()
		return
	}
	cleanup := c.teardownLocked(nil)
	c.mu.Unlock()
	cleanup()
	logger.Info("disconnected", "session_id", c.cfg.SessionID)
}

// Close disconnects, waits for background work and releases the private
// event bus, if any.
func (c *Controller) Close() {
	c.Disconnect()
	c.wg.Wait()
	for _, unsub := range c.unsubs {
		unsub()
	}
	if c.ownsBus {
		c.emitter.Bus().Close()
	}
}

// teardownLocked moves to DISCONNECTED and invalidates the current attempt.
// The returned func releases the transport and the recorder and must be
// called without the lock.
func (c *Controller) teardownLocked(cause error) func() {
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.pending = make(map[string]*pendingToolCall)
	c.dispatched = make(map[string]struct{})

	conn := c.conn
	c.conn = nil
	recording := c.recording
	c.recording = nil

	c.state.OutputAudioActive = false
	c.state.UserSpeaking = false
	c.state.RemoteSessionID = ""
	c.setStatusLocked(StatusDisconnected, cause)
	if conn != nil {
		c.emitter.ChannelClosed(string(conn.Kind()), cause)
	}

	rec := c.cfg.Recorder
	return func() {
		if recording != nil {
			recording.RemoveTap(recorderTap)
			if err := rec.Stop(); err != nil {
				logger.Warn("recorder stop failed", "error", err)
			}
		}
		if conn != nil {
			if err := conn.Close(); err != nil {
				logger.Debug("transport close", "error", err)
			}
		}
	}
}

func (c *Controller) handleMessage(gen uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	c.dispatcher.dispatchLocked(data)
}

func (c *Controller) handleRemoteClose(gen uint64, err error) {
	c.mu.Lock()
	if c.generation != gen || c.state.Status == StatusDisconnected {
		c.mu.Unlock()
		return
	}
	var cause error
	if err != nil {
		cause = &pkgerrors.TransportError{Op: "channel", Cause: err}
	}
	logger.Warn("control channel closed by remote", "session_id", c.cfg.SessionID, "error", err)
	cleanup := c.teardownLocked(cause)
	c.mu.Unlock()
	cleanup()
}

func (c *Controller) setStatusLocked(to Status, err error) {
	from := c.state.Status
	if from == to {
		return
	}
	c.state.Status = to
	logger.Debug("session status", "session_id", c.cfg.SessionID, "from", from, "to", to)
	c.emitter.StatusChanged(string(from), string(to), err)
}

// SetPushToTalk switches the turn-detection mode. The preference is
// persisted; while CONNECTED the full configuration is re-sent.
func (c *Controller) SetPushToTalk(enabled bool) error {
	c.mu.Lock()
	if c.state.PushToTalk == enabled {
		c.mu.Unlock()
		return nil
	}
	c.state.PushToTalk = enabled
	if c.state.Status == StatusConnected {
		c.pushConfigLocked()
	}
	c.mu.Unlock()
	return c.persist(preferences.KeyPushToTalk, enabled)
}

// SetVoice changes the output voice.
func (c *Controller) SetVoice(voice string) error {
	if err := realtime.ValidateVoice(voice); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Voice == voice {
		return nil
	}
	c.state.Voice = voice
	if c.state.Status == StatusConnected {
		c.pushConfigLocked()
	}
	return nil
}

// SetSpeed changes the voice speed. Values outside
// [realtime.MinSpeed, realtime.MaxSpeed] are rejected.
func (c *Controller) SetSpeed(speed float64) error {
	if err := realtime.ValidateSpeed(speed); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Speed == speed {
		return nil
	}
	c.state.Speed = speed
	if c.state.Status == StatusConnected {
		c.pushConfigLocked()
	}
	return nil
}

// SelectAgent makes name the active agent. While CONNECTED the new agent is
// configured and greets the user.
func (c *Controller) SelectAgent(name string) error {
	agent, err := c.graph.Agent(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.state.Agent
	if from.Name == agent.Name {
		return nil
	}
	c.emitter.AgentSelected(from.Name, agent.Name)
	c.activateAgentLocked(agent)
	return nil
}

// activateAgentLocked swaps the active agent and, while CONNECTED, announces
// and configures it.
func (c *Controller) activateAgentLocked(agent *agents.Agent) {
	c.state.Agent = agent
	if agent.Voice != "" {
		c.state.Voice = agent.Voice
	}
	if c.state.Status != StatusConnected {
		return
	}
	c.agentBreadcrumbLocked(agent)
	c.pushConfigLocked()
	c.scheduleGreetingLocked(c.generation)
}

// SetAudioPlayback gates remote audio playback and persists the preference.
func (c *Controller) SetAudioPlayback(enabled bool) error {
	c.mu.Lock()
	if c.state.AudioPlayback == enabled {
		c.mu.Unlock()
		return nil
	}
	c.state.AudioPlayback = enabled
	if c.conn != nil {
		if router := c.conn.Media(); router != nil {
			router.SetPlaybackEnabled(enabled)
		}
	}
	c.mu.Unlock()
	return c.persist(preferences.KeyAudioPlayback, enabled)
}

// SetLogsExpanded records whether the event log panel is expanded.
func (c *Controller) SetLogsExpanded(expanded bool) error {
	c.mu.Lock()
	if c.state.LogsExpanded == expanded {
		c.mu.Unlock()
		return nil
	}
	c.state.LogsExpanded = expanded
	c.mu.Unlock()
	return c.persist(preferences.KeyLogsExpanded, expanded)
}

func (c *Controller) persist(key string, v bool) error {
	if err := preferences.SetBool(context.Background(), c.cfg.Preferences, key, v); err != nil {
		logger.Warn("preference write failed", "key", key, "error", err)
		return err
	}
	return nil
}

// pushConfigLocked sends the full session configuration, preceded by an
// input buffer clear.
func (c *Controller) pushConfigLocked() {
	_ = c.sendLocked(realtime.NewInputAudioBufferClear(), "clear audio buffer on session update")
	cfg := realtime.BuildSessionConfig(realtime.SessionParams{
		Instructions:       c.state.Agent.Instructions,
		Voice:              c.state.Voice,
		Speed:              c.state.Speed,
		PushToTalk:         c.state.PushToTalk,
		TranscriptionModel: c.cfg.TranscriptionModel,
		Tools:              c.graph.Tools(c.state.Agent.Name),
	})
	_ = c.sendLocked(realtime.NewSessionUpdate(cfg), "")
}

func (c *Controller) agentBreadcrumbLocked(agent *agents.Agent) {
	c.transcript.AddBreadcrumb("Agent: "+agent.Name, map[string]any{
		"name":              agent.Name,
		"publicDescription": agent.PublicDescription,
		"voice":             agent.Voice,
		"handoffs":          c.graph.Neighbors(agent.Name),
	})
}

func (c *Controller) scheduleGreetingLocked(gen uint64) {
	if c.cfg.GreetingDelay < 0 {
		return
	}
	c.afterLocked(gen, c.cfg.GreetingDelay, func() {
		_ = c.sendLocked(realtime.NewResponseCreate(), "trigger initial greeting")
	})
}

// afterLocked runs fn under the lock after d, unless the attempt gen has
// been torn down or left CONNECTED by then.
func (c *Controller) afterLocked(gen uint64, d time.Duration, fn func()) {
	t := time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen || c.state.Status != StatusConnected {
			return
		}
		fn()
	})
	c.timers = append(c.timers, t)
}

// sendLocked assigns an event id, writes ev to the control channel and
// records it on the bus. A closed channel yields a *ChannelNotOpenError,
// which is logged and dropped.
func (c *Controller) sendLocked(ev realtime.Outbound, note string) error {
	if c.conn == nil || !c.conn.IsOpen() {
		err := &pkgerrors.ChannelNotOpenError{EventType: ev.EventType()}
		logger.Warn("failed to send message, no control channel", "event_type", ev.EventType())
		c.emitter.ClientEvent("error.data_channel_not_open", "", mustJSON(map[string]string{"attemptedEvent": ev.EventType()}))
		return err
	}
	id := fmt.Sprintf("evt_%d", c.eventSeq.Add(1))
	ev.SetEventID(id)
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to encode client event", "event_type", ev.EventType(), "error", err)
		return err
	}
	if err := c.conn.Send(data); err != nil {
		logger.Warn("failed to send client event", "event_type", ev.EventType(), "error", err)
		return err
	}
	logger.ClientEvent(c.connCtx, ev.EventType(), note, "event_id", id)
	c.emitter.ClientEvent(ev.EventType(), id, data)
	return nil
}

func (c *Controller) watchRemoteAudioLocked(gen uint64, router *transport.AudioRouter) {
	rec := c.cfg.Recorder
	if rec == nil {
		return
	}
	ctx := c.connCtx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-router.RemoteAudio():
		case <-ctx.Done():
			return
		}
		if err := rec.Start(router.Codec()); err != nil {
			logger.Warn("recorder start failed", "error", err)
			return
		}
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			_ = rec.Stop()
			return
		}
		router.AddTap(recorderTap, rec)
		c.recording = router
		c.mu.Unlock()
		logger.Info("recording remote audio", "session_id", c.cfg.SessionID)
	}()
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
