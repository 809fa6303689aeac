package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tccoin/museum-agent/pkg/config"
	"github.com/tccoin/museum-agent/runtime/credentials"
	"github.com/tccoin/museum-agent/runtime/events"
	"github.com/tccoin/museum-agent/runtime/logger"
	prommetrics "github.com/tccoin/museum-agent/runtime/metrics/prometheus"
	"github.com/tccoin/museum-agent/runtime/preferences"
	"github.com/tccoin/museum-agent/runtime/recording"
	"github.com/tccoin/museum-agent/runtime/session"
	"github.com/tccoin/museum-agent/runtime/telemetry"
	"github.com/tccoin/museum-agent/runtime/transport"
)

const (
	serviceName     = "museumctl"
	shutdownTimeout = 5 * time.Second
	prefsFileName   = "preferences.json"
)

// app owns one session and the optional observability outputs around it.
type app struct {
	cfg      *config.CLIConfig
	set      *config.AgentSet
	ctrl     *session.Controller
	bus      *events.EventBus
	exporter *prommetrics.Exporter
	metricLn net.Listener
	tp       *sdktrace.TracerProvider
	otel     *telemetry.OTelEventListener
	eventLog *events.FileEventLog
	redis    *redis.Client
	recorder *recording.OggRecorder
	unsubs   []func()

	closeOnce sync.Once
}

// newApp wires a session from cfg. Output for the operator goes to out.
func newApp(ctx context.Context, cfg *config.CLIConfig, out io.Writer) (*app, error) {
	set, err := config.ResolveAgentSet(cfg.AgentSet, cfg.AgentSetFile)
	if err != nil {
		return nil, err
	}
	for _, w := range set.Warnings {
		logger.Warn("agent set warning", "set", set.Name, "warning", w)
	}

	a := &app{cfg: cfg, set: set, bus: events.NewEventBus()}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	sessionID := uuid.NewString()

	creds, err := credentials.Resolve(credentials.ResolverConfig{
		TokenEndpoint: cfg.Auth.TokenEndpoint,
		APIKey:        cfg.Auth.APIKey,
		APIKeyFile:    cfg.Auth.APIKeyFile,
		APIKeyEnv:     cfg.Auth.APIKeyEnv,
		Azure: credentials.AzureSessionConfig{
			Endpoint:   cfg.Auth.AzureEndpoint,
			Deployment: cfg.Auth.AzureDeploy,
		},
		Model: cfg.Transport.Model,
		Voice: cfg.Session.Voice,
		Cache: cfg.Auth.Cache,
	})
	if err != nil {
		return nil, err
	}

	registry, err := newToolRegistry(set, out)
	if err != nil {
		return nil, err
	}

	store, err := a.preferenceStore()
	if err != nil {
		return nil, err
	}

	if err := a.startObservability(ctx, sessionID); err != nil {
		return nil, err
	}

	scfg := session.Config{
		Graph:          set.Graph,
		Establisher:    newEstablisher(cfg.Transport),
		Credentials:    creds,
		SessionID:      sessionID,
		Agent:          cfg.Agent,
		Voice:          cfg.Session.Voice,
		Speed:          cfg.Session.Speed,
		GreetingDelay:  cfg.Session.GreetingDelay,
		Tools:          registry,
		Preferences:    store,
		Bus:            a.bus,
		OnStatusChange: statusPrinter(out),
	}
	if a.tp != nil {
		scfg.TracerProvider = a.tp
	}
	if cfg.Session.Record != "" {
		a.recorder = recording.NewOggRecorder(cfg.Session.Record, sessionID)
		scfg.Recorder = a.recorder
	}

	ctrl, err := session.New(scfg)
	if err != nil {
		return nil, err
	}
	a.ctrl = ctrl

	if cfg.Session.PushToTalk != nil {
		if err := ctrl.SetPushToTalk(*cfg.Session.PushToTalk); err != nil {
			return nil, err
		}
	}

	printer := newTranscriptPrinter(out)
	a.unsubs = append(a.unsubs, printer.attach(a.bus))

	ok = true
	return a, nil
}

func newEstablisher(cfg config.TransportConfig) transport.Establisher {
	if cfg.Kind == config.TransportWebSocket {
		return transport.NewWebSocketEstablisher(transport.WebSocketConfig{
			URL:         cfg.BaseURL,
			Model:       cfg.Model,
			DialTimeout: cfg.NegotiationTimeout,
		})
	}
	return transport.NewWebRTCEstablisher(transport.WebRTCConfig{
		BaseURL:            cfg.BaseURL,
		Model:              cfg.Model,
		Codec:              cfg.Codec,
		NegotiationTimeout: cfg.NegotiationTimeout,
	})
}

// preferenceStore picks Redis, then the configured file, then a file in the
// user config directory.
func (a *app) preferenceStore() (preferences.Store, error) {
	p := a.cfg.Prefs
	if p.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: p.RedisAddr})
		opts := []preferences.RedisOption{preferences.WithProfile(p.Profile)}
		if p.TTL > 0 {
			opts = append(opts, preferences.WithTTL(p.TTL))
		}
		return preferences.NewRedisStore(a.redis, opts...), nil
	}
	path := p.File
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			logger.Warn("no user config directory, preferences will not persist", "error", err)
			return preferences.NewMemoryStore(), nil
		}
		path = filepath.Join(dir, "museum-agent", prefsFileName)
	}
	return preferences.NewFileStore(path), nil
}

func (a *app) startObservability(ctx context.Context, sessionID string) error {
	o := a.cfg.Observe
	if o.EventLogDir != "" {
		log, err := events.NewFileEventLog(o.EventLogDir)
		if err != nil {
			return err
		}
		a.eventLog = log
		a.unsubs = append(a.unsubs, log.Attach(a.bus))
	}
	if o.MetricsAddr != "" {
		ln, err := net.Listen("tcp", o.MetricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		a.metricLn = ln
		a.exporter = prommetrics.NewExporter(o.MetricsAddr)
		a.unsubs = append(a.unsubs, a.bus.SubscribeAll(prommetrics.NewMetricsListener().Listener()))
	}
	if o.OTLPEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, o.OTLPEndpoint, serviceName)
		if err != nil {
			return fmt.Errorf("create tracer provider: %w", err)
		}
		telemetry.SetupPropagation()
		a.tp = tp
		a.otel = telemetry.NewOTelEventListener(telemetry.Tracer(tp))
		a.otel.StartSession(ctx, sessionID)
		a.unsubs = append(a.unsubs, a.bus.SubscribeAll(a.otel.OnEvent))
	}
	return nil
}

// serveMetrics blocks serving /metrics until close shuts the exporter down.
func (a *app) serveMetrics() error {
	if a.exporter == nil {
		return nil
	}
	err := a.exporter.Serve(a.metricLn)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("metrics exporter: %w", err)
	}
	return nil
}

// close tears the session down and flushes every output. It is idempotent
// and safe on a partially built app.
func (a *app) close() {
	a.closeOnce.Do(a.shutdown)
}

func (a *app) shutdown() {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	a.bus.Close()
	for _, unsub := range a.unsubs {
		unsub()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.otel != nil && a.ctrl != nil {
		a.otel.EndSession(a.ctrl.ID())
	}
	if a.tp != nil {
		if err := a.tp.Shutdown(ctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}
	if a.exporter != nil {
		if err := a.exporter.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
		// Unblocks a Serve that had not started yet.
		_ = a.metricLn.Close()
	}
	if a.eventLog != nil {
		if err := a.eventLog.Close(); err != nil {
			logger.Warn("event log close failed", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.recorder != nil {
		for _, f := range a.recorder.Files() {
			logger.Info("recorded audio", "file", f)
		}
	}
}

func statusPrinter(out io.Writer) session.StatusFunc {
	return func(from, to session.Status, err error) {
		if err != nil {
			fmt.Fprintf(out, "[status] %s -> %s: %v\n", from, to, err)
			return
		}
		fmt.Fprintf(out, "[status] %s -> %s\n", from, to)
	}
}
