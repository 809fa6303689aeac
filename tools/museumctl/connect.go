package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/logger"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Start an interactive realtime session",
	Long: `Connect to the realtime model with the selected agent set and drive the
session from the terminal. Type /help once connected for the command list.

Settings are read from --config, then MUSEUM_* environment variables
(for example MUSEUM_TRANSPORT_KIND), then flags.`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	addConnectFlags(connectCmd)
}

func addConnectFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "", "Configuration file path")
	f.String("agent-set", "", "Built-in agent set name")
	f.String("agent-set-file", "", "Agent set manifest file; overrides --agent-set")
	f.String("agent", "", "Initial agent; defaults to the set's default agent")
	f.String("voice", "", "Output voice")
	f.Float64("speed", 0, "Speaking speed factor (0.25-1.5)")
	f.Duration("greeting-delay", 0, "Delay before the opening response; negative disables it")
	f.String("record", "", "Directory to record the remote audio into")
	f.String("transport", "", "Transport: webrtc or websocket")
	f.String("codec", "", "WebRTC audio codec: opus, pcmu or pcma")
	f.String("base-url", "", "Realtime endpoint override")
	f.String("model", "", "Realtime model")
	f.String("token-endpoint", "", "Endpoint issuing ephemeral client secrets")
	f.String("api-key-file", "", "File holding the OpenAI API key")
	f.Bool("ptt", false, "Start in push-to-talk mode")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	f.String("otlp-endpoint", "", "Export traces to this OTLP/HTTP endpoint")
	f.String("event-log", "", "Directory for the JSON Lines event log")
	f.String("prefs-file", "", "Preferences file")
	f.String("redis-addr", "", "Redis address for shared preferences")
	f.String("profile", "", "Preference profile in Redis")
	f.Bool("no-connect", false, "Wait for /connect instead of connecting at start")
}

func runConnect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Logging.LoggerSpec()); err != nil {
		return err
	}
	if cmd.Flags().Changed("verbose") {
		// Configure resets the level; the flag wins over the file.
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger.SetVerbose(verbose)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	a, err := newApp(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Fprintf(out, "agent set %s (%s), session %s. Type /help for commands.\n",
		a.set.Name, a.set.Source, a.ctrl.ID())

	g, gctx := errgroup.WithContext(ctx)
	consoleCtx, endConsole := context.WithCancel(gctx)
	defer endConsole()

	g.Go(a.serveMetrics)
	g.Go(func() error {
		// Shut the exporter down once the console is done.
		<-consoleCtx.Done()
		a.close()
		return nil
	})
	g.Go(func() error {
		defer endConsole()
		if noConnect, _ := cmd.Flags().GetBool("no-connect"); !noConnect {
			if err := a.ctrl.Connect(consoleCtx); err != nil && !errors.Is(err, pkgerrors.ErrConnectAborted) {
				fmt.Fprintf(out, "connect failed: %v (use /connect to retry)\n", err)
			}
		}
		in := cmd.InOrStdin()
		c := &console{s: controllerAPI{a.ctrl}, out: out, prompt: isTerminal(in)}
		return c.run(consoleCtx, in)
	})
	return g.Wait()
}
