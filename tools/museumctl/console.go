package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/tccoin/museum-agent/runtime/session"
)

const promptText = "> "

// errQuit ends the console loop.
var errQuit = errors.New("quit")

// sessionAPI is what the console drives. *session.Controller satisfies it
// through controllerAPI.
type sessionAPI interface {
	Connect(ctx context.Context) error
	Disconnect()
	Snapshot() session.Session
	SetPushToTalk(enabled bool) error
	SetVoice(voice string) error
	SetSpeed(speed float64) error
	SelectAgent(name string) error
	SetAudioPlayback(enabled bool) error
	TalkButtonDown() error
	TalkButtonUp() error
	CancelCurrentTurn()
	SendText(text string) error
	SendSimulatedUserMessage(text string) error
}

// controllerAPI flattens the controller and its turn controller into one
// sessionAPI.
type controllerAPI struct {
	*session.Controller
}

func (c controllerAPI) TalkButtonDown() error { return c.Turns().TalkButtonDown() }
func (c controllerAPI) TalkButtonUp() error   { return c.Turns().TalkButtonUp() }
func (c controllerAPI) CancelCurrentTurn()    { c.Turns().CancelCurrentTurn() }
func (c controllerAPI) SendText(text string) error {
	return c.Turns().SendText(text)
}
func (c controllerAPI) SendSimulatedUserMessage(text string) error {
	return c.Turns().SendSimulatedUserMessage(text)
}

const helpText = `commands:
  /connect              open the session
  /disconnect           close the session
  /status               show session state
  /ptt on|off           toggle push-to-talk
  /down, /up            press and release the talk button
  /cancel               interrupt the assistant
  /voice <name>         change the output voice
  /speed <factor>       change the speaking speed
  /agent <name>         switch agent
  /playback on|off      toggle audio playback
  /simulate <text>      inject a user message without interrupting
  /quit                 exit
anything else is sent as a text message`

type console struct {
	s   sessionAPI
	out io.Writer
	// prompt prints promptText before each read; set for interactive input.
	prompt bool
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *console) showPrompt() {
	if c.prompt {
		fmt.Fprint(c.out, promptText)
	}
}

// run reads commands until /quit, end of input or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.showPrompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.execute(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			c.showPrompt()
		}
	}
}

func (c *console) execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.s.SendText(line)
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(c.out, helpText)
		return nil
	case "connect":
		return c.s.Connect(ctx)
	case "disconnect":
		c.s.Disconnect()
		return nil
	case "status":
		c.printStatus()
		return nil
	case "ptt":
		on, err := parseSwitch(arg)
		if err != nil {
			return err
		}
		return c.s.SetPushToTalk(on)
	case "down":
		return c.s.TalkButtonDown()
	case "up":
		return c.s.TalkButtonUp()
	case "cancel":
		c.s.CancelCurrentTurn()
		return nil
	case "voice":
		if arg == "" {
			return errors.New("usage: /voice <name>")
		}
		return c.s.SetVoice(arg)
	case "speed":
		speed, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("usage: /speed <factor>: %w", err)
		}
		return c.s.SetSpeed(speed)
	case "agent":
		if arg == "" {
			return errors.New("usage: /agent <name>")
		}
		return c.s.SelectAgent(arg)
	case "playback":
		on, err := parseSwitch(arg)
		if err != nil {
			return err
		}
		return c.s.SetAudioPlayback(on)
	case "simulate":
		if arg == "" {
			return errors.New("usage: /simulate <text>")
		}
		return c.s.SendSimulatedUserMessage(arg)
	default:
		return fmt.Errorf("unknown command /%s (try /help)", cmd)
	}
}

func (c *console) printStatus() {
	s := c.s.Snapshot()
	agent := ""
	if s.Agent != nil {
		agent = s.Agent.Name
	}
	fmt.Fprintf(c.out, "status=%s agent=%s voice=%s speed=%.2f ptt=%t playback=%t speaking=%t\n",
		s.Status, agent, s.Voice, s.Speed, s.PushToTalk, s.AudioPlayback, s.OutputAudioActive)
}

func parseSwitch(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", arg)
	}
}
