package session

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/logger"
	"github.com/tccoin/museum-agent/runtime/realtime"
	"github.com/tccoin/museum-agent/runtime/transcript"
)

// simulatedIDLength bounds generated item ids; the server rejects ids
// longer than 32 characters.
const simulatedIDLength = 32

// TurnController implements push-to-talk turn boundaries and barge-in.
type TurnController struct {
	c *Controller
}

// CancelCurrentTurn interrupts the assistant: response.cancel when its most
// recent message is still in progress, and independently
// output_audio_buffer.clear when output audio is playing. Either send is
// skipped when there is nothing to cancel.
func (t *TurnController) CancelCurrentTurn() {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.cancelLocked()
}

func (t *TurnController) cancelLocked() {
	c := t.c
	item, ok := c.transcript.MostRecent(transcript.RoleAssistant, transcript.KindMessage)
	if !ok {
		logger.Debug("no assistant message to cancel")
	} else if item.Status == transcript.StatusInProgress {
		_ = c.sendLocked(realtime.NewResponseCancel(), "cancel in-progress response")
	}
	if c.state.OutputAudioActive {
		_ = c.sendLocked(realtime.NewOutputAudioBufferClear(), "stop assistant audio")
		c.state.OutputAudioActive = false
	}
}

// writableLocked reports whether turn operations may send.
func (t *TurnController) writableLocked() bool {
	c := t.c
	return c.state.Status == StatusConnected && c.conn != nil && c.conn.IsOpen()
}

// TalkButtonDown starts a push-to-talk turn: it interrupts the assistant,
// marks the user as speaking and clears stale input audio.
func (t *TurnController) TalkButtonDown() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if !t.writableLocked() {
		return pkgerrors.ErrNotConnected
	}
	t.cancelLocked()
	t.c.state.UserSpeaking = true
	return t.c.sendLocked(realtime.NewInputAudioBufferClear(), "clear PTT buffer")
}

// TalkButtonUp ends a push-to-talk turn by committing the input audio and
// requesting a response. Without a preceding TalkButtonDown it does nothing.
func (t *TurnController) TalkButtonUp() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if !t.writableLocked() {
		return pkgerrors.ErrNotConnected
	}
	if !t.c.state.UserSpeaking {
		return nil
	}
	t.c.state.UserSpeaking = false
	if err := t.c.sendLocked(realtime.NewInputAudioBufferCommit(), "commit PTT"); err != nil {
		return err
	}
	return t.c.sendLocked(realtime.NewResponseCreate(), "trigger response PTT")
}

// SendText sends a typed user message. Blank text is ignored.
func (t *TurnController) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if !t.writableLocked() {
		return pkgerrors.ErrNotConnected
	}
	t.cancelLocked()
	if err := t.c.sendLocked(realtime.NewUserTextMessage("", text), "send user text"); err != nil {
		return err
	}
	return t.c.sendLocked(realtime.NewResponseCreate(), "trigger response")
}

// SendSimulatedUserMessage injects a user message on the user's behalf,
// recording it in the transcript before it is sent. The assistant is not
// interrupted.
func (t *TurnController) SendSimulatedUserMessage(text string) error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if !t.writableLocked() {
		return pkgerrors.ErrNotConnected
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:simulatedIDLength]
	t.c.transcript.AddMessage(id, transcript.RoleUser, transcript.KindMessage, text)
	_ = t.c.transcript.MarkDone(id)
	if err := t.c.sendLocked(realtime.NewUserTextMessage(id, text), "simulated user text message"); err != nil {
		return err
	}
	return t.c.sendLocked(realtime.NewResponseCreate(), "trigger response")
}
