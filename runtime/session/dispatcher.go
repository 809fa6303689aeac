package session

import (
	"encoding/json"
	"errors"
	"fmt"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/logger"
	"github.com/tccoin/museum-agent/runtime/realtime"
	"github.com/tccoin/museum-agent/runtime/transcript"
)

type handlerFunc func(data []byte) error

// Dispatcher routes inbound server events by type. A malformed event, or one
// whose handler fails, is logged, published as a dispatch error and dropped;
// later events are unaffected.
type Dispatcher struct {
	c        *Controller
	handlers map[string]handlerFunc
}

func newDispatcher(c *Controller) *Dispatcher {
	d := &Dispatcher{c: c}
	d.handlers = map[string]handlerFunc{
		realtime.TypeSessionCreated:                   d.onSession,
		realtime.TypeSessionUpdated:                   d.onSession,
		realtime.TypeConversationItemCreated:          d.onItemCreated,
		realtime.TypeInputAudioTranscriptionDelta:     d.onTranscriptionDelta,
		realtime.TypeInputAudioTranscriptionCompleted: d.onTranscriptionCompleted,
		realtime.TypeInputAudioTranscriptionFailed:    d.onTranscriptionFailed,
		realtime.TypeResponseTextDelta:                d.onResponseDelta,
		realtime.TypeResponseAudioTranscriptDelta:     d.onResponseDelta,
		realtime.TypeResponseOutputItemDone:           d.onOutputItemDone,
		realtime.TypeResponseDone:                     d.onResponseDone,
		realtime.TypeResponseFunctionCallArgsDelta:    d.onArgumentsDelta,
		realtime.TypeResponseFunctionCallArgsDone:     d.onArgumentsDone,
		realtime.TypeOutputAudioBufferStarted:         d.onOutputAudio(true),
		realtime.TypeOutputAudioBufferStopped:         d.onOutputAudio(false),
		realtime.TypeOutputAudioBufferCleared:         d.onOutputAudio(false),
		realtime.TypeInputAudioBufferSpeechStarted:    d.onSpeech,
		realtime.TypeInputAudioBufferSpeechStopped:    d.onSpeech,
		realtime.TypeError:                            d.onError,
	}
	return d
}

// Dispatch handles one raw server message as if it had arrived on the
// control channel.
func (d *Dispatcher) Dispatch(data []byte) {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	d.dispatchLocked(data)
}

func (d *Dispatcher) dispatchLocked(data []byte) {
	base, err := realtime.DecodeType(data)
	if err != nil {
		d.drop(err)
		return
	}
	logger.ServerEvent(d.c.connCtx, base.Type, "event_id", base.EventID)
	d.c.emitter.ServerEvent(base.Type, base.EventID, json.RawMessage(data))

	handler, ok := d.handlers[base.Type]
	if !ok {
		logger.Debug("unhandled server event", "event_type", base.Type)
		return
	}
	if err := d.invoke(handler, data); err != nil {
		var malformed *pkgerrors.MalformedEventError
		if !errors.As(err, &malformed) {
			err = &pkgerrors.MalformedEventError{EventType: base.Type, Reason: "handler failed", Cause: err}
		} else if malformed.EventType == "" {
			malformed.EventType = base.Type
		}
		d.drop(err)
	}
}

func (d *Dispatcher) invoke(handler handlerFunc, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &pkgerrors.MalformedEventError{Reason: fmt.Sprintf("handler panic: %v", r)}
		}
	}()
	return handler(data)
}

func (d *Dispatcher) drop(err error) {
	logger.Warn("dropping server event", "session_id", d.c.cfg.SessionID, "error", err)
	d.c.emitter.DispatchError(err)
}

func decode[T any](data []byte) (*T, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &pkgerrors.MalformedEventError{Reason: "invalid payload", Cause: err}
	}
	return &ev, nil
}

// tolerateUnknown logs and swallows deltas for items the transcript has not
// seen; the server occasionally streams before announcing an item.
func tolerateUnknown(err error, itemID string) error {
	if errors.Is(err, transcript.ErrItemNotFound) {
		logger.Debug("delta for unknown transcript item", "item_id", itemID)
		return nil
	}
	return err
}

func (d *Dispatcher) onSession(data []byte) error {
	ev, err := decode[realtime.SessionEvent](data)
	if err != nil {
		return err
	}
	if ev.Session.ID != "" {
		d.c.state.RemoteSessionID = ev.Session.ID
	}
	return nil
}

func (d *Dispatcher) onItemCreated(data []byte) error {
	ev, err := decode[realtime.ConversationItemCreatedEvent](data)
	if err != nil {
		return err
	}
	item := ev.Item
	if item.ID == "" {
		return &pkgerrors.MalformedEventError{Reason: "item without id"}
	}
	tr := d.c.transcript

	switch item.Type {
	case realtime.ItemTypeMessage:
		text := item.Text()
		switch item.Role {
		case realtime.RoleUser:
			if text == "" {
				tr.AddUserAudioMessage(item.ID)
				return nil
			}
			// Also reached for locally added simulated messages echoed back.
			tr.AddMessage(item.ID, transcript.RoleUser, transcript.KindMessage, text)
			return tr.MarkDone(item.ID)
		case realtime.RoleSystem:
			tr.AddMessage(item.ID, transcript.RoleSystem, transcript.KindMessage, text)
		default:
			tr.AddMessage(item.ID, transcript.RoleAssistant, transcript.KindMessage, text)
		}
	case realtime.ItemTypeFunctionCall:
		tr.AddFunctionCall(item.ID, item.CallID, item.Name)
	}
	return nil
}

func (d *Dispatcher) onTranscriptionDelta(data []byte) error {
	ev, err := decode[realtime.TranscriptionDeltaEvent](data)
	if err != nil {
		return err
	}
	return tolerateUnknown(d.c.transcript.AppendTranscription(ev.ItemID, ev.Delta), ev.ItemID)
}

func (d *Dispatcher) onTranscriptionCompleted(data []byte) error {
	ev, err := decode[realtime.TranscriptionCompletedEvent](data)
	if err != nil {
		return err
	}
	if err := d.c.transcript.ReplaceTranscription(ev.ItemID, ev.Transcript); err != nil {
		return tolerateUnknown(err, ev.ItemID)
	}
	return d.c.transcript.MarkDone(ev.ItemID)
}

func (d *Dispatcher) onTranscriptionFailed(data []byte) error {
	ev, err := decode[realtime.TranscriptionFailedEvent](data)
	if err != nil {
		return err
	}
	logger.Warn("input transcription failed", "item_id", ev.ItemID, "error", ev.Error.Message)
	if err := d.c.transcript.ReplaceTranscription(ev.ItemID, ""); err != nil {
		return tolerateUnknown(err, ev.ItemID)
	}
	return d.c.transcript.MarkDone(ev.ItemID)
}

func (d *Dispatcher) onResponseDelta(data []byte) error {
	ev, err := decode[realtime.ResponseDeltaEvent](data)
	if err != nil {
		return err
	}
	return tolerateUnknown(d.c.transcript.AppendContent(ev.ItemID, ev.Delta), ev.ItemID)
}

func (d *Dispatcher) onOutputItemDone(data []byte) error {
	ev, err := decode[realtime.ResponseOutputItemDoneEvent](data)
	if err != nil {
		return err
	}
	return tolerateUnknown(d.c.transcript.MarkDone(ev.Item.ID), ev.Item.ID)
}

func (d *Dispatcher) onResponseDone(data []byte) error {
	ev, err := decode[realtime.ResponseDoneEvent](data)
	if err != nil {
		return err
	}
	for _, out := range ev.Response.Output {
		if out.ID != "" {
			if err := tolerateUnknown(d.c.transcript.MarkDone(out.ID), out.ID); err != nil {
				return err
			}
		}
		if out.Type == realtime.ItemTypeFunctionCall {
			d.c.handleFunctionCallLocked(out.CallID, out.Name, out.Arguments)
		}
	}
	return nil
}

func (d *Dispatcher) onArgumentsDelta(data []byte) error {
	ev, err := decode[realtime.FunctionCallArgumentsDeltaEvent](data)
	if err != nil {
		return err
	}
	d.c.appendArgumentsLocked(ev.CallID, ev.Delta)
	return nil
}

func (d *Dispatcher) onArgumentsDone(data []byte) error {
	ev, err := decode[realtime.FunctionCallArgumentsDoneEvent](data)
	if err != nil {
		return err
	}
	d.c.handleFunctionCallLocked(ev.CallID, ev.Name, ev.Arguments)
	return nil
}

func (d *Dispatcher) onOutputAudio(active bool) handlerFunc {
	return func([]byte) error {
		d.c.state.OutputAudioActive = active
		return nil
	}
}

func (d *Dispatcher) onSpeech(data []byte) error {
	ev, err := decode[realtime.SpeechEvent](data)
	if err != nil {
		return err
	}
	logger.Debug("server speech detection", "event_type", ev.Type, "item_id", ev.ItemID)
	return nil
}

func (d *Dispatcher) onError(data []byte) error {
	ev, err := decode[realtime.ErrorEvent](data)
	if err != nil {
		return err
	}
	logger.Error("server error", "session_id", d.c.cfg.SessionID,
		"type", ev.Error.Type, "code", ev.Error.Code, "message", ev.Error.Message)
	return nil
}
