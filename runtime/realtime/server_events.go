package realtime

import (
	"encoding/json"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
)

// Server event type tags.
const (
	TypeError                            = "error"
	TypeSessionCreated                   = "session.created"
	TypeSessionUpdated                   = "session.updated"
	TypeConversationItemCreated          = "conversation.item.created"
	TypeInputAudioTranscriptionDelta     = "conversation.item.input_audio_transcription.delta"
	TypeInputAudioTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	TypeInputAudioTranscriptionFailed    = "conversation.item.input_audio_transcription.failed"
	TypeInputAudioBufferSpeechStarted    = "input_audio_buffer.speech_started"
	TypeInputAudioBufferSpeechStopped    = "input_audio_buffer.speech_stopped"
	TypeInputAudioBufferCommitted        = "input_audio_buffer.committed"
	TypeResponseCreated                  = "response.created"
	TypeResponseDone                     = "response.done"
	TypeResponseOutputItemDone           = "response.output_item.done"
	TypeResponseTextDelta                = "response.text.delta"
	TypeResponseAudioTranscriptDelta     = "response.audio_transcript.delta"
	TypeResponseFunctionCallArgsDelta    = "response.function_call_arguments.delta"
	TypeResponseFunctionCallArgsDone     = "response.function_call_arguments.done"
	TypeOutputAudioBufferStarted         = "output_audio_buffer.started"
	TypeOutputAudioBufferStopped         = "output_audio_buffer.stopped"
	TypeOutputAudioBufferCleared         = "output_audio_buffer.cleared"
)

// Item status values reported by the server.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusIncomplete = "incomplete"
)

// ServerEvent is the base structure for all server events.
type ServerEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// DecodeType reads only the type tag of a raw server message.
// A message that is not a JSON object or has no type is a MalformedEventError.
func DecodeType(data []byte) (ServerEvent, error) {
	var base ServerEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return base, &pkgerrors.MalformedEventError{Reason: "not a JSON object", Cause: err}
	}
	if base.Type == "" {
		return base, &pkgerrors.MalformedEventError{Reason: "missing type"}
	}
	return base, nil
}

// ErrorEvent reports a server-side error.
type ErrorEvent struct {
	ServerEvent
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// SessionEvent is sent as session.created and session.updated.
type SessionEvent struct {
	ServerEvent
	Session SessionInfo `json:"session"`
}

// SessionInfo contains the server's view of the session.
type SessionInfo struct {
	ID            string               `json:"id"`
	Model         string               `json:"model"`
	Modalities    []string             `json:"modalities"`
	Instructions  string               `json:"instructions"`
	Voice         string               `json:"voice"`
	TurnDetection *TurnDetectionConfig `json:"turn_detection"`
	Tools         []ToolDefinition     `json:"tools"`
}

// ConversationItemCreatedEvent announces a new conversation item.
type ConversationItemCreatedEvent struct {
	ServerEvent
	PreviousItemID string           `json:"previous_item_id"`
	Item           ConversationItem `json:"item"`
}

// TranscriptionDeltaEvent streams input-audio transcription text.
type TranscriptionDeltaEvent struct {
	ServerEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// TranscriptionCompletedEvent carries the final input-audio transcript.
type TranscriptionCompletedEvent struct {
	ServerEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

// TranscriptionFailedEvent reports a failed input-audio transcription.
type TranscriptionFailedEvent struct {
	ServerEvent
	ItemID       string      `json:"item_id"`
	ContentIndex int         `json:"content_index"`
	Error        ErrorDetail `json:"error"`
}

// SpeechEvent is sent as input_audio_buffer.speech_started and speech_stopped.
type SpeechEvent struct {
	ServerEvent
	AudioStartMs int    `json:"audio_start_ms,omitempty"`
	AudioEndMs   int    `json:"audio_end_ms,omitempty"`
	ItemID       string `json:"item_id"`
}

// ResponseDeltaEvent streams text for response.text.delta and
// response.audio_transcript.delta.
type ResponseDeltaEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// ResponseOutputItemDoneEvent indicates an output item completed.
type ResponseOutputItemDoneEvent struct {
	ServerEvent
	ResponseID  string           `json:"response_id"`
	OutputIndex int              `json:"output_index"`
	Item        ConversationItem `json:"item"`
}

// ResponseDoneEvent indicates a response completed, with its final outputs.
type ResponseDoneEvent struct {
	ServerEvent
	Response ResponseInfo `json:"response"`
}

// ResponseInfo contains response details.
type ResponseInfo struct {
	ID     string             `json:"id"`
	Status string             `json:"status"`
	Output []ConversationItem `json:"output"`
}

// FunctionCallArgumentsDeltaEvent streams function call arguments.
type FunctionCallArgumentsDeltaEvent struct {
	ServerEvent
	ResponseID  string `json:"response_id"`
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	CallID      string `json:"call_id"`
	Delta       string `json:"delta"`
}

// FunctionCallArgumentsDoneEvent carries the complete function call.
type FunctionCallArgumentsDoneEvent struct {
	ServerEvent
	ResponseID  string `json:"response_id"`
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	CallID      string `json:"call_id"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
}

// OutputAudioBufferEvent is sent as output_audio_buffer.started, stopped and cleared.
type OutputAudioBufferEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
}
