// Package realtime defines the JSON control-channel protocol spoken with the
// remote realtime voice model: the client events the session sends, the server
// events it receives, and the session configuration pushed with session.update.
package realtime

// Client event type tags.
const (
	TypeSessionUpdate          = "session.update"
	TypeInputAudioBufferAppend = "input_audio_buffer.append"
	TypeInputAudioBufferCommit = "input_audio_buffer.commit"
	TypeInputAudioBufferClear  = "input_audio_buffer.clear"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
	TypeResponseCancel         = "response.cancel"
	TypeOutputAudioBufferClear = "output_audio_buffer.clear"
)

// Conversation item types and roles.
const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"

	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	ContentTypeInputText  = "input_text"
	ContentTypeInputAudio = "input_audio"
	ContentTypeText       = "text"
	ContentTypeAudio      = "audio"
)

// Outbound is implemented by every client event. The session assigns the
// event id just before the event is written to the control channel.
type Outbound interface {
	EventType() string
	SetEventID(id string)
}

// ClientEvent is the base structure for all client events.
type ClientEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

// EventType returns the event's type tag.
func (e *ClientEvent) EventType() string { return e.Type }

// SetEventID sets the client-assigned event id.
func (e *ClientEvent) SetEventID(id string) { e.EventID = id }

// SessionUpdateEvent replaces the session configuration.
type SessionUpdateEvent struct {
	ClientEvent
	Session SessionConfig `json:"session"`
}

// InputAudioBufferAppendEvent appends base64 audio to the input buffer.
// Only used on transports without a media path.
type InputAudioBufferAppendEvent struct {
	ClientEvent
	Audio string `json:"audio"`
}

// InputAudioBufferCommitEvent commits the audio buffer as a user turn.
type InputAudioBufferCommitEvent struct {
	ClientEvent
}

// InputAudioBufferClearEvent discards buffered input audio.
type InputAudioBufferClearEvent struct {
	ClientEvent
}

// ConversationItemCreateEvent adds an item to the conversation.
type ConversationItemCreateEvent struct {
	ClientEvent
	PreviousItemID string           `json:"previous_item_id,omitempty"`
	Item           ConversationItem `json:"item"`
}

// ConversationItem represents an item in the conversation.
type ConversationItem struct {
	ID        string                `json:"id,omitempty"`
	Type      string                `json:"type"`
	Status    string                `json:"status,omitempty"`
	Role      string                `json:"role,omitempty"`
	Content   []ConversationContent `json:"content,omitempty"`
	CallID    string                `json:"call_id,omitempty"`
	Output    string                `json:"output,omitempty"`
	Name      string                `json:"name,omitempty"`
	Arguments string                `json:"arguments,omitempty"`
}

// Text returns the first text or transcript carried by the item's content.
func (i *ConversationItem) Text() string {
	for _, c := range i.Content {
		if c.Text != "" {
			return c.Text
		}
		if c.Transcript != "" {
			return c.Transcript
		}
	}
	return ""
}

// ConversationContent represents content within a conversation item.
type ConversationContent struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// ResponseCreateEvent asks the model to produce a response.
type ResponseCreateEvent struct {
	ClientEvent
	Response *ResponseConfig `json:"response,omitempty"`
}

// ResponseConfig overrides session settings for one response.
type ResponseConfig struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Voice        string   `json:"voice,omitempty"`
}

// ResponseCancelEvent cancels the in-progress response.
type ResponseCancelEvent struct {
	ClientEvent
}

// OutputAudioBufferClearEvent stops server-side audio playback.
type OutputAudioBufferClearEvent struct {
	ClientEvent
}

// NewSessionUpdate wraps a full session configuration.
func NewSessionUpdate(cfg SessionConfig) *SessionUpdateEvent {
	return &SessionUpdateEvent{ClientEvent: ClientEvent{Type: TypeSessionUpdate}, Session: cfg}
}

// NewInputAudioBufferAppend returns an append event for base64 audio.
func NewInputAudioBufferAppend(audio string) *InputAudioBufferAppendEvent {
	return &InputAudioBufferAppendEvent{ClientEvent: ClientEvent{Type: TypeInputAudioBufferAppend}, Audio: audio}
}

// NewInputAudioBufferCommit returns a commit event.
func NewInputAudioBufferCommit() *InputAudioBufferCommitEvent {
	return &InputAudioBufferCommitEvent{ClientEvent: ClientEvent{Type: TypeInputAudioBufferCommit}}
}

// NewInputAudioBufferClear returns a clear event.
func NewInputAudioBufferClear() *InputAudioBufferClearEvent {
	return &InputAudioBufferClearEvent{ClientEvent: ClientEvent{Type: TypeInputAudioBufferClear}}
}

// NewUserTextMessage returns an item-create event carrying a user text message.
// id may be empty to let the server assign one.
func NewUserTextMessage(id, text string) *ConversationItemCreateEvent {
	return &ConversationItemCreateEvent{
		ClientEvent: ClientEvent{Type: TypeConversationItemCreate},
		Item: ConversationItem{
			ID:      id,
			Type:    ItemTypeMessage,
			Role:    RoleUser,
			Content: []ConversationContent{{Type: ContentTypeInputText, Text: text}},
		},
	}
}

// NewFunctionCallOutput returns an item-create event answering a function call.
func NewFunctionCallOutput(callID, output string) *ConversationItemCreateEvent {
	return &ConversationItemCreateEvent{
		ClientEvent: ClientEvent{Type: TypeConversationItemCreate},
		Item: ConversationItem{
			Type:   ItemTypeFunctionCallOutput,
			CallID: callID,
			Output: output,
		},
	}
}

// NewResponseCreate returns a response.create event with no overrides.
func NewResponseCreate() *ResponseCreateEvent {
	return &ResponseCreateEvent{ClientEvent: ClientEvent{Type: TypeResponseCreate}}
}

// NewResponseCancel returns a response.cancel event.
func NewResponseCancel() *ResponseCancelEvent {
	return &ResponseCancelEvent{ClientEvent: ClientEvent{Type: TypeResponseCancel}}
}

// NewOutputAudioBufferClear returns an output_audio_buffer.clear event.
func NewOutputAudioBufferClear() *OutputAudioBufferClearEvent {
	return &OutputAudioBufferClearEvent{ClientEvent: ClientEvent{Type: TypeOutputAudioBufferClear}}
}
