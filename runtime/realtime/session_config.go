package realtime

import (
	"fmt"
	"slices"
)

// Defaults applied to every session configuration push.
const (
	DefaultModel              = "gpt-4o-realtime-preview-2024-12-17"
	DefaultVoice              = "echo"
	DefaultSpeed              = 1.0
	DefaultTranscriptionModel = "whisper-1"

	MinSpeed = 0.25
	MaxSpeed = 1.5

	defaultVADThreshold      = 0.5
	defaultPrefixPaddingMs   = 300
	defaultSilenceDurationMs = 200
)

// SupportedVoices lists the voices the session accepts, default first.
var SupportedVoices = []string{"echo", "alloy", "ash", "ballad", "coral", "fable", "nova", "onyx", "sage", "shimmer", "verse"}

// DefaultModalities are requested on every session.update.
var DefaultModalities = []string{"text", "audio"}

// SessionConfig is the session configuration sent in session.update.
// TurnDetection has no omitempty: an explicit null disables server VAD,
// while omitting the field would leave the server default in place.
type SessionConfig struct {
	Modalities              []string             `json:"modalities,omitempty"`
	Instructions            string               `json:"instructions"`
	Voice                   string               `json:"voice,omitempty"`
	Speed                   float64              `json:"speed,omitempty"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetectionConfig `json:"turn_detection"`
	Tools                   []ToolDefinition     `json:"tools"`
}

// TranscriptionConfig configures transcription of input audio.
type TranscriptionConfig struct {
	Model string `json:"model"`
}

// TurnDetectionConfig configures server-side voice activity detection.
type TurnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    bool    `json:"create_response"`
}

// ToolDefinition defines a function the model may call.
type ToolDefinition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ServerVAD returns the server voice-activity-detection settings used when
// push-to-talk is off.
func ServerVAD() *TurnDetectionConfig {
	return &TurnDetectionConfig{
		Type:              "server_vad",
		Threshold:         defaultVADThreshold,
		PrefixPaddingMs:   defaultPrefixPaddingMs,
		SilenceDurationMs: defaultSilenceDurationMs,
		CreateResponse:    true,
	}
}

// SessionParams are the inputs of a full configuration push.
type SessionParams struct {
	Instructions       string
	Voice              string
	Speed              float64
	PushToTalk         bool
	TranscriptionModel string
	Tools              []ToolDefinition
}

// BuildSessionConfig assembles the session.update payload. Push-to-talk
// disables server VAD by sending turn_detection as null.
func BuildSessionConfig(p SessionParams) SessionConfig {
	voice := p.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	model := p.TranscriptionModel
	if model == "" {
		model = DefaultTranscriptionModel
	}
	tools := p.Tools
	if tools == nil {
		tools = []ToolDefinition{}
	}

	cfg := SessionConfig{
		Modalities:              slices.Clone(DefaultModalities),
		Instructions:            p.Instructions,
		Voice:                   voice,
		Speed:                   p.Speed,
		InputAudioTranscription: &TranscriptionConfig{Model: model},
		Tools:                   tools,
	}
	if !p.PushToTalk {
		cfg.TurnDetection = ServerVAD()
	}
	return cfg
}

// ValidateVoice reports whether voice is one of SupportedVoices.
func ValidateVoice(voice string) error {
	if !slices.Contains(SupportedVoices, voice) {
		return fmt.Errorf("unsupported voice %q", voice)
	}
	return nil
}

// ValidateSpeed reports whether speed is within [MinSpeed, MaxSpeed].
func ValidateSpeed(speed float64) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("speed %.2f outside [%.2f, %.2f]", speed, MinSpeed, MaxSpeed)
	}
	return nil
}
