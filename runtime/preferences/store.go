// Package preferences persists the handful of user settings that survive a
// session: push-to-talk mode, audio playback and the log panel state.
//
// Values are stored as strings under fixed keys. An absent key, or a value
// that does not parse, reads as the key's default.
package preferences

import (
	"context"
	"errors"
	"strconv"

	"github.com/tccoin/museum-agent/runtime/logger"
)

// Keys of the persisted preferences.
const (
	KeyPushToTalk    = "push_to_talk"
	KeyAudioPlayback = "audio_playback"
	KeyLogsExpanded  = "logs_expanded"
)

var (
	// ErrNotFound is returned by Store.Get for an absent key.
	ErrNotFound = errors.New("preference not found")

	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("invalid preference key")
)

// Store is a string key-value store.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
}

// Preferences is the decoded set of persisted settings.
type Preferences struct {
	PushToTalk    bool
	AudioPlayback bool
	LogsExpanded  bool
}

// Defaults returns the settings used for absent keys.
func Defaults() Preferences {
	return Preferences{PushToTalk: false, AudioPlayback: true, LogsExpanded: true}
}

// Load reads every preference, falling back to Defaults per key. A nil store
// yields the defaults.
func Load(ctx context.Context, store Store) Preferences {
	d := Defaults()
	if store == nil {
		return d
	}
	return Preferences{
		PushToTalk:    Bool(ctx, store, KeyPushToTalk, d.PushToTalk),
		AudioPlayback: Bool(ctx, store, KeyAudioPlayback, d.AudioPlayback),
		LogsExpanded:  Bool(ctx, store, KeyLogsExpanded, d.LogsExpanded),
	}
}

// Bool reads a boolean preference. Read errors are logged and yield def.
func Bool(ctx context.Context, store Store, key string, def bool) bool {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("preference read failed", "key", key, "error", err)
		}
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warn("ignoring malformed preference", "key", key, "value", raw)
		return def
	}
	return v
}

// SetBool persists a boolean preference. A nil store is a no-op.
func SetBool(ctx context.Context, store Store, key string, v bool) error {
	if store == nil {
		return nil
	}
	return store.Set(ctx, key, strconv.FormatBool(v))
}
