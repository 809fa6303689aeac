// Package recording captures sessions for later review: the remote audio
// stream as Ogg/Opus, and the event log as a self-contained recording from
// which the final transcript can be rebuilt.
package recording

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/tccoin/museum-agent/runtime/events"
	"github.com/tccoin/museum-agent/runtime/transcript"
)

// Format specifies the recording file format.
type Format string

const (
	// FormatJSON uses JSON encoding (human-readable, larger files).
	FormatJSON Format = "json"
	// FormatJSONLines uses JSON Lines encoding (streamable, one event per line).
	FormatJSONLines Format = "jsonl"
)

// filePermissions for recording files.
const filePermissions = 0600

// recordingVersion is the current format version.
const recordingVersion = "1.0"

// ErrEmptySession is returned when the event log holds nothing for a session.
var ErrEmptySession = errors.New("no events found for session")

// SessionRecording is a self-contained artifact for review. It holds every
// logged event of one session so it can be inspected without the event log.
type SessionRecording struct {
	Metadata Metadata        `json:"metadata"`
	Events   []RecordedEvent `json:"events"`
}

// Metadata contains session-level information.
type Metadata struct {
	SessionID  string        `json:"session_id"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	EventCount int           `json:"event_count"`

	// AgentSet and Model identify the configuration the session ran with.
	AgentSet string `json:"agent_set,omitempty"`
	Model    string `json:"model,omitempty"`

	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	Custom map[string]any `json:"custom,omitempty"`
}

// RecordedEvent is one logged event with its offset from session start.
type RecordedEvent struct {
	Sequence  int64            `json:"seq"`
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Offset    time.Duration    `json:"offset"`
	Error     string           `json:"error,omitempty"`
	Data      json.RawMessage  `json:"data,omitempty"`
}

// ExportOptions adds metadata to an export.
type ExportOptions struct {
	AgentSet string
	Model    string
	Custom   map[string]any
}

// Export creates a SessionRecording from the event log of one session.
func Export(ctx context.Context, log *events.FileEventLog, sessionID string, opts ExportOptions) (*SessionRecording, error) {
	logged, err := log.Query(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	if len(logged) == 0 {
		return nil, fmt.Errorf("%w %s", ErrEmptySession, sessionID)
	}

	sort.SliceStable(logged, func(i, j int) bool {
		return logged[i].Timestamp.Before(logged[j].Timestamp)
	})

	start := logged[0].Timestamp
	end := logged[len(logged)-1].Timestamp
	rec := &SessionRecording{
		Metadata: Metadata{
			SessionID:  sessionID,
			StartTime:  start,
			EndTime:    end,
			Duration:   end.Sub(start),
			EventCount: len(logged),
			AgentSet:   opts.AgentSet,
			Model:      opts.Model,
			Version:    recordingVersion,
			CreatedAt:  time.Now(),
			Custom:     opts.Custom,
		},
		Events: make([]RecordedEvent, len(logged)),
	}
	for i, e := range logged {
		rec.Events[i] = RecordedEvent{
			Sequence:  e.Sequence,
			Type:      e.Type,
			Timestamp: e.Timestamp,
			Offset:    e.Timestamp.Sub(start),
			Error:     e.Error,
			Data:      e.Data,
		}
	}
	return rec, nil
}

// SaveTo writes the recording to a file.
func (r *SessionRecording) SaveTo(path string, format Format) error {
	var data []byte
	var err error

	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(r, "", "  ")
	case FormatJSONLines:
		data, err = r.marshalJSONLines()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	if err != nil {
		return fmt.Errorf("marshal recording: %w", err)
	}

	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// jsonLine is one line of the JSON Lines format: the metadata first, then
// one line per event.
type jsonLine struct {
	Type     string         `json:"type"`
	Metadata *Metadata      `json:"metadata,omitempty"`
	Event    *RecordedEvent `json:"event,omitempty"`
}

func (r *SessionRecording) marshalJSONLines() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(jsonLine{Type: "metadata", Metadata: &r.Metadata}); err != nil {
		return nil, err
	}
	for i := range r.Events {
		if err := enc.Encode(jsonLine{Type: "event", Event: &r.Events[i]}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Load reads a recording written by SaveTo in either format.
func Load(path string) (*SessionRecording, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied recording path
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty recording")
	}

	var rec SessionRecording
	if json.Unmarshal(trimmed, &rec) == nil && rec.Metadata.Version != "" {
		return &rec, nil
	}
	return loadJSONLines(trimmed)
}

func loadJSONLines(data []byte) (*SessionRecording, error) {
	rec := &SessionRecording{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var l jsonLine
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch {
		case l.Type == "metadata" && l.Metadata != nil:
			rec.Metadata = *l.Metadata
		case l.Type == "event" && l.Event != nil:
			rec.Events = append(rec.Events, *l.Event)
		default:
			return nil, fmt.Errorf("line %d: unknown record type %q", line, l.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if rec.Metadata.Version == "" {
		return nil, errors.New("recording has no metadata line")
	}
	return rec, nil
}

// Transcript rebuilds the final transcript from the recorded item events:
// the last snapshot of every item, in first-seen order.
func (r *SessionRecording) Transcript() ([]transcript.Item, error) {
	latest := make(map[string]transcript.Item)
	for i := range r.Events {
		e := &r.Events[i]
		if e.Type != events.EventTranscriptItemAdded && e.Type != events.EventTranscriptItemUpdated {
			continue
		}
		var data events.TranscriptItemData
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.Sequence, err)
		}
		latest[data.Item.ID] = data.Item
	}

	items := make([]transcript.Item, 0, len(latest))
	for _, item := range latest {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })
	return items, nil
}

// String returns a one-line summary.
func (r *SessionRecording) String() string {
	return fmt.Sprintf("session %s: %d events over %s", r.Metadata.SessionID,
		r.Metadata.EventCount, r.Metadata.Duration.Round(time.Millisecond))
}
