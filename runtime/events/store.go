package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/tccoin/museum-agent/runtime/logger"
)

// File system constants.
const (
	dirPermissions  = 0750
	filePermissions = 0600
	scannerBufSize  = 1024 * 1024 // session.update payloads carry full instructions
)

// ErrNoSessionID is returned when an event without a session id is appended.
var ErrNoSessionID = errors.New("event has no session ID")

// LoggedEvent is the JSON Lines record of one event. Data keeps the payload
// as raw JSON since the concrete type is not recoverable on read.
type LoggedEvent struct {
	Sequence  int64           `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// FileEventLog writes events as JSON Lines, one file per session.
type FileEventLog struct {
	dir   string
	mu    sync.Mutex
	files map[string]*os.File
}

// NewFileEventLog creates a file-based event log in dir.
func NewFileEventLog(dir string) (*FileEventLog, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	return &FileEventLog{dir: dir, files: make(map[string]*os.File)}, nil
}

// Attach subscribes the log to every event on bus and returns the
// unsubscribe function. Write failures are logged, not returned.
func (s *FileEventLog) Attach(bus *EventBus) func() {
	return bus.SubscribeAll(func(e *Event) {
		if err := s.Append(e); err != nil {
			logger.Warn("event log append failed", "type", e.Type, "error", err)
		}
	})
}

// Append writes an event to its session file.
func (s *FileEventLog) Append(event *Event) error {
	if event.SessionID == "" {
		return ErrNoSessionID
	}
	rec := LoggedEvent{
		Sequence:  event.Sequence,
		Type:      event.Type,
		Timestamp: event.Timestamp,
		SessionID: event.SessionID,
		Error:     errorOf(event.Data),
	}
	if event.Data != nil {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("serialize event: %w", err)
		}
		rec.Data = data
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.getOrCreateFile(event.SessionID)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Query reads back a session's events, optionally restricted to types.
func (s *FileEventLog) Query(ctx context.Context, sessionID string, types ...EventType) ([]*LoggedEvent, error) {
	if sessionID == "" {
		return nil, ErrNoSessionID
	}
	f, err := os.Open(s.sessionPath(sessionID)) //nolint:gosec // path is built from the session id
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	var out []*LoggedEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, scannerBufSize), scannerBufSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		var rec LoggedEvent
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue // Skip malformed lines
		}
		if len(types) == 0 || slices.Contains(types, rec.Type) {
			out = append(out, &rec)
		}
	}
	return out, scanner.Err()
}

// Close syncs and closes every open session file.
func (s *FileEventLog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, f := range s.files {
		if err := f.Sync(); err != nil {
			errs = append(errs, err)
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.files = make(map[string]*os.File)
	return errors.Join(errs...)
}

func (s *FileEventLog) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".jsonl")
}

// getOrCreateFile returns the file for a session, creating it if needed.
// Caller must hold s.mu.
func (s *FileEventLog) getOrCreateFile(sessionID string) (*os.File, error) {
	if f, ok := s.files[sessionID]; ok {
		return f, nil
	}
	//nolint:gosec // path is built from the session id
	f, err := os.OpenFile(s.sessionPath(sessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("create session file: %w", err)
	}
	s.files[sessionID] = f
	return f, nil
}

// errorOf extracts the error carried by payloads whose Error field is not
// serialized.
func errorOf(data EventData) string {
	var err error
	switch d := data.(type) {
	case StatusChangedData:
		err = d.Error
	case ChannelEventData:
		err = d.Error
	case AgentChangeData:
		err = d.Error
	case ToolCallEventData:
		err = d.Error
	case ErrorData:
		err = d.Error
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
