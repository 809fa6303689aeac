package recording

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const (
	dirPermissions  = 0750
	defaultChannels = 2
)

// ErrUnsupportedCodec is returned by Start for codecs Ogg cannot carry.
var ErrUnsupportedCodec = errors.New("recording requires the opus codec")

// OggRecorder writes the remote audio of a session to Ogg/Opus files, one
// file per connected period: <dir>/<session>-<n>.ogg.
type OggRecorder struct {
	dir       string
	sessionID string

	mu    sync.Mutex
	w     *oggwriter.OggWriter
	path  string
	files []string
}

// NewOggRecorder creates a recorder writing into dir.
func NewOggRecorder(dir, sessionID string) *OggRecorder {
	return &OggRecorder{dir: dir, sessionID: sessionID}
}

// Start opens the next file. A recorder already started is left alone.
func (r *OggRecorder) Start(codec webrtc.RTPCodecParameters) error {
	if !strings.EqualFold(codec.MimeType, webrtc.MimeTypeOpus) {
		return fmt.Errorf("%w, got %s", ErrUnsupportedCodec, codec.MimeType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w != nil {
		return nil
	}
	if err := os.MkdirAll(r.dir, dirPermissions); err != nil {
		return fmt.Errorf("create recording directory: %w", err)
	}

	channels := codec.Channels
	if channels == 0 {
		channels = defaultChannels
	}
	path := filepath.Join(r.dir, fmt.Sprintf("%s-%d.ogg", r.sessionID, len(r.files)+1))
	w, err := oggwriter.New(path, codec.ClockRate, channels)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	r.w = w
	r.path = path
	r.files = append(r.files, path)
	return nil
}

// WriteRTP appends one packet. Packets arriving while stopped are dropped.
func (r *OggRecorder) WriteRTP(pkt *rtp.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	return r.w.WriteRTP(pkt)
}

// Stop finalizes the current file.
func (r *OggRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	err := r.w.Close()
	r.w = nil
	return err
}

// Files lists every file written so far.
func (r *OggRecorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}
