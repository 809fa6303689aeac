package recording

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tccoin/museum-agent/runtime/events"
	"github.com/tccoin/museum-agent/runtime/transcript"
)

func createTestLog(t *testing.T) (*events.FileEventLog, string) {
	t.Helper()
	log, err := events.NewFileEventLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	sessionID := "sess-" + t.Name()
	base := time.Now()
	item := transcript.Item{ID: "item_a", Role: transcript.RoleAssistant, Kind: transcript.KindMessage, Seq: 1}
	user := transcript.Item{ID: "item_u", Role: transcript.RoleUser, Kind: transcript.KindMessage, Seq: 0,
		Transcription: "hello", Status: transcript.StatusDone}

	evs := []*events.Event{
		{Type: events.EventStatusChanged, Data: events.StatusChangedData{From: "DISCONNECTED", To: "CONNECTING"}},
		{Type: events.EventTranscriptItemAdded, Data: events.TranscriptItemData{Item: user}},
		{Type: events.EventTranscriptItemAdded, Data: events.TranscriptItemData{Item: item}},
	}
	item.Content = "Welcome to the museum"
	item.Status = transcript.StatusDone
	evs = append(evs, &events.Event{Type: events.EventTranscriptItemUpdated, Data: events.TranscriptItemData{Item: item}})

	for i, e := range evs {
		e.SessionID = sessionID
		e.Sequence = int64(i + 1)
		e.Timestamp = base.Add(time.Duration(i) * 100 * time.Millisecond)
		require.NoError(t, log.Append(e))
	}
	return log, sessionID
}

func TestExport(t *testing.T) {
	log, sessionID := createTestLog(t)

	rec, err := Export(context.Background(), log, sessionID, ExportOptions{AgentSet: "museumAgent"})
	require.NoError(t, err)

	assert.Equal(t, sessionID, rec.Metadata.SessionID)
	assert.Equal(t, "museumAgent", rec.Metadata.AgentSet)
	assert.Equal(t, 4, rec.Metadata.EventCount)
	assert.Equal(t, recordingVersion, rec.Metadata.Version)
	assert.InDelta(t, 300*time.Millisecond, rec.Metadata.Duration, float64(time.Millisecond))
	assert.Equal(t, time.Duration(0), rec.Events[0].Offset)
	assert.Equal(t, events.EventTranscriptItemUpdated, rec.Events[3].Type)
	assert.Contains(t, rec.String(), "4 events")
}

func TestExport_EmptySession(t *testing.T) {
	log, err := events.NewFileEventLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	_, err = Export(context.Background(), log, "nothing", ExportOptions{})
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestTranscript_LastSnapshotInOrder(t *testing.T) {
	log, sessionID := createTestLog(t)
	rec, err := Export(context.Background(), log, sessionID, ExportOptions{})
	require.NoError(t, err)

	items, err := rec.Transcript()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "item_u", items[0].ID)
	assert.Equal(t, "hello", items[0].Text())
	assert.Equal(t, "Welcome to the museum", items[1].Content)
	assert.Equal(t, transcript.StatusDone, items[1].Status)
}

func TestSaveAndLoad(t *testing.T) {
	log, sessionID := createTestLog(t)
	rec, err := Export(context.Background(), log, sessionID, ExportOptions{Model: "gpt-4o-realtime-preview"})
	require.NoError(t, err)

	for _, format := range []Format{FormatJSON, FormatJSONLines} {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rec."+string(format))
			require.NoError(t, rec.SaveTo(path, format))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, rec.Metadata.SessionID, loaded.Metadata.SessionID)
			assert.Equal(t, "gpt-4o-realtime-preview", loaded.Metadata.Model)
			assert.Len(t, loaded.Events, len(rec.Events))

			items, err := loaded.Transcript()
			require.NoError(t, err)
			assert.Len(t, items, 2)
		})
	}
}

func TestSaveTo_UnsupportedFormat(t *testing.T) {
	rec := &SessionRecording{}
	err := rec.SaveTo(filepath.Join(t.TempDir(), "x"), "xml")
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.jsonl")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = Load(empty)
	assert.Error(t, err)

	noMeta := filepath.Join(dir, "nometa.jsonl")
	require.NoError(t, os.WriteFile(noMeta, []byte(`{"type":"event","event":{"seq":1,"type":"client.event"}}`+"\n"), 0o600))
	_, err = Load(noMeta)
	assert.Error(t, err)
}

func opusCodec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		PayloadType:        111,
	}
}

func TestOggRecorder_WritesFilePerStart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	r := NewOggRecorder(dir, "sess")

	// Dropped before Start.
	require.NoError(t, r.WriteRTP(&rtp.Packet{Payload: []byte{0x01}}))

	require.NoError(t, r.Start(opusCodec()))
	require.NoError(t, r.Start(opusCodec()), "second Start keeps the open file")
	for i := 0; i < 3; i++ {
		pkt := &rtp.Packet{
			Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: uint16(i), Timestamp: uint32(i * 960)},
			Payload: []byte{0xfc, 0xff, 0xfe},
		}
		require.NoError(t, r.WriteRTP(pkt))
	}
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())

	require.NoError(t, r.Start(opusCodec()))
	require.NoError(t, r.Stop())

	files := r.Files()
	require.Equal(t, []string{filepath.Join(dir, "sess-1.ogg"), filepath.Join(dir, "sess-2.ogg")}, files)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "OggS", string(data[:4]))
}

func TestOggRecorder_RejectsG711(t *testing.T) {
	r := NewOggRecorder(t.TempDir(), "sess")
	err := r.Start(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000},
	})
	assert.ErrorIs(t, err, ErrUnsupportedCodec)
	assert.Empty(t, r.Files())
}
