package session

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tccoin/museum-agent/runtime/events"
	"github.com/tccoin/museum-agent/runtime/transcript"
)

func assistantItem(id string) string {
	return fmt.Sprintf(`{"type":"conversation.item.created","item":{"id":%q,"type":"message","role":"assistant","content":[]}}`, id)
}

func textDelta(id, delta string) string {
	return fmt.Sprintf(`{"type":"response.audio_transcript.delta","item_id":%q,"delta":%q}`, id, delta)
}

func itemDone(id string) string {
	return fmt.Sprintf(`{"type":"response.output_item.done","item":{"id":%q,"type":"message"}}`, id)
}

func TestDispatch_DeltasAccumulate(t *testing.T) {
	c, conn := connected(t)

	conn.deliver(assistantItem("a"))
	conn.deliver(textDelta("a", "Hel"))
	conn.deliver(textDelta("a", "lo"))
	conn.deliver(itemDone("a"))

	item, ok := c.Transcript().Get("a")
	require.True(t, ok)
	assert.Equal(t, "Hello", item.Content)
	assert.Equal(t, transcript.StatusDone, item.Status)
	assert.Equal(t, transcript.RoleAssistant, item.Role)
}

func TestDispatch_ChunkingDoesNotChangeContent(t *testing.T) {
	const text = "The Starry Night was painted in 1889."
	for _, size := range []int{1, 2, 5, 11, len(text)} {
		t.Run(fmt.Sprintf("chunk=%d", size), func(t *testing.T) {
			c, conn := connected(t)
			conn.deliver(assistantItem("a"))
			for i := 0; i < len(text); i += size {
				conn.deliver(textDelta("a", text[i:min(i+size, len(text))]))
			}
			conn.deliver(itemDone("a"))

			item, _ := c.Transcript().Get("a")
			assert.Equal(t, text, item.Content)
		})
	}
}

func TestDispatch_DuplicateItemCreated(t *testing.T) {
	c, conn := connected(t)
	conn.deliver(assistantItem("a"))
	conn.deliver(textDelta("a", "Hi"))
	conn.deliver(assistantItem("a"))

	assert.Equal(t, 2, c.Transcript().Len(), "breadcrumb plus one message")
	item, _ := c.Transcript().Get("a")
	assert.Equal(t, "Hi", item.Content)
}

func TestDispatch_MalformedEventsAreDropped(t *testing.T) {
	c, conn := connected(t)
	var dropped atomic.Int32
	unsub := c.Bus().Subscribe(events.EventDispatchError, func(*events.Event) { dropped.Add(1) })
	defer unsub()

	conn.deliver(assistantItem("a"))
	conn.deliver(textDelta("a", "Hel"))
	conn.deliver(`not json`)
	conn.deliver(`{"no_type":true}`)
	conn.deliver(`{"type":"response.text.delta","item_id":"a","delta":5}`)
	conn.deliver(`{"type":"conversation.item.created","item":{"type":"message"}}`)
	conn.deliver(textDelta("a", "lo"))

	item, _ := c.Transcript().Get("a")
	assert.Equal(t, "Hello", item.Content)
	require.Eventually(t, func() bool { return dropped.Load() == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusConnected, c.Status())
}

func TestDispatch_DeltaForUnknownItemIsIgnored(t *testing.T) {
	c, conn := connected(t)
	var dropped atomic.Int32
	unsub := c.Bus().Subscribe(events.EventDispatchError, func(*events.Event) { dropped.Add(1) })
	defer unsub()

	conn.deliver(textDelta("ghost", "boo"))
	conn.deliver(itemDone("ghost"))

	_, ok := c.Transcript().Get("ghost")
	assert.False(t, ok)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, dropped.Load())
}

func TestDispatch_UserAudioTranscription(t *testing.T) {
	c, conn := connected(t)

	conn.deliver(`{"type":"conversation.item.created","item":{"id":"u1","type":"message","role":"user","content":[{"type":"input_audio"}]}}`)
	item, _ := c.Transcript().Get("u1")
	assert.Equal(t, transcript.PlaceholderTranscribing, item.Text())
	assert.Equal(t, transcript.StatusInProgress, item.Status)

	conn.deliver(`{"type":"conversation.item.input_audio_transcription.delta","item_id":"u1","delta":"where is "}`)
	conn.deliver(`{"type":"conversation.item.input_audio_transcription.delta","item_id":"u1","delta":"the cafe"}`)
	item, _ = c.Transcript().Get("u1")
	assert.Equal(t, "where is the cafe", item.Transcription)

	conn.deliver(`{"type":"conversation.item.input_audio_transcription.completed","item_id":"u1","transcript":"Where is the café?"}`)
	item, _ = c.Transcript().Get("u1")
	assert.Equal(t, "Where is the café?", item.Text())
	assert.Equal(t, transcript.StatusDone, item.Status)
}

func TestDispatch_TranscriptionFailed(t *testing.T) {
	c, conn := connected(t)
	conn.deliver(`{"type":"conversation.item.created","item":{"id":"u1","type":"message","role":"user"}}`)
	conn.deliver(`{"type":"conversation.item.input_audio_transcription.failed","item_id":"u1","error":{"message":"too short"}}`)

	item, _ := c.Transcript().Get("u1")
	assert.Equal(t, transcript.PlaceholderInaudible, item.Text())
	assert.Equal(t, transcript.StatusDone, item.Status)
}

func TestDispatch_UserTextItemIsDone(t *testing.T) {
	c, conn := connected(t)
	conn.deliver(`{"type":"conversation.item.created","item":{"id":"u2","type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]}}`)

	item, _ := c.Transcript().Get("u2")
	assert.Equal(t, "hi", item.Content)
	assert.Equal(t, transcript.StatusDone, item.Status)
}

func TestDispatch_OutputAudioState(t *testing.T) {
	c, conn := connected(t)

	conn.deliver(`{"type":"output_audio_buffer.started","response_id":"r1"}`)
	assert.True(t, c.Snapshot().OutputAudioActive)
	conn.deliver(`{"type":"output_audio_buffer.stopped","response_id":"r1"}`)
	assert.False(t, c.Snapshot().OutputAudioActive)

	conn.deliver(`{"type":"output_audio_buffer.started"}`)
	conn.deliver(`{"type":"output_audio_buffer.cleared"}`)
	assert.False(t, c.Snapshot().OutputAudioActive)
}

func TestDispatch_SessionCreatedRecordsRemoteID(t *testing.T) {
	c, conn := connected(t)
	conn.deliver(`{"type":"session.created","session":{"id":"sess_remote"}}`)
	assert.Equal(t, "sess_remote", c.Snapshot().RemoteSessionID)

	c.Disconnect()
	assert.Empty(t, c.Snapshot().RemoteSessionID)
}

func TestDispatch_PublishesServerEvents(t *testing.T) {
	c, conn := connected(t)
	seen := make(chan string, 8)
	unsub := c.Bus().Subscribe(events.EventServerEvent, func(e *events.Event) {
		seen <- e.Data.(events.ProtocolEventData).EventType
	})
	defer unsub()

	conn.deliver(`{"type":"rate_limits.updated","event_id":"e1"}`)
	conn.deliver(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)

	var got []string
	for range 2 {
		select {
		case typ := <-seen:
			got = append(got, typ)
		case <-time.After(time.Second):
			t.Fatal("server event not published")
		}
	}
	assert.Equal(t, []string{"rate_limits.updated", "error"}, got)
}

func TestDispatch_DirectCallWhileDisconnected(t *testing.T) {
	c, _ := newTestController(t)
	c.Dispatcher().Dispatch([]byte(assistantItem("a")))
	c.Dispatcher().Dispatch([]byte(textDelta("a", strings.Repeat("x", 3))))

	item, ok := c.Transcript().Get("a")
	require.True(t, ok)
	assert.Equal(t, "xxx", item.Content)
}
