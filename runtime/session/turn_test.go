package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/realtime"
	"github.com/tccoin/museum-agent/runtime/transcript"
)

func TestCancelCurrentTurn_NothingToCancel(t *testing.T) {
	c, conn := connected(t)

	c.Turns().CancelCurrentTurn()
	assert.Empty(t, conn.Types())

	conn.deliver(assistantItem("a"))
	conn.deliver(textDelta("a", "Done already."))
	conn.deliver(itemDone("a"))
	c.Turns().CancelCurrentTurn()
	assert.Empty(t, conn.Types(), "a finished turn must not be cancelled")
}

func TestCancelCurrentTurn_IndependentSends(t *testing.T) {
	t.Run("in progress without audio", func(t *testing.T) {
		c, conn := connected(t)
		conn.deliver(assistantItem("a"))
		c.Turns().CancelCurrentTurn()
		assert.Equal(t, []string{realtime.TypeResponseCancel}, conn.Types())
	})

	t.Run("audio after finished item", func(t *testing.T) {
		c, conn := connected(t)
		conn.deliver(assistantItem("a"))
		conn.deliver(itemDone("a"))
		conn.deliver(`{"type":"output_audio_buffer.started"}`)
		c.Turns().CancelCurrentTurn()
		assert.Equal(t, []string{realtime.TypeOutputAudioBufferClear}, conn.Types())
		assert.False(t, c.Snapshot().OutputAudioActive)
	})
}

func TestTalkButton_BargeIn(t *testing.T) {
	c, conn := connected(t, func(cfg *Config) { cfg.Preferences = nil })
	require.NoError(t, c.SetPushToTalk(true))
	conn.reset()

	conn.deliver(assistantItem("a"))
	conn.deliver(textDelta("a", "Let me tell you about"))
	conn.deliver(`{"type":"output_audio_buffer.started"}`)

	require.NoError(t, c.Turns().TalkButtonDown())
	assert.Equal(t, []string{
		realtime.TypeResponseCancel,
		realtime.TypeOutputAudioBufferClear,
		realtime.TypeInputAudioBufferClear,
	}, conn.Types())
	assert.True(t, c.Snapshot().UserSpeaking)

	conn.reset()
	require.NoError(t, c.Turns().TalkButtonUp())
	assert.Equal(t, []string{realtime.TypeInputAudioBufferCommit, realtime.TypeResponseCreate}, conn.Types())
	assert.False(t, c.Snapshot().UserSpeaking)

	conn.reset()
	require.NoError(t, c.Turns().TalkButtonUp())
	assert.Empty(t, conn.Types(), "second key-up must not commit again")
}

func TestTalkButtonUp_WithoutDown(t *testing.T) {
	c, conn := connected(t)
	require.NoError(t, c.Turns().TalkButtonUp())
	assert.Empty(t, conn.Types())
}

func TestTalkButton_NotConnected(t *testing.T) {
	c, _ := newTestController(t)
	assert.ErrorIs(t, c.Turns().TalkButtonDown(), pkgerrors.ErrNotConnected)
	assert.ErrorIs(t, c.Turns().TalkButtonUp(), pkgerrors.ErrNotConnected)
	assert.False(t, c.Snapshot().UserSpeaking)
}

func TestSendText(t *testing.T) {
	c, conn := connected(t)

	require.NoError(t, c.Turns().SendText("   "))
	assert.Empty(t, conn.Types())

	conn.deliver(assistantItem("a"))
	require.NoError(t, c.Turns().SendText("  what is this painting?  "))
	require.Equal(t, []string{
		realtime.TypeResponseCancel,
		realtime.TypeConversationItemCreate,
		realtime.TypeResponseCreate,
	}, conn.Types())

	item := conn.Sent(t, 1)["item"].(map[string]any)
	assert.Equal(t, "user", item["role"])
	content := item["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "input_text", content["type"])
	assert.Equal(t, "what is this painting?", content["text"])
}

func TestSendSimulatedUserMessage(t *testing.T) {
	c, conn := connected(t)
	conn.deliver(assistantItem("a"))

	require.NoError(t, c.Turns().SendSimulatedUserMessage("hi"))
	require.Equal(t, []string{realtime.TypeConversationItemCreate, realtime.TypeResponseCreate}, conn.Types(),
		"simulated messages do not interrupt")

	id := conn.Sent(t, 0)["item"].(map[string]any)["id"].(string)
	assert.Len(t, id, simulatedIDLength)
	item, ok := c.Transcript().Get(id)
	require.True(t, ok)
	assert.Equal(t, transcript.RoleUser, item.Role)
	assert.Equal(t, "hi", item.Content)
	assert.Equal(t, transcript.StatusDone, item.Status)

	// The server echo of the same item is absorbed.
	before := c.Transcript().Len()
	conn.deliver(`{"type":"conversation.item.created","item":{"id":"` + id + `","type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]}}`)
	assert.Equal(t, before, c.Transcript().Len())
}
