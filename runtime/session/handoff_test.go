package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tccoin/museum-agent/runtime/events"
	"github.com/tccoin/museum-agent/runtime/realtime"
	"github.com/tccoin/museum-agent/runtime/transcript"
)

func TestHandoff_Success(t *testing.T) {
	c, conn := connected(t, func(cfg *Config) { cfg.GreetingDelay = 20 * time.Millisecond })
	// Let the connect greeting fire before watching sends.
	require.Eventually(t, func() bool { return len(conn.Types()) == 1 }, time.Second, 5*time.Millisecond)
	conn.reset()

	completed := make(chan events.AgentChangeData, 1)
	unsub := c.Bus().Subscribe(events.EventHandoffCompleted, func(e *events.Event) {
		completed <- e.Data.(events.AgentChangeData)
	})
	defer unsub()

	conn.deliver(responseDoneWithCall("fc1", "call_t", "transfer_to_Quest",
		`{"rationale_for_transfer":"user wants the hunt","conversation_context":"likes Monet"}`))

	s := c.Snapshot()
	assert.Equal(t, "Quest", s.Agent.Name)
	assert.Equal(t, "sage", s.Voice)

	require.Equal(t, []string{
		realtime.TypeConversationItemCreate,
		realtime.TypeInputAudioBufferClear,
		realtime.TypeSessionUpdate,
	}, conn.Types())
	callID, out := functionOutput(t, conn, 0)
	assert.Equal(t, "call_t", callID)
	assert.Equal(t, map[string]any{"destination_agent": "Quest", "did_transfer": true}, out)

	session := conn.Sent(t, 2)["session"].(map[string]any)
	assert.Equal(t, "You are Quest.", session["instructions"])
	assert.Equal(t, "sage", session["voice"])
	tools := session["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "transfer_to_Fetch", tools[0].(map[string]any)["name"])

	require.Eventually(t, func() bool { return len(conn.Types()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, realtime.TypeResponseCreate, conn.Types()[3])

	select {
	case data := <-completed:
		assert.Equal(t, "Fetch", data.From)
		assert.Equal(t, "Quest", data.To)
		assert.Equal(t, "call_t", data.CallID)
	case <-time.After(time.Second):
		t.Fatal("no handoff event")
	}

	crumb, ok := c.Transcript().MostRecent(transcript.RoleSystem, transcript.KindBreadcrumb)
	require.True(t, ok)
	assert.Equal(t, "Agent: Quest", crumb.Content)
}

func TestHandoff_UnauthorizedLeavesAgentUnchanged(t *testing.T) {
	c, conn := connected(t)
	require.NoError(t, c.SelectAgent("Vault"))
	conn.reset()

	failed := make(chan events.AgentChangeData, 1)
	unsub := c.Bus().Subscribe(events.EventHandoffFailed, func(e *events.Event) {
		failed <- e.Data.(events.AgentChangeData)
	})
	defer unsub()

	conn.deliver(argumentsDone("call_x", "transfer_to_Fetch", `{}`))

	assert.Equal(t, "Vault", c.Snapshot().Agent.Name)
	require.Equal(t, []string{realtime.TypeConversationItemCreate, realtime.TypeResponseCreate}, conn.Types())
	_, out := functionOutput(t, conn, 0)
	assert.Equal(t, false, out["did_transfer"])
	assert.Contains(t, out["error"], "may not transfer")

	select {
	case data := <-failed:
		assert.Equal(t, "Vault", data.From)
		assert.Equal(t, "Fetch", data.To)
		assert.Error(t, data.Error)
	case <-time.After(time.Second):
		t.Fatal("no handoff failure event")
	}
}

func TestHandoff_UnknownTarget(t *testing.T) {
	c, conn := connected(t)

	conn.deliver(argumentsDone("call_u", "transfer_to_Nobody", `{}`))

	assert.Equal(t, "Fetch", c.Snapshot().Agent.Name)
	require.Len(t, conn.Types(), 2)
	_, out := functionOutput(t, conn, 0)
	assert.Equal(t, false, out["did_transfer"])
	assert.Contains(t, out["error"], "unknown agent")
}

func TestHandoff_BackAndForth(t *testing.T) {
	c, conn := connected(t)

	conn.deliver(argumentsDone("call_1", "transfer_to_Quest", `{}`))
	require.Equal(t, "Quest", c.Snapshot().Agent.Name)

	// Quest may only return to Fetch.
	conn.deliver(argumentsDone("call_2", "transfer_to_Vault", `{}`))
	require.Equal(t, "Quest", c.Snapshot().Agent.Name)

	conn.deliver(argumentsDone("call_3", "transfer_to_Fetch", `{}`))
	assert.Equal(t, "Fetch", c.Snapshot().Agent.Name)
	assert.Equal(t, "sage", c.Snapshot().Voice, "an agent without a voice keeps the current one")
}
