package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/realtime"
)

var showImageSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"image_path": {"type": "string"},
		"alt_text": {"type": "string"}
	},
	"required": ["image_path"]
}`)

func newShowImageRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r := NewRegistry(opts...)
	err := r.Register(&ToolDescriptor{Name: "show_image", Description: "Show an image", InputSchema: showImageSchema},
		HandlerFunc(func(_ context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ImagePath string `json:"image_path"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			return map[string]any{"shown": in.ImagePath}, nil
		}))
	require.NoError(t, err)
	return r
}

func TestRegistry_Execute(t *testing.T) {
	r := newShowImageRegistry(t)

	result, err := r.Execute(context.Background(), ToolCall{
		Name: "show_image",
		ID:   "call_1",
		Args: json.RawMessage(`{"image_path":"/images/IMG_7378.jpg"}`),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Error)
	assert.Equal(t, "call_1", result.ID)
	assert.JSONEq(t, `{"shown":"/images/IMG_7378.jpg"}`, result.Output())
}

func TestRegistry_Execute_InvalidArgs(t *testing.T) {
	r := newShowImageRegistry(t)

	result, err := r.Execute(context.Background(), ToolCall{Name: "show_image", Args: json.RawMessage(`{"alt_text":"x"}`)})
	require.NoError(t, err)
	assert.Contains(t, result.Error, "args_invalid")

	result, err = r.Execute(context.Background(), ToolCall{Name: "show_image", Args: json.RawMessage(`{"image_path":`)})
	require.NoError(t, err)
	assert.Contains(t, result.Error, "args_malformed")

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(result.Output()), &out))
	assert.NotEmpty(t, out["error"])
}

func TestRegistry_Execute_NotRegistered(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Describe(&ToolDescriptor{Name: "lookup"}))

	_, err := r.Execute(context.Background(), ToolCall{Name: "lookup"})
	assert.ErrorIs(t, err, pkgerrors.ErrToolNotRegistered)
}

func TestRegistry_Execute_HandlerErrorAndPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Handle("fails", HandlerFunc(func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("backend down")
	})))
	require.NoError(t, r.Handle("panics", HandlerFunc(func(context.Context, json.RawMessage) (any, error) {
		panic("boom")
	})))

	result, err := r.Execute(context.Background(), ToolCall{Name: "fails"})
	require.NoError(t, err)
	assert.Equal(t, "backend down", result.Error)

	result, err = r.Execute(context.Background(), ToolCall{Name: "panics"})
	require.NoError(t, err)
	assert.Contains(t, result.Error, "panicked")
}

func TestRegistry_Execute_Timeout(t *testing.T) {
	r := NewRegistry(WithTimeout(20 * time.Millisecond))
	require.NoError(t, r.Handle("slow", HandlerFunc(func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return "late", nil
	})))

	result, err := r.Execute(context.Background(), ToolCall{Name: "slow"})
	require.NoError(t, err)
	assert.Equal(t, ErrToolTimeout.Error(), result.Error)
}

func TestRegistry_RegistrationErrors(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Describe(&ToolDescriptor{}), ErrToolNameRequired)
	assert.ErrorIs(t, r.Handle("x", nil), ErrHandlerRequired)
	assert.Error(t, r.Describe(&ToolDescriptor{Name: "bad", InputSchema: json.RawMessage(`{"type": 12}`)}))
}

func TestRegistry_DescribeSameNameTwice(t *testing.T) {
	r := newShowImageRegistry(t)

	// Same schema with different key order and spacing is accepted.
	reordered := json.RawMessage(`{"required":["image_path"],"properties":{"alt_text":{"type":"string"},"image_path":{"type":"string"}},"type":"object"}`)
	require.NoError(t, r.Describe(&ToolDescriptor{Name: "show_image", InputSchema: reordered}))

	narrower := json.RawMessage(`{"type":"object","properties":{"image_path":{"type":"integer"}}}`)
	err := r.Describe(&ToolDescriptor{Name: "show_image", InputSchema: narrower})
	require.ErrorIs(t, err, ErrToolConflict)
	assert.Contains(t, err.Error(), "show_image")

	// The first schema still governs validation.
	result, err := r.Execute(context.Background(), ToolCall{Name: "show_image", Args: json.RawMessage(`{"image_path":"/a.jpg"}`)})
	require.NoError(t, err)
	assert.Empty(t, result.Error)
}

func TestSameSchema(t *testing.T) {
	assert.True(t, SameSchema(nil, nil))
	assert.False(t, SameSchema(nil, json.RawMessage(`{}`)))
	assert.True(t, SameSchema(json.RawMessage(`{"a":1,"b":2}`), json.RawMessage(`{ "b": 2, "a": 1 }`)))
	assert.False(t, SameSchema(json.RawMessage(`{"a":1}`), json.RawMessage(`{"a":2}`)))
	assert.False(t, SameSchema(json.RawMessage(`{`), json.RawMessage(`{`)))
}

func TestRegistry_List(t *testing.T) {
	r := newShowImageRegistry(t)
	require.NoError(t, r.Describe(&ToolDescriptor{Name: "alpha"}))
	require.NoError(t, r.Handle("zeta", HandlerFunc(func(context.Context, json.RawMessage) (any, error) { return nil, nil })))

	assert.Equal(t, []string{"alpha", "show_image", "zeta"}, r.List())
	assert.True(t, r.HasHandler("show_image"))
	assert.False(t, r.HasHandler("alpha"))
	assert.NotNil(t, r.Get("alpha"))
	assert.Nil(t, r.Get("missing"))
}

func TestDescriptorFromDefinition(t *testing.T) {
	desc, err := DescriptorFromDefinition(realtime.ToolDefinition{
		Type:        "function",
		Name:        "show_image",
		Description: "Show an image to the user",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"image_path"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "show_image", desc.Name)
	assert.JSONEq(t, `{"type":"object","required":["image_path"]}`, string(desc.InputSchema))

	bare, err := DescriptorFromDefinition(realtime.ToolDefinition{Name: "noop"})
	require.NoError(t, err)
	assert.Empty(t, bare.InputSchema)
}

func TestToolResultOutput(t *testing.T) {
	assert.Equal(t, "{}", (&ToolResult{}).Output())
	assert.Equal(t, `{"error":"nope"}`, (&ToolResult{Error: "nope"}).Output())
	assert.Equal(t, `true`, (&ToolResult{Result: json.RawMessage(`true`)}).Output())
}
