package anthropic

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agent "github.com/formagent/agent-sdk-go"
)

// sseStream builds a real SDK stream from SSE wire text.
func sseStream(body string) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	resp := &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
	return ssestream.NewStream[sdk.MessageStreamEventUnion](ssestream.NewDecoder(resp), nil)
}

func sse(events ...[2]string) string {
	var sb strings.Builder
	for _, e := range events {
		fmt.Fprintf(&sb, "event: %s\ndata: %s\n\n", e[0], e[1])
	}
	return sb.String()
}

func drain(t *testing.T, s agent.ProviderStream) []agent.StreamEvent {
	t.Helper()
	var events []agent.StreamEvent
	for s.Next() {
		events = append(events, s.Current())
	}
	require.NoError(t, s.Err())
	return events
}

func TestStreamTranslatesTextMessage(t *testing.T) {
	body := sse(
		[2]string{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"m","stop_reason":null,"usage":{"input_tokens":11,"output_tokens":0}}}`},
		[2]string{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`},
		[2]string{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		[2]string{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":4}}`},
		[2]string{"message_stop", `{"type":"message_stop"}`},
	)

	events := drain(t, &stream{inner: sseStream(body)})
	require.Len(t, events, 6)
	assert.Equal(t, agent.StreamMessageStart, events[0].Type)
	assert.Equal(t, int64(11), events[0].Usage.Input)
	assert.Equal(t, agent.StreamContentBlockStart, events[1].Type)
	assert.Equal(t, agent.BlockText, events[1].Block.Type)
	assert.Equal(t, "Hi", events[2].Delta.Text)
	assert.Equal(t, agent.StreamContentBlockStop, events[3].Type)
	assert.Equal(t, "end_turn", events[4].StopReason)
	assert.Equal(t, int64(4), events[4].Usage.Output)
	assert.Equal(t, agent.StreamMessageStop, events[5].Type)
}

func TestStreamTranslatesToolUse(t *testing.T) {
	body := sse(
		[2]string{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"Read","input":{}}}`},
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"path\":\"/x\"}"}}`},
		[2]string{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		[2]string{"message_stop", `{"type":"message_stop"}`},
	)

	events := drain(t, &stream{inner: sseStream(body)})
	require.Len(t, events, 4)
	assert.Equal(t, agent.BlockToolUse, events[0].Block.Type)
	assert.Equal(t, "toolu_1", events[0].Block.ID)
	assert.Equal(t, "Read", events[0].Block.Name)
	assert.Equal(t, agent.DeltaInputJSON, events[1].Delta.Type)
	assert.Equal(t, `{"path":"/x"}`, events[1].Delta.PartialJSON)
}

func TestStreamDropsPing(t *testing.T) {
	body := sse(
		[2]string{"ping", `{"type":"ping"}`},
		[2]string{"message_stop", `{"type":"message_stop"}`},
	)
	events := drain(t, &stream{inner: sseStream(body)})
	require.Len(t, events, 1)
	assert.Equal(t, agent.StreamMessageStop, events[0].Type)
}

func TestConvertMessages(t *testing.T) {
	msgs := []agent.Message{
		agent.NewUserMessage("hello"),
		{
			Role: agent.RoleAssistant,
			Content: []agent.ContentBlock{
				agent.NewTextBlock("on it"),
				agent.NewToolUseBlock("toolu_1", "Read", map[string]any{"path": "/x"}),
			},
		},
		agent.NewUserBlocksMessage(agent.NewToolResultBlock("toolu_1", "contents", false)),
	}

	converted, err := convertMessages(msgs)
	require.NoError(t, err)
	require.Len(t, converted, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, converted[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, converted[1].Role)
	assert.Len(t, converted[1].Content, 2)
	assert.Equal(t, sdk.MessageParamRoleUser, converted[2].Role)
}

func TestConvertMessagesSkipsEmptyAndSystem(t *testing.T) {
	msgs := []agent.Message{
		{Role: agent.RoleSystem, Content: []agent.ContentBlock{agent.NewTextBlock("sys")}},
		{Role: agent.RoleUser},
	}
	converted, err := convertMessages(msgs)
	require.NoError(t, err)
	assert.Empty(t, converted)
}

func TestConvertTools(t *testing.T) {
	specs := []agent.ToolSpec{{
		Name:        "Read",
		Description: "reads a file",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
			"required":   []any{"path"},
		},
	}}
	tools, err := convertTools(specs)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "Read", tools[0].OfTool.Name)
	assert.Equal(t, "reads a file", tools[0].OfTool.Description.Value)
}

func TestBuildParams(t *testing.T) {
	params, err := buildParams(&agent.Request{
		Model:        "test-model",
		MaxTokens:    512,
		SystemPrompt: "be brief",
		Messages:     []agent.Message{agent.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, sdk.Model("test-model"), params.Model)
	assert.Equal(t, int64(512), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "be brief", params.System[0].Text)
}
