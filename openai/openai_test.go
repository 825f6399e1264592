package openai

import (
	"testing"

	sdk "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agent "github.com/formagent/agent-sdk-go"
)

func TestConvertMessagesFlattensBlocks(t *testing.T) {
	msgs := []agent.Message{
		agent.NewUserMessage("hello"),
		{
			Role: agent.RoleAssistant,
			Content: []agent.ContentBlock{
				agent.NewTextBlock("checking"),
				agent.NewToolUseBlock("call_1", "read_file", map[string]any{"path": "/x"}),
			},
		},
		agent.NewUserBlocksMessage(
			agent.NewToolResultBlock("call_1", "file contents", false),
			agent.NewTextBlock("continue"),
		),
	}

	converted := convertMessages(msgs, "be brief")
	require.Len(t, converted, 5)

	assert.Equal(t, sdk.ChatMessageRoleSystem, converted[0].Role)
	assert.Equal(t, "be brief", converted[0].Content)

	assert.Equal(t, sdk.ChatMessageRoleUser, converted[1].Role)
	assert.Equal(t, "hello", converted[1].Content)

	assert.Equal(t, sdk.ChatMessageRoleAssistant, converted[2].Role)
	require.Len(t, converted[2].ToolCalls, 1)
	assert.Equal(t, "call_1", converted[2].ToolCalls[0].ID)
	assert.Equal(t, "read_file", converted[2].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"path":"/x"}`, converted[2].ToolCalls[0].Function.Arguments)

	// Tool results become separate "tool" role messages before the user text.
	assert.Equal(t, sdk.ChatMessageRoleTool, converted[3].Role)
	assert.Equal(t, "call_1", converted[3].ToolCallID)
	assert.Equal(t, sdk.ChatMessageRoleUser, converted[4].Role)
	assert.Equal(t, "continue", converted[4].Content)
}

func TestConvertMessagesNoSystem(t *testing.T) {
	converted := convertMessages([]agent.Message{agent.NewUserMessage("hi")}, "")
	require.Len(t, converted, 1)
	assert.Equal(t, sdk.ChatMessageRoleUser, converted[0].Role)
}

func TestConvertTools(t *testing.T) {
	tools := convertTools([]agent.ToolSpec{
		{Name: "search", Description: "searches", InputSchema: map[string]any{"type": "object"}},
		{Name: "bare"},
	})
	require.Len(t, tools, 2)
	assert.Equal(t, sdk.ToolTypeFunction, tools[0].Type)
	assert.Equal(t, "search", tools[0].Function.Name)
	// Nil schemas get an empty object schema so the API accepts them.
	assert.NotNil(t, tools[1].Function.Parameters)
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, agent.StopToolUse, mapFinishReason("tool_calls"))
	assert.Equal(t, agent.StopMaxTokens, mapFinishReason("length"))
	assert.Equal(t, agent.StopEndTurn, mapFinishReason("stop"))
	assert.Equal(t, agent.StopEndTurn, mapFinishReason(""))
	assert.Equal(t, agent.StopEndTurn, mapFinishReason("content_filter"))
}

func TestBuildRequest(t *testing.T) {
	req := buildRequest(&agent.Request{
		Model:     "gpt-test",
		MaxTokens: 256,
		Messages:  []agent.Message{agent.NewUserMessage("hi")},
		Tools:     []agent.ToolSpec{{Name: "search"}},
	})
	assert.Equal(t, "gpt-test", req.Model)
	assert.Equal(t, 256, req.MaxCompletionTokens)
	assert.True(t, req.Stream)
	require.NotNil(t, req.StreamOptions)
	assert.True(t, req.StreamOptions.IncludeUsage)
	assert.Len(t, req.Tools, 1)
}

// chunk-level synthesis helpers exercised without a live stream

func TestStreamSynthesizesBlocks(t *testing.T) {
	s := &stream{}

	s.started = true
	s.ensureTextBlock()
	require.Len(t, s.queue, 1)
	assert.Equal(t, agent.StreamContentBlockStart, s.queue[0].Type)
	assert.Equal(t, agent.BlockText, s.queue[0].Block.Type)

	// Re-entering text keeps the same block open.
	s.ensureTextBlock()
	assert.Len(t, s.queue, 1)

	// Switching to a tool closes the text block first.
	s.openToolBlock(0, "call_1", "search")
	require.Len(t, s.queue, 3)
	assert.Equal(t, agent.StreamContentBlockStop, s.queue[1].Type)
	assert.Equal(t, agent.StreamContentBlockStart, s.queue[2].Type)
	assert.Equal(t, "call_1", s.queue[2].Block.ID)
	assert.Equal(t, "search", s.queue[2].Block.Name)
	assert.Equal(t, 1, s.queue[2].Index)

	s.finish = "tool_calls"
	s.usage = agent.Usage{Input: 9, Output: 3}
	s.finishMessage()
	n := len(s.queue)
	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, agent.StreamContentBlockStop, s.queue[n-3].Type)
	delta := s.queue[n-2]
	assert.Equal(t, agent.StreamMessageDelta, delta.Type)
	assert.Equal(t, agent.StopToolUse, delta.StopReason)
	assert.Equal(t, agent.Usage{Input: 9, Output: 3}, *delta.Usage)
	assert.Equal(t, agent.StreamMessageStop, s.queue[n-1].Type)
}
