// Package openai adapts the OpenAI Chat Completions API to the engine's
// provider interface. Chat completion deltas carry no block structure, so the
// stream synthesizes content_block events: one text block for streamed
// content and one tool_use block per streamed tool call.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	sdk "github.com/sashabaranov/go-openai"

	agent "github.com/formagent/agent-sdk-go"
	"github.com/formagent/agent-sdk-go/internal/retry"
)

// Config configures the OpenAI provider.
type Config struct {
	// APIKey authenticates against the API (required).
	APIKey string
	// BaseURL overrides the API endpoint, for OpenAI-compatible servers.
	BaseURL string
	// Retry controls connection retries. Zero value uses defaults.
	Retry retry.Config
}

// Provider streams completions from the OpenAI Chat Completions API.
type Provider struct {
	client *sdk.Client
	retry  retry.Config
}

var _ agent.Provider = (*Provider)(nil)

// New creates an OpenAI provider.
func New(cfg Config) *Provider {
	clientCfg := sdk.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	rc := cfg.Retry
	if rc.MaxAttempts == 0 {
		rc = retry.DefaultConfig()
	}
	return &Provider{client: sdk.NewClientWithConfig(clientCfg), retry: rc}
}

// Stream opens a streaming completion. Transient connection failures are
// retried with backoff.
func (p *Provider) Stream(ctx context.Context, req *agent.Request) (agent.ProviderStream, error) {
	chatReq := buildRequest(req)
	inner, err := retry.DoWithValue(ctx, p.retry, func() (*sdk.ChatCompletionStream, error) {
		s, err := p.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return nil, classify(err)
		}
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return &stream{inner: inner}, nil
}

func classify(err error) error {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return err
		case apiErr.HTTPStatusCode >= 500:
			return err
		case apiErr.HTTPStatusCode >= 400:
			return retry.Permanent(err)
		}
	}
	return err
}

func buildRequest(req *agent.Request) sdk.ChatCompletionRequest {
	chatReq := sdk.ChatCompletionRequest{
		Model:    req.Model,
		Messages: convertMessages(req.Messages, req.SystemPrompt),
		Stream:   true,
		StreamOptions: &sdk.StreamOptions{
			IncludeUsage: true,
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}
	return chatReq
}

// convertMessages flattens the engine's block-structured history into chat
// messages. Tool results each become a separate "tool" role message; the
// system prompt leads the list.
func convertMessages(msgs []agent.Message, system string) []sdk.ChatCompletionMessage {
	var result []sdk.ChatCompletionMessage
	if system != "" {
		result = append(result, sdk.ChatCompletionMessage{
			Role:    sdk.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range msgs {
		switch msg.Role {
		case agent.RoleAssistant:
			oaiMsg := sdk.ChatCompletionMessage{
				Role:    sdk.ChatMessageRoleAssistant,
				Content: msg.Text(),
			}
			for _, use := range msg.ToolUses() {
				args, err := json.Marshal(use.Input)
				if err != nil {
					args = []byte("{}")
				}
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, sdk.ToolCall{
					ID:   use.ID,
					Type: sdk.ToolTypeFunction,
					Function: sdk.FunctionCall{
						Name:      use.Name,
						Arguments: string(args),
					},
				})
			}
			result = append(result, oaiMsg)
		case agent.RoleUser:
			text := ""
			for _, block := range msg.Content {
				switch block.Type {
				case agent.BlockText:
					text += block.Text
				case agent.BlockToolResult:
					result = append(result, sdk.ChatCompletionMessage{
						Role:       sdk.ChatMessageRoleTool,
						Content:    block.Content,
						ToolCallID: block.ToolUseID,
					})
				}
			}
			if text != "" {
				result = append(result, sdk.ChatCompletionMessage{
					Role:    sdk.ChatMessageRoleUser,
					Content: text,
				})
			}
		}
	}
	return result
}

func convertTools(specs []agent.ToolSpec) []sdk.Tool {
	tools := make([]sdk.Tool, len(specs))
	for i, spec := range specs {
		schema := spec.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools[i] = sdk.Tool{
			Type: sdk.ToolTypeFunction,
			Function: &sdk.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  schema,
			},
		}
	}
	return tools
}

// stream converts chat deltas into the engine's block-structured events.
// Events synthesized from one chunk are queued and drained before the next
// Recv.
type stream struct {
	inner   *sdk.ChatCompletionStream
	queue   []agent.StreamEvent
	current agent.StreamEvent
	err     error
	done    bool

	started   bool
	blockOpen bool
	blockIdx  int
	toolIdx   int // index of the open tool call within the chunk stream, -1 for text
	finish    string
	usage     agent.Usage
}

var _ agent.ProviderStream = (*stream)(nil)

func (s *stream) Next() bool {
	for {
		if len(s.queue) > 0 {
			s.current = s.queue[0]
			s.queue = s.queue[1:]
			return true
		}
		if s.done {
			return false
		}
		s.pump()
	}
}

func (s *stream) Current() agent.StreamEvent { return s.current }

func (s *stream) Err() error {
	if s.err != nil {
		return fmt.Errorf("openai: %w", s.err)
	}
	return nil
}

func (s *stream) Close() error { return s.inner.Close() }

// pump reads one chunk and appends the synthesized events to the queue.
func (s *stream) pump() {
	resp, err := s.inner.Recv()
	if err != nil {
		s.done = true
		if errors.Is(err, io.EOF) {
			s.finishMessage()
			return
		}
		s.err = err
		return
	}

	if !s.started {
		s.started = true
		s.queue = append(s.queue, agent.StreamEvent{
			Type:  agent.StreamMessageStart,
			Usage: &agent.Usage{},
		})
	}
	if resp.Usage != nil {
		s.usage = agent.Usage{
			Input:  int64(resp.Usage.PromptTokens),
			Output: int64(resp.Usage.CompletionTokens),
		}
	}
	if len(resp.Choices) == 0 {
		return
	}
	choice := resp.Choices[0]

	if choice.Delta.Content != "" {
		s.ensureTextBlock()
		s.queue = append(s.queue, agent.StreamEvent{
			Type:  agent.StreamContentBlockDelta,
			Index: s.blockIdx,
			Delta: agent.StreamDelta{Type: agent.DeltaText, Text: choice.Delta.Content},
		})
	}

	for _, tc := range choice.Delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		if tc.ID != "" || !s.blockOpen || s.toolIdx != idx {
			s.openToolBlock(idx, tc.ID, tc.Function.Name)
		}
		if tc.Function.Arguments != "" {
			s.queue = append(s.queue, agent.StreamEvent{
				Type:  agent.StreamContentBlockDelta,
				Index: s.blockIdx,
				Delta: agent.StreamDelta{Type: agent.DeltaInputJSON, PartialJSON: tc.Function.Arguments},
			})
		}
	}

	if choice.FinishReason != "" {
		s.finish = string(choice.FinishReason)
	}
}

// ensureTextBlock opens a text block, closing any open tool block first.
func (s *stream) ensureTextBlock() {
	if s.blockOpen && s.toolIdx == -1 {
		return
	}
	s.closeBlock()
	block := agent.NewTextBlock("")
	s.blockOpen = true
	s.toolIdx = -1
	s.queue = append(s.queue, agent.StreamEvent{
		Type:  agent.StreamContentBlockStart,
		Index: s.blockIdx,
		Block: &block,
	})
}

func (s *stream) openToolBlock(idx int, id, name string) {
	s.closeBlock()
	block := agent.NewToolUseBlock(id, name, nil)
	s.blockOpen = true
	s.toolIdx = idx
	s.queue = append(s.queue, agent.StreamEvent{
		Type:  agent.StreamContentBlockStart,
		Index: s.blockIdx,
		Block: &block,
	})
}

func (s *stream) closeBlock() {
	if !s.blockOpen {
		return
	}
	s.queue = append(s.queue, agent.StreamEvent{
		Type:  agent.StreamContentBlockStop,
		Index: s.blockIdx,
	})
	s.blockOpen = false
	s.blockIdx++
}

// finishMessage closes the open block and emits the trailing message_delta
// and message_stop pair. Prompt tokens only arrive in the final usage chunk,
// after message_start already went out, so the full tally rides on
// message_delta.
func (s *stream) finishMessage() {
	s.closeBlock()
	s.queue = append(s.queue,
		agent.StreamEvent{
			Type:       agent.StreamMessageDelta,
			StopReason: mapFinishReason(s.finish),
			Usage:      &agent.Usage{Input: s.usage.Input, Output: s.usage.Output},
		},
		agent.StreamEvent{Type: agent.StreamMessageStop},
	)
}

func mapFinishReason(reason string) string {
	switch reason {
	case "tool_calls", "function_call":
		return agent.StopToolUse
	case "length":
		return agent.StopMaxTokens
	case "stop", "":
		return agent.StopEndTurn
	default:
		return agent.StopEndTurn
	}
}
