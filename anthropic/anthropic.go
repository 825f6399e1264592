// Package anthropic adapts the Anthropic Messages API to the engine's
// provider interface.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	agent "github.com/formagent/agent-sdk-go"
	"github.com/formagent/agent-sdk-go/internal/retry"
)

// Config configures the Anthropic provider.
type Config struct {
	// APIKey authenticates against the API. Empty falls back to the
	// ANTHROPIC_API_KEY environment variable (handled by the SDK).
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// Retry controls connection retries. Zero value uses defaults.
	Retry retry.Config
}

// Provider streams completions from the Anthropic Messages API.
type Provider struct {
	client sdk.Client
	retry  retry.Config
}

var _ agent.Provider = (*Provider)(nil)

// New creates an Anthropic provider.
func New(cfg Config) *Provider {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	rc := cfg.Retry
	if rc.MaxAttempts == 0 {
		rc = retry.DefaultConfig()
	}
	return &Provider{client: sdk.NewClient(opts...), retry: rc}
}

// Stream opens a streaming completion. Transient connection failures are
// retried with backoff before the stream is handed to the caller.
func (p *Provider) Stream(ctx context.Context, req *agent.Request) (agent.ProviderStream, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}
	inner, err := retry.DoWithValue(ctx, p.retry,
		func() (*ssestream.Stream[sdk.MessageStreamEventUnion], error) {
			s := p.client.Messages.NewStreaming(ctx, params)
			if err := s.Err(); err != nil {
				_ = s.Close()
				return nil, classify(err)
			}
			return s, nil
		})
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return &stream{inner: inner}, nil
}

// classify marks client errors permanent so retry gives up immediately;
// rate limits and server errors stay retryable.
func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return err
		case apiErr.StatusCode >= 500:
			return err
		case apiErr.StatusCode >= 400:
			return retry.Permanent(err)
		}
	}
	return err
}

func buildParams(req *agent.Request) (sdk.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return sdk.MessageNewParams{}, err
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Type: "text", Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return sdk.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func convertMessages(msgs []agent.Message) ([]sdk.MessageParam, error) {
	result := make([]sdk.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == agent.RoleSystem {
			continue
		}
		var content []sdk.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch block.Type {
			case agent.BlockText:
				content = append(content, sdk.NewTextBlock(block.Text))
			case agent.BlockToolUse:
				input := block.Input
				if input == nil {
					input = map[string]any{}
				}
				content = append(content, sdk.NewToolUseBlock(block.ID, input, block.Name))
			case agent.BlockToolResult:
				content = append(content, sdk.NewToolResultBlock(block.ToolUseID, block.Content, block.IsError))
			}
		}
		if len(content) == 0 {
			continue
		}
		if msg.Role == agent.RoleAssistant {
			result = append(result, sdk.NewAssistantMessage(content...))
		} else {
			result = append(result, sdk.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertTools(specs []agent.ToolSpec) ([]sdk.ToolUnionParam, error) {
	result := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		raw, err := json.Marshal(spec.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %s schema: %w", spec.Name, err)
		}
		var schema sdk.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: tool %s schema: %w", spec.Name, err)
		}
		param := sdk.ToolUnionParamOfTool(schema, spec.Name)
		if param.OfTool != nil && spec.Description != "" {
			param.OfTool.Description = sdk.String(spec.Description)
		}
		result = append(result, param)
	}
	return result, nil
}

// stream translates SDK stream events into the engine's abstract events.
type stream struct {
	inner   *ssestream.Stream[sdk.MessageStreamEventUnion]
	current agent.StreamEvent
}

var _ agent.ProviderStream = (*stream)(nil)

func (s *stream) Next() bool {
	for s.inner.Next() {
		ev, ok := translate(s.inner.Current())
		if !ok {
			continue
		}
		s.current = ev
		return true
	}
	return false
}

func (s *stream) Current() agent.StreamEvent { return s.current }

func (s *stream) Err() error {
	if err := s.inner.Err(); err != nil {
		return fmt.Errorf("anthropic: %w", err)
	}
	return nil
}

func (s *stream) Close() error { return s.inner.Close() }

// translate maps one SDK event to an abstract event. Events the engine does
// not model (ping, thinking blocks) are dropped.
func translate(event sdk.MessageStreamEventUnion) (agent.StreamEvent, bool) {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		return agent.StreamEvent{
			Type:  agent.StreamMessageStart,
			Usage: &agent.Usage{Input: ev.Message.Usage.InputTokens},
		}, true
	case sdk.ContentBlockStartEvent:
		idx := int(ev.Index)
		switch start := ev.ContentBlock.AsAny().(type) {
		case sdk.TextBlock:
			block := agent.NewTextBlock("")
			return agent.StreamEvent{Type: agent.StreamContentBlockStart, Index: idx, Block: &block}, true
		case sdk.ToolUseBlock:
			block := agent.NewToolUseBlock(start.ID, start.Name, nil)
			return agent.StreamEvent{Type: agent.StreamContentBlockStart, Index: idx, Block: &block}, true
		default:
			return agent.StreamEvent{}, false
		}
	case sdk.ContentBlockDeltaEvent:
		idx := int(ev.Index)
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			return agent.StreamEvent{
				Type:  agent.StreamContentBlockDelta,
				Index: idx,
				Delta: agent.StreamDelta{Type: agent.DeltaText, Text: delta.Text},
			}, true
		case sdk.InputJSONDelta:
			return agent.StreamEvent{
				Type:  agent.StreamContentBlockDelta,
				Index: idx,
				Delta: agent.StreamDelta{Type: agent.DeltaInputJSON, PartialJSON: delta.PartialJSON},
			}, true
		default:
			return agent.StreamEvent{}, false
		}
	case sdk.ContentBlockStopEvent:
		return agent.StreamEvent{Type: agent.StreamContentBlockStop, Index: int(ev.Index)}, true
	case sdk.MessageDeltaEvent:
		return agent.StreamEvent{
			Type:       agent.StreamMessageDelta,
			StopReason: string(ev.Delta.StopReason),
			Usage:      &agent.Usage{Output: ev.Usage.OutputTokens},
		}, true
	case sdk.MessageStopEvent:
		return agent.StreamEvent{Type: agent.StreamMessageStop}, true
	default:
		return agent.StreamEvent{}, false
	}
}
