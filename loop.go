package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/formagent/agent-sdk-go/internal/budget"
	"github.com/formagent/agent-sdk-go/internal/truncate"
)

// runTurns drives the model until it stops requesting tools or a cap is hit.
// Each iteration streams one assistant message, executes its tool calls
// sequentially, folds the results into history as a user message, and goes
// around again.
func (s *Session) runTurns(ctx context.Context, events chan<- Event, ropts *receiveOptions) {
	maxTurns := s.opts.maxTurns
	if ropts.maxTurns > 0 {
		maxTurns = ropts.maxTurns
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if maxTurns > 0 && s.assistantCount() >= maxTurns {
			events <- &StopEvent{Reason: StopMaxTurns, Usage: s.Usage()}
			return
		}
		if s.budget != nil && s.budget.Exhausted() {
			events <- &StopEvent{Reason: StopMaxBudget, Usage: s.Usage()}
			return
		}

		msg, err := s.streamOneMessage(ctx, events)
		if err != nil {
			if ctx.Err() == nil {
				events <- &ErrorEvent{Err: err}
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		s.recordAssistantMessage(msg)
		events <- &MessageEvent{Message: *msg}

		uses := msg.ToolUses()
		if len(uses) == 0 {
			reason := msg.StopReason
			if reason == "" {
				reason = StopEndTurn
			}
			events <- &StopEvent{Reason: reason, Usage: s.Usage()}
			return
		}

		results := make([]ContentBlock, 0, len(uses))
		for _, use := range uses {
			if ctx.Err() != nil {
				return
			}
			results = append(results, s.executeToolCall(ctx, events, use))
		}
		s.appendToolResults(results)
	}
}

// streamOneMessage issues one provider call and decodes its stream, emitting
// text and tool_use events as they arrive.
func (s *Session) streamOneMessage(ctx context.Context, events chan<- Event) (*Message, error) {
	req := s.buildRequest()
	stream, err := s.opts.provider.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider stream: %w", err)
	}
	return decodeStream(ctx, stream, decodeCallbacks{
		onText: func(text string) {
			events <- &TextEvent{Text: text}
		},
		onToolUse: func(block ContentBlock) {
			events <- &ToolUseEvent{ID: block.ID, Name: block.Name, Input: block.Input}
		},
	})
}

func (s *Session) buildRequest() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]Message, len(s.state.Messages))
	for i, m := range s.state.Messages {
		msgs[i] = m.clone()
	}
	return &Request{
		Model:        s.opts.model,
		MaxTokens:    s.opts.maxTokens,
		SystemPrompt: s.systemPrompt,
		Messages:     msgs,
		Tools:        s.registry.Specs(),
	}
}

// recordAssistantMessage appends the message to history and accounts its
// usage exactly once.
func (s *Session) recordAssistantMessage(msg *Message) {
	s.mu.Lock()
	s.state.Messages = append(s.state.Messages, msg.clone())
	if msg.Usage != nil {
		s.state.Usage.Add(*msg.Usage)
	}
	s.state.UpdatedAt = time.Now().UTC()
	model := s.opts.model
	s.mu.Unlock()

	if s.budget != nil && msg.Usage != nil {
		s.budget.Record(model, budget.Usage{
			InputTokens:  msg.Usage.Input,
			OutputTokens: msg.Usage.Output,
		})
	}
}

func (s *Session) appendToolResults(results []ContentBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Messages = append(s.state.Messages, NewUserBlocksMessage(results...))
	s.state.UpdatedAt = time.Now().UTC()
}

func (s *Session) assistantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.state.Messages {
		if m.Role == RoleAssistant {
			n++
		}
	}
	return n
}

// executeToolCall runs the full pipeline for one tool_use block: resolve,
// pre-hooks, execute, post-hooks, truncate. Failures at any stage become an
// error tool_result rather than terminating the loop; the corresponding
// ToolResultEvent is emitted before returning.
func (s *Session) executeToolCall(ctx context.Context, events chan<- Event, use ContentBlock) ContentBlock {
	result := s.runToolPipeline(ctx, events, use)
	events <- &ToolResultEvent{
		ToolUseID: result.ToolUseID,
		Content:   result.Content,
		IsError:   result.IsError,
	}
	return result
}

func (s *Session) runToolPipeline(ctx context.Context, events chan<- Event, use ContentBlock) ContentBlock {
	sessionID := s.ID()
	logger := s.opts.logger

	def, canonical, found := s.registry.Resolve(use.Name)
	if !found {
		return NewToolResultBlock(use.ID, s.registry.UnknownToolMessage(use.Name), true)
	}

	input := use.Input
	if input == nil {
		input = map[string]any{}
	}

	pre, err := s.hooks.RunPreToolUse(ctx, sessionID, canonical, use.ID, input)
	if err != nil {
		return NewToolResultBlock(use.ID, fmt.Sprintf("hook error: %s", err.Error()), true)
	}
	emitSystemMessages(events, pre.SystemMessages)
	if pre.Stopped {
		return NewToolResultBlock(use.ID, pre.StopReason, true)
	}
	if pre.Denied {
		reason := pre.Reason
		if reason == "" {
			reason = "Permission denied by hook"
		}
		return NewToolResultBlock(use.ID, reason, true)
	}
	input = pre.Input

	content, isError := s.invokeTool(ctx, def, input, sessionID)

	post, err := s.hooks.RunPostToolUse(ctx, sessionID, canonical, use.ID, input, content, isError)
	if err != nil {
		return NewToolResultBlock(use.ID, fmt.Sprintf("hook error: %s", err.Error()), true)
	}
	emitSystemMessages(events, post.SystemMessages)
	if post.Stopped {
		return NewToolResultBlock(use.ID, post.StopReason, true)
	}
	for _, extra := range post.AdditionalContext {
		content += "\n\n" + extra
	}

	truncated, err := truncate.Apply(content, s.opts.truncation)
	if err != nil {
		logger.Warn("truncation failed", "tool", canonical, "error", err)
	} else {
		if truncated.Truncated {
			logger.Debug("tool output truncated",
				"tool", canonical, "spill", truncated.SpillPath)
		}
		content = truncated.Content
	}
	return NewToolResultBlock(use.ID, content, isError)
}

// invokeTool executes the tool, converting panics and errors into error
// results so one bad tool never kills the loop.
func (s *Session) invokeTool(ctx context.Context, def *ToolDefinition, input map[string]any, sessionID string) (content string, isError bool) {
	defer func() {
		if r := recover(); r != nil {
			content = fmt.Sprintf("tool panicked: %v", r)
			isError = true
		}
	}()
	if def.Execute == nil {
		return "tool has no executor", true
	}
	out, err := def.Execute(ctx, input, ToolContext{SessionID: sessionID})
	if err != nil {
		return err.Error(), true
	}
	if out == nil {
		return "", false
	}
	return out.Content, out.IsError
}

func emitSystemMessages(events chan<- Event, msgs []string) {
	for _, m := range msgs {
		events <- &SystemMessageEvent{Message: m}
	}
}
