package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/formagent/agent-sdk-go/internal/schema"
)

// ToolOutput is the result of a tool execution.
type ToolOutput struct {
	Content string
	IsError bool
}

// TextOutput is a convenience constructor for a successful tool output.
func TextOutput(content string) *ToolOutput {
	return &ToolOutput{Content: content}
}

// ErrorOutput is a convenience constructor for an error tool output.
func ErrorOutput(content string) *ToolOutput {
	return &ToolOutput{Content: content, IsError: true}
}

// ToolContext carries per-call metadata into a tool. Cancellation arrives
// through the ctx argument of Execute; tools are expected to observe it
// cooperatively.
type ToolContext struct {
	SessionID string
}

// ExecuteFunc runs a tool with its parsed JSON input.
type ExecuteFunc func(ctx context.Context, input map[string]any, tc ToolContext) (*ToolOutput, error)

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	// InputSchema is a JSON-Schema object for the tool input.
	InputSchema map[string]any
	Execute     ExecuteFunc
}

// Tool is the generic interface for typed tools. The type parameter T
// defines the input struct deserialized from the model's JSON arguments.
type Tool[T any] interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input T, tc ToolContext) (*ToolOutput, error)
}

// Define converts a typed Tool into a ToolDefinition, generating the input
// schema from T's struct tags.
func Define[T any](tool Tool[T]) ToolDefinition {
	return ToolDefinition{
		Name:        tool.Name(),
		Description: tool.Description(),
		InputSchema: schema.Generate[T](),
		Execute: func(ctx context.Context, input map[string]any, tc ToolContext) (*ToolOutput, error) {
			var typed T
			raw, err := json.Marshal(input)
			if err != nil {
				return ErrorOutput(fmt.Sprintf("invalid input: %s", err.Error())), nil
			}
			if err := json.Unmarshal(raw, &typed); err != nil {
				return ErrorOutput(fmt.Sprintf("invalid input: %s", err.Error())), nil
			}
			return tool.Execute(ctx, typed, tc)
		},
	}
}

// FuncTool builds a ToolDefinition from a name, description, schema, and
// execute function. Used by dynamic tool sources that don't go through the
// generic Tool interface.
func FuncTool(name, description string, inputSchema map[string]any, execute ExecuteFunc) ToolDefinition {
	if inputSchema == nil {
		inputSchema = map[string]any{"type": "object"}
	}
	return ToolDefinition{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
		Execute:     execute,
	}
}
