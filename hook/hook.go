// Package hook defines public types for the agent hook system.
//
// Hooks let users register callbacks that fire before and after tool
// execution. The [Matcher] type binds a set of [Func] callbacks to an
// [Event] and an optional tool-name regex pattern. A callback may permit,
// deny, rewrite, or annotate the tool call through its [Result].
package hook

import (
	"context"
	"time"
)

// Event identifies when a hook fires.
type Event string

const (
	PreToolUse  Event = "PreToolUse"
	PostToolUse Event = "PostToolUse"
)

// Decision is a permission decision returned by a hook.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	// DecisionAsk is treated as allow: the SDK presents no interactive
	// prompts itself; gated collaborators may.
	DecisionAsk Decision = "ask"
)

// Input is passed to hook functions.
type Input struct {
	SessionID string
	Event     Event
	ToolName  string
	ToolUseID string

	// ToolInput is the current tool input. Successive PreToolUse hooks see
	// the value after any earlier UpdatedInput rewrites.
	ToolInput map[string]any

	// ToolOutput is the tool's response (PostToolUse only).
	ToolOutput string
	// ToolIsError reports whether the tool returned an error result
	// (PostToolUse only).
	ToolIsError bool
}

// Result is returned by hook functions. A nil result or zero value means
// "no action".
type Result struct {
	// Continue, when set to false, aborts this tool call. The emitted
	// tool_result is an error whose content is StopReason (or a default).
	Continue *bool
	// StopReason is the content used when Continue is false.
	StopReason string

	// PermissionDecision may allow, deny, or ask. Deny short-circuits the
	// tool call as an error with PermissionDecisionReason.
	PermissionDecision       Decision
	PermissionDecisionReason string

	// UpdatedInput replaces the input passed to the tool (PreToolUse only).
	UpdatedInput map[string]any

	// SystemMessage is informational; it is forwarded out-of-band to the
	// caller and does not enter chat history.
	SystemMessage string

	// AdditionalContext is appended to the tool_result content
	// (PostToolUse only).
	AdditionalContext string
}

// Func is the signature for hook callbacks.
type Func func(ctx context.Context, input *Input) (*Result, error)

// Matcher defines which tool calls a set of hooks should fire for.
type Matcher struct {
	Event   Event         // Which event to match.
	Pattern string        // Regex pattern for tool name (empty = match all).
	Hooks   []Func        // Functions to call (in order).
	Timeout time.Duration // Max time for all hooks in this matcher (0 = 30s default).
}
