// Package hookrunner executes hook matchers for the turn loop.
package hookrunner

import (
	"context"
	"fmt"
	"regexp"
	"time"

	pubhook "github.com/formagent/agent-sdk-go/hook"
)

const defaultTimeout = 30 * time.Second

// DefaultStopReason is the tool_result content used when a hook sets
// Continue=false without a StopReason.
const DefaultStopReason = "Execution stopped by hook"

// Runner executes hooks matched by event and tool name. Matcher groups run
// in registration order; callbacks within a group run in order. A deny or
// Continue=false halts the pipeline for that tool call only.
type Runner struct {
	matchers []matcherEntry
}

type matcherEntry struct {
	event   pubhook.Event
	pattern *regexp.Regexp // nil = match all tools
	hooks   []pubhook.Func
	timeout time.Duration
}

// New creates a Runner from public Matcher definitions.
// Returns an error if any regex pattern is invalid.
func New(matchers []pubhook.Matcher) (*Runner, error) {
	entries := make([]matcherEntry, 0, len(matchers))
	for i, m := range matchers {
		entry := matcherEntry{
			event:   m.Event,
			hooks:   m.Hooks,
			timeout: m.Timeout,
		}
		if entry.timeout == 0 {
			entry.timeout = defaultTimeout
		}
		if m.Pattern != "" {
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return nil, fmt.Errorf("matcher[%d]: invalid pattern %q: %w", i, m.Pattern, err)
			}
			entry.pattern = re
		}
		entries = append(entries, entry)
	}
	return &Runner{matchers: entries}, nil
}

// PreOutcome is the combined result of the PreToolUse pipeline.
type PreOutcome struct {
	// Input is the tool input after any UpdatedInput rewrites.
	Input map[string]any

	// Denied reports a deny decision; Reason carries its explanation.
	Denied bool
	Reason string

	// Stopped reports Continue=false; StopReason is the tool_result content.
	Stopped    bool
	StopReason string

	// SystemMessages collects informational messages for out-of-band delivery.
	SystemMessages []string
}

// PostOutcome is the combined result of the PostToolUse pipeline.
type PostOutcome struct {
	// AdditionalContext entries are appended to the tool_result content.
	AdditionalContext []string

	Stopped    bool
	StopReason string

	SystemMessages []string
}

// RunPreToolUse runs all matching PreToolUse hooks sequentially. Successive
// hooks observe input rewrites from earlier ones. The first deny or
// Continue=false short-circuits the pipeline.
func (r *Runner) RunPreToolUse(ctx context.Context, sessionID, toolName, toolUseID string, input map[string]any) (*PreOutcome, error) {
	out := &PreOutcome{Input: input}
	err := r.run(ctx, pubhook.PreToolUse, toolName, func(fn pubhook.Func, tctx context.Context) (bool, error) {
		res, err := fn(tctx, &pubhook.Input{
			SessionID: sessionID,
			Event:     pubhook.PreToolUse,
			ToolName:  toolName,
			ToolUseID: toolUseID,
			ToolInput: out.Input,
		})
		if err != nil {
			return true, err
		}
		if res == nil {
			return false, nil
		}
		if res.SystemMessage != "" {
			out.SystemMessages = append(out.SystemMessages, res.SystemMessage)
		}
		if res.UpdatedInput != nil {
			out.Input = res.UpdatedInput
		}
		if res.Continue != nil && !*res.Continue {
			out.Stopped = true
			out.StopReason = res.StopReason
			if out.StopReason == "" {
				out.StopReason = DefaultStopReason
			}
			return true, nil
		}
		if res.PermissionDecision == pubhook.DecisionDeny {
			out.Denied = true
			out.Reason = res.PermissionDecisionReason
			return true, nil
		}
		// allow and ask both proceed; ask is treated as allow.
		return false, nil
	})
	return out, err
}

// RunPostToolUse runs all matching PostToolUse hooks sequentially.
func (r *Runner) RunPostToolUse(ctx context.Context, sessionID, toolName, toolUseID string, input map[string]any, output string, isError bool) (*PostOutcome, error) {
	out := &PostOutcome{}
	err := r.run(ctx, pubhook.PostToolUse, toolName, func(fn pubhook.Func, tctx context.Context) (bool, error) {
		res, err := fn(tctx, &pubhook.Input{
			SessionID:   sessionID,
			Event:       pubhook.PostToolUse,
			ToolName:    toolName,
			ToolUseID:   toolUseID,
			ToolInput:   input,
			ToolOutput:  output,
			ToolIsError: isError,
		})
		if err != nil {
			return true, err
		}
		if res == nil {
			return false, nil
		}
		if res.SystemMessage != "" {
			out.SystemMessages = append(out.SystemMessages, res.SystemMessage)
		}
		if res.AdditionalContext != "" {
			out.AdditionalContext = append(out.AdditionalContext, res.AdditionalContext)
		}
		if res.Continue != nil && !*res.Continue {
			out.Stopped = true
			out.StopReason = res.StopReason
			if out.StopReason == "" {
				out.StopReason = DefaultStopReason
			}
			return true, nil
		}
		return false, nil
	})
	return out, err
}

// run dispatches each matching callback to visit until it signals a halt.
func (r *Runner) run(ctx context.Context, event pubhook.Event, toolName string, visit func(fn pubhook.Func, ctx context.Context) (halt bool, err error)) error {
	for _, entry := range r.matchers {
		if entry.event != event {
			continue
		}
		if entry.pattern != nil && !entry.pattern.MatchString(toolName) {
			continue
		}

		tctx, cancel := context.WithTimeout(ctx, entry.timeout)
		halted, err := runGroup(tctx, entry.hooks, visit)
		cancel()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
	return nil
}

func runGroup(ctx context.Context, hooks []pubhook.Func, visit func(fn pubhook.Func, ctx context.Context) (bool, error)) (bool, error) {
	for _, fn := range hooks {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		halt, err := visit(fn, ctx)
		if err != nil {
			return false, err
		}
		if halt {
			return true, nil
		}
	}
	return false, nil
}
