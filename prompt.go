package agent

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/formagent/agent-sdk-go/internal/config"
)

// PromptContext supplies the runtime values substituted into preset
// templates. Zero-value fields are filled from the environment at build
// time.
type PromptContext struct {
	ToolNames []string
	WorkDir   string
	Platform  string
	Shell     string
	Timestamp time.Time
}

// SystemPromptConfig assembles the session system prompt from a preset or a
// custom base, optional prepend/append segments, and project context files.
type SystemPromptConfig struct {
	// Preset selects a named template ("claude_code", "default", "minimal").
	// Ignored when Custom is set.
	Preset string
	// Custom replaces the preset template entirely.
	Custom string
	// Prepend and Append wrap the base prompt.
	Prepend string
	Append  string
	// Context supplies template substitutions. Nil means detect from the
	// environment.
	Context *PromptContext
	// SettingSources are directories scanned for CLAUDE.md, CLAUDE.local.md,
	// and AGENTS.md; their contents are appended after the base prompt.
	SettingSources []string
}

// buildSystemPrompt renders the final system prompt. Empty segments are
// elided; an entirely empty config yields "".
func buildSystemPrompt(cfg *SystemPromptConfig, toolNames []string) string {
	if cfg == nil {
		return ""
	}

	base := cfg.Custom
	if base == "" && cfg.Preset != "" {
		template, ok := config.GetPreset(cfg.Preset)
		if !ok {
			template, _ = config.GetPreset("default")
		}
		base = config.Substitute(template, promptSubstitutions(cfg.Context, toolNames))
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{cfg.Prepend, base, cfg.Append} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	if len(cfg.SettingSources) > 0 {
		if ctx := config.LoadContextFiles(cfg.SettingSources...); ctx != "" {
			parts = append(parts, ctx)
		}
	}
	return strings.Join(parts, "\n\n")
}

func promptSubstitutions(pc *PromptContext, toolNames []string) map[string]string {
	ctx := PromptContext{}
	if pc != nil {
		ctx = *pc
	}
	if len(ctx.ToolNames) == 0 {
		ctx.ToolNames = toolNames
	}
	if ctx.WorkDir == "" {
		ctx.WorkDir, _ = os.Getwd()
	}
	if ctx.Platform == "" {
		ctx.Platform = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	}
	if ctx.Shell == "" {
		ctx.Shell = os.Getenv("SHELL")
	}
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now()
	}
	return map[string]string{
		"tools":     strings.Join(ctx.ToolNames, ", "),
		"cwd":       ctx.WorkDir,
		"platform":  ctx.Platform,
		"shell":     ctx.Shell,
		"timestamp": ctx.Timestamp.Format(time.RFC3339),
	}
}
