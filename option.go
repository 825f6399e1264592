package agent

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/formagent/agent-sdk-go/hook"
	"github.com/formagent/agent-sdk-go/internal/budget"
	"github.com/formagent/agent-sdk-go/internal/config"
	"github.com/formagent/agent-sdk-go/internal/truncate"
	"github.com/formagent/agent-sdk-go/mcp"
	"github.com/formagent/agent-sdk-go/skill"
)

// Option configures a session at creation time.
type Option func(*sessionOptions)

// TruncateMode selects which end of oversized tool output is kept.
type TruncateMode string

const (
	TruncateHead TruncateMode = "head"
	TruncateTail TruncateMode = "tail"
)

// ModelPricing holds per-model token prices in USD per million tokens.
type ModelPricing struct {
	InputPerMTok  decimal.Decimal
	OutputPerMTok decimal.Decimal
}

type sessionOptions struct {
	provider  Provider
	model     string
	maxTokens int
	maxTurns  int

	systemPrompt       string
	systemPromptConfig *SystemPromptConfig

	tools      []ToolDefinition
	toolFilter *ToolFilter

	hooks []hook.Matcher

	skillLoader skill.Loader
	skillDirs   []string

	mcpManager *mcp.Manager

	storage Storage
	logger  *slog.Logger

	streamBufferSize int
	truncation       truncate.Config

	maxBudget decimal.Decimal
	pricing   map[string]budget.ModelPricing

	metadata map[string]any

	settingsPaths []string

	// resumeID/forkID route Manager.Create to Resume or Fork.
	resumeID string
	forkID   string
}

func resolveOptions(opts []Option) *sessionOptions {
	o := &sessionOptions{
		maxTokens:        DefaultMaxTokens,
		maxTurns:         DefaultMaxTurns,
		streamBufferSize: DefaultStreamBufferSize,
		truncation: truncate.Config{
			MaxLines: DefaultTruncateMaxLines,
			MaxBytes: DefaultTruncateMaxBytes,
			Mode:     truncate.Head,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithProvider sets the model provider for the session.
func WithProvider(p Provider) Option {
	return func(o *sessionOptions) { o.provider = p }
}

// WithModel sets the model identifier sent to the provider.
func WithModel(model string) Option {
	return func(o *sessionOptions) { o.model = model }
}

// WithMaxTokens caps the tokens generated per assistant message.
func WithMaxTokens(n int) Option {
	return func(o *sessionOptions) { o.maxTokens = n }
}

// WithMaxTurns caps assistant messages per Receive. 0 means unlimited.
func WithMaxTurns(n int) Option {
	return func(o *sessionOptions) { o.maxTurns = n }
}

// WithSystemPrompt sets a verbatim system prompt, bypassing presets and
// context files.
func WithSystemPrompt(prompt string) Option {
	return func(o *sessionOptions) {
		o.systemPrompt = prompt
		o.systemPromptConfig = nil
	}
}

// WithSystemPromptConfig assembles the system prompt from a preset or custom
// base plus context files.
func WithSystemPromptConfig(cfg SystemPromptConfig) Option {
	return func(o *sessionOptions) {
		o.systemPromptConfig = &cfg
		o.systemPrompt = ""
	}
}

// WithTools registers tools on the session.
func WithTools(tools ...ToolDefinition) Option {
	return func(o *sessionOptions) { o.tools = append(o.tools, tools...) }
}

// WithToolFilter restricts the exposed tools by allow/deny glob patterns.
func WithToolFilter(f ToolFilter) Option {
	return func(o *sessionOptions) { o.toolFilter = &f }
}

// WithHooks registers hook matchers.
func WithHooks(matchers ...hook.Matcher) Option {
	return func(o *sessionOptions) { o.hooks = append(o.hooks, matchers...) }
}

// WithSkillLoader attaches a pre-populated skill loader. The Skill tool is
// registered automatically when a loader is present.
func WithSkillLoader(loader skill.Loader) Option {
	return func(o *sessionOptions) { o.skillLoader = loader }
}

// WithSkillDirs discovers skills from the given directories at session
// creation and registers the Skill tool.
func WithSkillDirs(dirs ...string) Option {
	return func(o *sessionOptions) { o.skillDirs = append(o.skillDirs, dirs...) }
}

// WithMCPManager attaches MCP servers whose tools become callable under
// mcp__{server}__{tool} names.
func WithMCPManager(m *mcp.Manager) Option {
	return func(o *sessionOptions) { o.mcpManager = m }
}

// WithStorage sets the session store used for persistence.
func WithStorage(s Storage) Option {
	return func(o *sessionOptions) { o.storage = s }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStreamBufferSize sets the event channel buffer for Receive streams.
func WithStreamBufferSize(n int) Option {
	return func(o *sessionOptions) {
		if n > 0 {
			o.streamBufferSize = n
		}
	}
}

// WithTruncation overrides the tool-output truncation limits. Zero fields
// keep their defaults.
func WithTruncation(maxLines, maxBytes int, mode TruncateMode) Option {
	return func(o *sessionOptions) {
		if maxLines > 0 {
			o.truncation.MaxLines = maxLines
		}
		if maxBytes > 0 {
			o.truncation.MaxBytes = maxBytes
		}
		if mode != "" {
			o.truncation.Mode = truncate.Mode(mode)
		}
	}
}

// WithSpillDir overrides where truncated tool outputs are written in full.
func WithSpillDir(dir string) Option {
	return func(o *sessionOptions) { o.truncation.Dir = dir }
}

// WithMaxBudget caps cumulative spend in USD across the session. Requires
// pricing for the models in use; see WithPricing.
func WithMaxBudget(usd decimal.Decimal) Option {
	return func(o *sessionOptions) { o.maxBudget = usd }
}

// WithPricing supplies per-model token prices in USD per million tokens.
func WithPricing(pricing map[string]ModelPricing) Option {
	return func(o *sessionOptions) {
		o.pricing = make(map[string]budget.ModelPricing, len(pricing))
		for model, p := range pricing {
			o.pricing[model] = budget.ModelPricing{
				InputPerMTok:  p.InputPerMTok,
				OutputPerMTok: p.OutputPerMTok,
			}
		}
	}
}

// WithMetadata seeds the session metadata map.
func WithMetadata(md map[string]any) Option {
	return func(o *sessionOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]any, len(md))
		}
		for k, v := range md {
			o.metadata[k] = v
		}
	}
}

// WithSettingsFiles merges JSON settings files into the session options.
// Later paths override earlier ones; explicit options override settings.
func WithSettingsFiles(paths ...string) Option {
	return func(o *sessionOptions) { o.settingsPaths = append(o.settingsPaths, paths...) }
}

// WithDefaultSettings merges the standard settings files: the user-level
// ~/.claude/settings.json, then {projectDir}/.claude/settings.json.
func WithDefaultSettings(projectDir string) Option {
	return func(o *sessionOptions) {
		o.settingsPaths = append(o.settingsPaths, config.DefaultSettingsPaths(projectDir)...)
	}
}

// WithResume makes Manager.Create resume the given persisted session instead
// of creating a new one.
func WithResume(sessionID string) Option {
	return func(o *sessionOptions) { o.resumeID = sessionID }
}

// WithFork makes Manager.Create fork the given persisted session into a new
// one that shares its history.
func WithFork(sessionID string) Option {
	return func(o *sessionOptions) { o.forkID = sessionID }
}
