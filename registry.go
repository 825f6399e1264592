package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/formagent/agent-sdk-go/mcp"
)

// unknownToolListLimit caps how many tool names the unknown-tool message
// enumerates.
const unknownToolListLimit = 10

// ToolFilter restricts which registered tools are exposed to the model.
// Patterns are glob-style (via doublestar), so "mcp__github__*" matches every
// tool from the github MCP server. Deny wins over allow.
type ToolFilter struct {
	// Allow, when non-empty, keeps only tools matching at least one pattern.
	Allow []string
	// Deny removes tools matching any pattern, even if allowed.
	Deny []string
	// ProtectSkillTool exempts the Skill tool from the filter.
	ProtectSkillTool bool
}

func (f *ToolFilter) empty() bool {
	return f == nil || (len(f.Allow) == 0 && len(f.Deny) == 0)
}

// permits reports whether a tool name survives the filter.
func (f *ToolFilter) permits(name string) bool {
	if f.empty() {
		return true
	}
	if f.ProtectSkillTool && name == SkillToolName {
		return true
	}
	for _, pat := range f.Deny {
		if matchPattern(pat, name) {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return true
	}
	for _, pat := range f.Allow {
		if matchPattern(pat, name) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// ToolRegistry holds the tools available to a session and resolves the names
// the model emits, repairing case mismatches and lazily materializing MCP
// tools. It is safe for concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolDefinition
	// lower maps lowercased names to canonical names for case repair.
	lower  map[string]string
	order  []string
	mcp    *mcp.Manager
	logger *slog.Logger
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:  make(map[string]*ToolDefinition),
		lower:  make(map[string]string),
		logger: slog.Default(),
	}
}

// SetMCPManager attaches an MCP manager used to synthesize proxy definitions
// for mcp__{server}__{tool} names on demand.
func (r *ToolRegistry) SetMCPManager(m *mcp.Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mcp = m
}

// SetLogger replaces the registry's logger.
func (r *ToolRegistry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *ToolRegistry) Register(def ToolDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(def)
}

func (r *ToolRegistry) register(def ToolDefinition) {
	if _, exists := r.tools[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	d := def
	r.tools[def.Name] = &d
	r.lower[strings.ToLower(def.Name)] = def.Name
}

// RegisterTool registers a typed tool on the registry.
func RegisterTool[T any](r *ToolRegistry, tool Tool[T]) {
	r.Register(Define[T](tool))
}

// Get returns the tool registered under exactly name.
func (r *ToolRegistry) Get(name string) (*ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// Names returns registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Specs returns the provider-facing tool specs in registration order.
func (r *ToolRegistry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		def := r.tools[name]
		specs = append(specs, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return specs
}

// ApplyFilter removes tools the filter rejects. Intended to run once, after
// all tools (including the Skill tool) have been registered.
func (r *ToolRegistry) ApplyFilter(f *ToolFilter) {
	if f.empty() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	for _, name := range r.order {
		if f.permits(name) {
			kept = append(kept, name)
			continue
		}
		delete(r.tools, name)
	}
	r.order = kept
	// Rebuild the repair index so a kept tool sharing a lowercase key with a
	// removed one stays resolvable.
	r.lower = make(map[string]string, len(kept))
	for _, name := range kept {
		r.lower[strings.ToLower(name)] = name
	}
}

// Resolve finds the tool for a name emitted by the model. Resolution tries an
// exact match, then a case-insensitive repair, then (for mcp__-prefixed
// names) a lazy proxy backed by the MCP manager. The returned canonical name
// may differ from the requested one when a repair applied.
func (r *ToolRegistry) Resolve(name string) (*ToolDefinition, string, bool) {
	r.mu.RLock()
	if def, ok := r.tools[name]; ok {
		r.mu.RUnlock()
		return def, name, true
	}
	canonical, repaired := r.lower[strings.ToLower(name)]
	logger := r.logger
	r.mu.RUnlock()

	if repaired {
		def, ok := r.Get(canonical)
		if ok {
			logger.Debug("repaired tool name", "requested", name, "canonical", canonical)
			return def, canonical, true
		}
	}

	if strings.HasPrefix(name, mcp.Prefix) {
		if def, ok := r.resolveMCP(name); ok {
			return def, name, true
		}
	}
	return nil, name, false
}

// resolveMCP synthesizes and caches a proxy definition for a namespaced MCP
// tool, provided the manager knows the server.
func (r *ToolRegistry) resolveMCP(name string) (*ToolDefinition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mcp == nil {
		return nil, false
	}
	serverName, _, ok := mcp.ParseToolName(name)
	if !ok {
		return nil, false
	}
	if _, found := r.mcp.Server(serverName); !found {
		return nil, false
	}
	manager := r.mcp
	def := FuncTool(name, "MCP tool "+name, nil,
		func(ctx context.Context, input map[string]any, _ ToolContext) (*ToolOutput, error) {
			res, err := manager.CallTool(ctx, name, input)
			if err != nil {
				return nil, err
			}
			return &ToolOutput{Content: res.Content, IsError: res.IsError}, nil
		})
	r.register(def)
	r.logger.Debug("registered mcp proxy tool", "tool", name, "server", serverName)
	return r.tools[name], true
}

// UnknownToolMessage builds the tool_result content returned for a name that
// could not be resolved.
func (r *ToolRegistry) UnknownToolMessage(name string) string {
	names := r.Names()
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Sprintf("Tool not found: %s. No tools are available.", name)
	}
	shown := names
	overflow := 0
	if len(shown) > unknownToolListLimit {
		overflow = len(shown) - unknownToolListLimit
		shown = shown[:unknownToolListLimit]
	}
	msg := fmt.Sprintf("Tool not found: %s. Available tools: %s", name, strings.Join(shown, ", "))
	if overflow > 0 {
		msg += fmt.Sprintf(" (and %d more)", overflow)
	}
	return msg
}
