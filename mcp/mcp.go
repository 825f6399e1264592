// Package mcp connects the agent to external Model Context Protocol tool
// servers. Tools are exposed to the model under the namespaced form
// mcp__{server}__{tool} (aligned with Claude Code).
package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Prefix is the namespace marker for MCP tool names.
const Prefix = "mcp__"

// ToolInfo describes a tool advertised by an MCP server.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Result is the outcome of one tool call.
type Result struct {
	Content string
	IsError bool
}

// Server is a connection to one MCP tool server.
type Server interface {
	ListTools(ctx context.Context) ([]ToolInfo, error)
	CallTool(ctx context.Context, name string, input map[string]any) (*Result, error)
	Close() error
}

// ToolName returns the namespaced tool name for an MCP tool.
func ToolName(serverName, toolName string) string {
	return Prefix + serverName + "__" + toolName
}

// ParseToolName splits a namespaced name into server and tool. ok is false
// when the name is not in mcp__{server}__{tool} form.
func ParseToolName(name string) (server, tool string, ok bool) {
	if !strings.HasPrefix(name, Prefix) {
		return "", "", false
	}
	rest := name[len(Prefix):]
	idx := strings.Index(rest, "__")
	if idx <= 0 || idx+2 >= len(rest) {
		return "", "", false
	}
	return rest[:idx], rest[idx+2:], true
}

// Manager routes namespaced tool calls to registered servers.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]Server
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{servers: make(map[string]Server)}
}

// Register adds a server under the given name, replacing any previous one.
func (m *Manager) Register(name string, srv Server) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[name] = srv
}

// Server returns the server registered under name.
func (m *Manager) Server(name string) (Server, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	srv, ok := m.servers[name]
	return srv, ok
}

// CallTool dispatches a namespaced tool call to its server.
func (m *Manager) CallTool(ctx context.Context, namespaced string, input map[string]any) (*Result, error) {
	serverName, toolName, ok := ParseToolName(namespaced)
	if !ok {
		return nil, fmt.Errorf("mcp: malformed tool name %q", namespaced)
	}
	srv, found := m.Server(serverName)
	if !found {
		return nil, fmt.Errorf("mcp: unknown server %q", serverName)
	}
	return srv.CallTool(ctx, toolName, input)
}

// Close closes all registered servers, returning the first error.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for name, srv := range m.servers {
		if err := srv.Close(); err != nil && first == nil {
			first = fmt.Errorf("mcp: close %s: %w", name, err)
		}
		delete(m.servers, name)
	}
	return first
}
