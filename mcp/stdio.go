package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
)

const protocolVersion = "2024-11-05"

// StdioConfig describes how to launch a stdio MCP server subprocess.
type StdioConfig struct {
	Command string
	Args    []string
	Env     map[string]string
}

// StdioServer is a Server backed by an MCP subprocess speaking the stdio
// transport. The connection is established lazily on first use.
type StdioServer struct {
	cfg    StdioConfig
	client *mcpclient.Client
}

var _ Server = (*StdioServer)(nil)

// NewStdioServer creates a stdio-backed server. The subprocess is not
// started until the first ListTools or CallTool.
func NewStdioServer(cfg StdioConfig) *StdioServer {
	return &StdioServer{cfg: cfg}
}

func (s *StdioServer) connect(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	env := make([]string, 0, len(s.cfg.Env))
	for k, v := range s.cfg.Env {
		env = append(env, k+"="+v)
	}
	cl, err := mcpclient.NewStdioMCPClient(s.cfg.Command, env, s.cfg.Args...)
	if err != nil {
		return fmt.Errorf("mcp: start %s: %w", s.cfg.Command, err)
	}

	initReq := mcpproto.InitializeRequest{}
	initReq.Params.ClientInfo = mcpproto.Implementation{
		Name:    "formagent-sdk-go",
		Version: "1.0.0",
	}
	initReq.Params.ProtocolVersion = protocolVersion
	if _, err := cl.Initialize(ctx, initReq); err != nil {
		_ = cl.Close()
		return fmt.Errorf("mcp: initialize: %w", err)
	}
	s.client = cl
	return nil
}

// ListTools lists the tools advertised by the server.
func (s *StdioServer) ListTools(ctx context.Context) ([]ToolInfo, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	resp, err := s.client.ListTools(ctx, mcpproto.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}
	tools := make([]ToolInfo, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		tools = append(tools, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: convertSchema(t.InputSchema),
		})
	}
	return tools, nil
}

// CallTool invokes one tool and flattens its text content.
func (s *StdioServer) CallTool(ctx context.Context, name string, input map[string]any) (*Result, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = input

	resp, err := s.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp: call %s: %w", name, err)
	}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcpproto.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return &Result{
		Content: strings.Join(texts, "\n"),
		IsError: resp.IsError,
	}, nil
}

// Close terminates the subprocess connection.
func (s *StdioServer) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// convertSchema converts an MCP tool schema to a plain map via a JSON
// round-trip.
func convertSchema(schema mcpproto.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{"type": "object"}
	}
	return out
}
