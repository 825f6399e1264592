package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formagent/agent-sdk-go/mcp"
)

func echoTool(name string) ToolDefinition {
	return FuncTool(name, "echoes its input", nil,
		func(_ context.Context, input map[string]any, _ ToolContext) (*ToolOutput, error) {
			text, _ := input["text"].(string)
			return TextOutput(text), nil
		})
}

func TestRegistryResolveExact(t *testing.T) {
	r := NewToolRegistry()
	r.Register(echoTool("Read"))

	def, canonical, ok := r.Resolve("Read")
	require.True(t, ok)
	assert.Equal(t, "Read", canonical)
	assert.Equal(t, "Read", def.Name)
}

func TestRegistryResolveCaseRepair(t *testing.T) {
	r := NewToolRegistry()
	r.Register(echoTool("Read"))

	def, canonical, ok := r.Resolve("read")
	require.True(t, ok)
	assert.Equal(t, "Read", canonical)
	assert.Equal(t, "Read", def.Name)

	_, _, ok = r.Resolve("ReadFile")
	assert.False(t, ok)
}

func TestRegistryUnknownToolMessage(t *testing.T) {
	r := NewToolRegistry()
	assert.Equal(t, "Tool not found: Zap. No tools are available.", r.UnknownToolMessage("Zap"))

	r.Register(echoTool("Write"))
	r.Register(echoTool("Read"))
	msg := r.UnknownToolMessage("Zap")
	assert.Equal(t, "Tool not found: Zap. Available tools: Read, Write", msg)
}

func TestRegistryUnknownToolMessageOverflow(t *testing.T) {
	r := NewToolRegistry()
	names := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"}
	for _, n := range names {
		r.Register(echoTool(n))
	}
	msg := r.UnknownToolMessage("Zap")
	assert.Contains(t, msg, "Available tools: A, B, C, D, E, F, G, H, I, J")
	assert.Contains(t, msg, "(and 2 more)")
	assert.NotContains(t, msg, "K")
}

func TestToolFilterAllowDeny(t *testing.T) {
	r := NewToolRegistry()
	r.Register(echoTool("Read"))
	r.Register(echoTool("Write"))
	r.Register(echoTool("Bash"))

	r.ApplyFilter(&ToolFilter{Allow: []string{"Read", "Write"}, Deny: []string{"Write"}})

	assert.Equal(t, []string{"Read"}, r.Names())
	_, _, ok := r.Resolve("Write")
	assert.False(t, ok)
	_, _, ok = r.Resolve("Bash")
	assert.False(t, ok)
}

func TestToolFilterKeepsRepairForCaseCollision(t *testing.T) {
	r := NewToolRegistry()
	r.Register(echoTool("Read"))
	r.Register(echoTool("READ"))

	r.ApplyFilter(&ToolFilter{Deny: []string{"READ"}})

	// Removing READ must not disable case repair for the surviving Read.
	require.Equal(t, []string{"Read"}, r.Names())
	def, canonical, ok := r.Resolve("read")
	require.True(t, ok)
	assert.Equal(t, "Read", canonical)
	assert.Equal(t, "Read", def.Name)
}

func TestToolFilterGlobs(t *testing.T) {
	r := NewToolRegistry()
	r.Register(echoTool("Read"))
	r.Register(echoTool("mcp__github__create_issue"))
	r.Register(echoTool("mcp__github__list_repos"))
	r.Register(echoTool("mcp__slack__post"))

	r.ApplyFilter(&ToolFilter{Deny: []string{"mcp__github__*"}})

	assert.ElementsMatch(t, []string{"Read", "mcp__slack__post"}, r.Names())
}

func TestToolFilterProtectSkillTool(t *testing.T) {
	protected := NewToolRegistry()
	protected.Register(echoTool(SkillToolName))
	protected.Register(echoTool("Read"))
	protected.ApplyFilter(&ToolFilter{Deny: []string{"*"}, ProtectSkillTool: true})
	assert.Equal(t, []string{SkillToolName}, protected.Names())

	// Without protection the deny list strips the Skill tool like any other.
	bare := NewToolRegistry()
	bare.Register(echoTool(SkillToolName))
	bare.ApplyFilter(&ToolFilter{Deny: []string{"*"}})
	assert.Empty(t, bare.Names())
}

// fakeMCPServer implements mcp.Server in-process.
type fakeMCPServer struct {
	tools  []mcp.ToolInfo
	calls  []string
	result *mcp.Result
}

func (f *fakeMCPServer) ListTools(context.Context) ([]mcp.ToolInfo, error) {
	return f.tools, nil
}

func (f *fakeMCPServer) CallTool(_ context.Context, name string, _ map[string]any) (*mcp.Result, error) {
	f.calls = append(f.calls, name)
	if f.result != nil {
		return f.result, nil
	}
	return &mcp.Result{Content: "ok"}, nil
}

func (f *fakeMCPServer) Close() error { return nil }

func TestRegistryResolveMCPProxy(t *testing.T) {
	server := &fakeMCPServer{}
	manager := mcp.NewManager()
	manager.Register("github", server)

	r := NewToolRegistry()
	r.SetMCPManager(manager)

	def, canonical, ok := r.Resolve("mcp__github__create_issue")
	require.True(t, ok)
	assert.Equal(t, "mcp__github__create_issue", canonical)

	out, err := def.Execute(context.Background(), map[string]any{"title": "x"}, ToolContext{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Content)
	assert.Equal(t, []string{"create_issue"}, server.calls)

	// The proxy is cached: a second resolve hits the registry directly.
	_, _, ok = r.Resolve("mcp__github__create_issue")
	assert.True(t, ok)
}

func TestRegistryResolveMCPUnknownServer(t *testing.T) {
	r := NewToolRegistry()
	r.SetMCPManager(mcp.NewManager())
	_, _, ok := r.Resolve("mcp__nope__tool")
	assert.False(t, ok)
}

func TestDefineGeneratesSchemaAndDecodesInput(t *testing.T) {
	def := Define[greetInput](greetTool{})
	require.NotNil(t, def.InputSchema)
	assert.Equal(t, "object", def.InputSchema["type"])

	out, err := def.Execute(context.Background(), map[string]any{"name": "Ada"}, ToolContext{})
	require.NoError(t, err)
	assert.Equal(t, "hello Ada", out.Content)
}

type greetInput struct {
	Name string `json:"name" jsonschema:"description=who to greet"`
}

type greetTool struct{}

func (greetTool) Name() string        { return "Greet" }
func (greetTool) Description() string { return "greets someone" }
func (greetTool) Execute(_ context.Context, in greetInput, _ ToolContext) (*ToolOutput, error) {
	return TextOutput("hello " + in.Name), nil
}
