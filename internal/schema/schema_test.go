package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchInput struct {
	Query   string   `json:"query" jsonschema:"description=search query"`
	Limit   int      `json:"limit,omitempty" jsonschema:"description=max results"`
	Tags    []string `json:"tags,omitempty"`
	Verbose *bool    `json:"verbose,omitempty"`
}

func TestGenerate(t *testing.T) {
	got := Generate[searchInput]()

	assert.Equal(t, "object", got["type"])
	props, ok := got["properties"].(map[string]any)
	require.True(t, ok)

	query, ok := props["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "search query", query["description"])

	limit, ok := props["limit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "integer", limit["type"])

	tags, ok := props["tags"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", tags["type"])

	required, ok := got["required"].([]string)
	require.True(t, ok)
	assert.Contains(t, required, "query")
	assert.NotContains(t, required, "limit")
}

type nestedInput struct {
	Filter struct {
		Field string `json:"field"`
	} `json:"filter"`
}

func TestGenerateNested(t *testing.T) {
	got := Generate[nestedInput]()
	props := got["properties"].(map[string]any)
	filter, ok := props["filter"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", filter["type"])
	inner, ok := filter["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, inner, "field")
}

type emptyInput struct{}

func TestGenerateEmptyStruct(t *testing.T) {
	got := Generate[emptyInput]()
	assert.Equal(t, "object", got["type"])
	_, hasRequired := got["required"]
	assert.False(t, hasRequired)
}

func TestGenerateJSON(t *testing.T) {
	data, err := GenerateJSON[searchInput]()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"object"`)
}
