package agent

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Content block discriminators.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Stop reasons surfaced through StopEvent and Message.StopReason.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
	StopMaxTurns  = "max_turns"
	StopMaxBudget = "max_budget"
)

// ContentBlock is a tagged variant: text, tool_use, tool_result, or an opaque
// passthrough block (e.g. image) that the engine carries but never interprets.
type ContentBlock struct {
	Type string

	// Text blocks.
	Text string

	// Tool use blocks.
	ID    string
	Name  string
	Input map[string]any

	// Tool result blocks.
	ToolUseID string
	Content   string
	IsError   bool

	// raw holds the original JSON for passthrough block types so they
	// round-trip unmodified.
	raw json.RawMessage
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewToolUseBlock creates a tool_use content block.
func NewToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// NewToolResultBlock creates a tool_result content block.
func NewToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

type textBlockJSON struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolUseBlockJSON struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

type toolResultBlockJSON struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// MarshalJSON encodes the block according to its type tag. Passthrough blocks
// are emitted byte-for-byte as they were received.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockText:
		return json.Marshal(textBlockJSON{Type: b.Type, Text: b.Text})
	case BlockToolUse:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		return json.Marshal(toolUseBlockJSON{Type: b.Type, ID: b.ID, Name: b.Name, Input: input})
	case BlockToolResult:
		return json.Marshal(toolResultBlockJSON{Type: b.Type, ToolUseID: b.ToolUseID, Content: b.Content, IsError: b.IsError})
	default:
		if b.raw != nil {
			return b.raw, nil
		}
		return json.Marshal(map[string]string{"type": b.Type})
	}
}

// UnmarshalJSON decodes a block by its type tag. Unknown types are retained
// verbatim so they survive a round-trip.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("content block: %w", err)
	}
	switch tag.Type {
	case BlockText:
		var v textBlockJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = ContentBlock{Type: BlockText, Text: v.Text}
	case BlockToolUse:
		var v toolUseBlockJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = ContentBlock{Type: BlockToolUse, ID: v.ID, Name: v.Name, Input: v.Input}
	case BlockToolResult:
		var v toolResultBlockJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = ContentBlock{Type: BlockToolResult, ToolUseID: v.ToolUseID, Content: v.Content, IsError: v.IsError}
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		*b = ContentBlock{Type: tag.Type, raw: raw}
	}
	return nil
}

func (b ContentBlock) clone() ContentBlock {
	c := b
	if b.Input != nil {
		c.Input = maps.Clone(b.Input)
	}
	if b.raw != nil {
		c.raw = append(json.RawMessage(nil), b.raw...)
	}
	return c
}

// Usage tracks token consumption.
type Usage struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

// Add accumulates another usage into this one.
func (u *Usage) Add(other Usage) {
	u.Input += other.Input
	u.Output += other.Output
}

// Message is one entry in a session's conversation history.
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stopReason,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
}

// NewUserMessage creates a user message from plain text.
func NewUserMessage(text string) Message {
	return Message{
		ID:      generateID(PrefixMessage),
		Role:    RoleUser,
		Content: []ContentBlock{NewTextBlock(text)},
	}
}

// NewUserBlocksMessage creates a user message from explicit content blocks.
func NewUserBlocksMessage(blocks ...ContentBlock) Message {
	return Message{
		ID:      generateID(PrefixMessage),
		Role:    RoleUser,
		Content: blocks,
	}
}

type messageJSON struct {
	ID         string          `json:"id"`
	Role       Role            `json:"role"`
	Content    json.RawMessage `json:"content"`
	StopReason string          `json:"stopReason,omitempty"`
	Usage      *Usage          `json:"usage,omitempty"`
}

// UnmarshalJSON accepts either a block list or the plain-string user shortcut
// for the content field.
func (m *Message) UnmarshalJSON(data []byte) error {
	var v messageJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("message: %w", err)
	}
	m.ID = v.ID
	m.Role = v.Role
	m.StopReason = v.StopReason
	m.Usage = v.Usage
	m.Content = nil
	if len(v.Content) == 0 {
		return nil
	}
	if v.Content[0] == '"' {
		var text string
		if err := json.Unmarshal(v.Content, &text); err != nil {
			return fmt.Errorf("message content: %w", err)
		}
		m.Content = []ContentBlock{NewTextBlock(text)}
		return nil
	}
	if err := json.Unmarshal(v.Content, &m.Content); err != nil {
		return fmt.Errorf("message content: %w", err)
	}
	return nil
}

// Text returns the concatenation of all text blocks.
func (m *Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks in order.
func (m *Message) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

func (m Message) clone() Message {
	c := m
	c.Content = make([]ContentBlock, len(m.Content))
	for i, b := range m.Content {
		c.Content[i] = b.clone()
	}
	if m.Usage != nil {
		u := *m.Usage
		c.Usage = &u
	}
	return c
}

// SessionState is the persistent snapshot of a session. Unknown top-level
// fields read from storage are retained and written back on save.
type SessionState struct {
	ID        string
	ParentID  string
	Messages  []Message
	Usage     Usage
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time

	extra map[string]json.RawMessage
}

// Clone returns a deep copy of the state.
func (s *SessionState) Clone() *SessionState {
	c := &SessionState{
		ID:        s.ID,
		ParentID:  s.ParentID,
		Usage:     s.Usage,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m.clone()
	}
	if s.Metadata != nil {
		c.Metadata = maps.Clone(s.Metadata)
	}
	if s.extra != nil {
		c.extra = maps.Clone(s.extra)
	}
	return c
}

type sessionStateJSON struct {
	ID        string         `json:"id"`
	ParentID  string         `json:"parentId,omitempty"`
	Messages  []Message      `json:"messages"`
	Usage     Usage          `json:"usage"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

var sessionStateKnownKeys = map[string]bool{
	"id": true, "parentId": true, "messages": true, "usage": true,
	"metadata": true, "createdAt": true, "updatedAt": true,
}

// MarshalJSON emits the known fields plus any preserved unknown fields.
func (s SessionState) MarshalJSON() ([]byte, error) {
	msgs := s.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	meta := s.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	known, err := json.Marshal(sessionStateJSON{
		ID:        s.ID,
		ParentID:  s.ParentID,
		Messages:  msgs,
		Usage:     s.Usage,
		Metadata:  meta,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	})
	if err != nil || len(s.extra) == 0 {
		return known, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range s.extra {
		if !sessionStateKnownKeys[k] {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

// UnmarshalJSON decodes the known fields and stashes unknown ones.
func (s *SessionState) UnmarshalJSON(data []byte) error {
	var v sessionStateJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("session state: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("session state: %w", err)
	}
	*s = SessionState{
		ID:        v.ID,
		ParentID:  v.ParentID,
		Messages:  v.Messages,
		Usage:     v.Usage,
		Metadata:  v.Metadata,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	for k, raw := range fields {
		if sessionStateKnownKeys[k] {
			continue
		}
		if s.extra == nil {
			s.extra = make(map[string]json.RawMessage)
		}
		s.extra[k] = raw
	}
	return nil
}
