package agent

// EventType identifies the kind of event emitted by an EventStream.
type EventType string

const (
	EventText          EventType = "text"
	EventToolUse       EventType = "tool_use"
	EventToolResult    EventType = "tool_result"
	EventMessage       EventType = "message"
	EventSystemMessage EventType = "system_message"
	EventStop          EventType = "stop"
	EventError         EventType = "error"
)

// Event is implemented by all events emitted through an EventStream.
type Event interface {
	Type() EventType
}

// TextEvent is emitted for each streamed text delta as it arrives.
type TextEvent struct {
	Text string
}

func (e *TextEvent) Type() EventType { return EventText }

// ToolUseEvent is emitted once per finalized tool_use block.
type ToolUseEvent struct {
	ID    string
	Name  string
	Input map[string]any
}

func (e *ToolUseEvent) Type() EventType { return EventToolUse }

// MessageEvent is emitted when a full assistant message has been assembled.
type MessageEvent struct {
	Message Message
}

func (e *MessageEvent) Type() EventType { return EventMessage }

// ToolResultEvent is emitted after each tool call completes, in tool_use order.
type ToolResultEvent struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (e *ToolResultEvent) Type() EventType { return EventToolResult }

// SystemMessageEvent carries an informational message from a hook. It is
// forwarded to the caller out-of-band and never enters chat history.
type SystemMessageEvent struct {
	Message string
}

func (e *SystemMessageEvent) Type() EventType { return EventSystemMessage }

// StopEvent is emitted once when the turn loop terminates normally.
type StopEvent struct {
	Reason string
	Usage  Usage
}

func (e *StopEvent) Type() EventType { return EventStop }

// ErrorEvent is emitted when the provider or decoder fails; the loop
// terminates after it.
type ErrorEvent struct {
	Err error
}

func (e *ErrorEvent) Type() EventType { return EventError }
