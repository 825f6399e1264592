package agent

import "context"

// StreamEventType identifies a provider stream event kind.
type StreamEventType string

// Provider stream event kinds. Adapters must emit exactly these; the decoder
// understands nothing else.
const (
	StreamMessageStart      StreamEventType = "message_start"
	StreamContentBlockStart StreamEventType = "content_block_start"
	StreamContentBlockDelta StreamEventType = "content_block_delta"
	StreamContentBlockStop  StreamEventType = "content_block_stop"
	StreamMessageDelta      StreamEventType = "message_delta"
	StreamMessageStop       StreamEventType = "message_stop"
)

// Delta kinds carried by content_block_delta events.
const (
	DeltaText      = "text_delta"
	DeltaInputJSON = "input_json_delta"
)

// StreamDelta is the payload of a content_block_delta event.
type StreamDelta struct {
	Type        string
	Text        string // text_delta
	PartialJSON string // input_json_delta
}

// StreamEvent is one incremental event from a provider stream.
type StreamEvent struct {
	Type  StreamEventType
	Index int

	// Block is set on content_block_start: a text skeleton or a tool_use
	// skeleton carrying id and name (input arrives via deltas).
	Block *ContentBlock

	// Delta is set on content_block_delta.
	Delta StreamDelta

	// StopReason is set on message_delta when the provider reports one.
	StopReason string

	// Usage carries input tokens on message_start and output tokens on
	// message_delta.
	Usage *Usage
}

// ProviderStream is a lazy sequence of stream events.
type ProviderStream interface {
	// Next advances to the next event. Returns false when the stream is
	// exhausted or failed.
	Next() bool
	// Current returns the event at the cursor.
	Current() StreamEvent
	// Err returns the terminal error, if any.
	Err() error
	// Close releases the underlying connection.
	Close() error
}

// ToolSpec describes a tool to a provider.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request is a single model invocation built by the turn loop.
type Request struct {
	Model        string
	MaxTokens    int
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSpec
}

// Provider adapts a concrete LLM API to the engine's abstract event stream.
type Provider interface {
	Stream(ctx context.Context, req *Request) (ProviderStream, error)
}
