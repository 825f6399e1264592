package agent

import (
	"context"
	"encoding/json"
	"strings"
)

// decodeCallbacks receive incremental output while a stream is decoded.
// onText fires for every text delta so callers can stream characters;
// onToolUse fires once per tool_use block, fully assembled.
type decodeCallbacks struct {
	onText    func(text string)
	onToolUse func(block ContentBlock)
}

// openBlock is the single in-progress block the decoder maintains.
type openBlock struct {
	kind string // BlockText or BlockToolUse
	id   string
	name string
	text strings.Builder // text buffer or partial-JSON buffer
}

// decodeStream consumes a provider event stream and reassembles it into a
// finalized assistant message plus a usage tally.
//
// If the stream ends without a terminating content_block_stop the open block
// is flushed with the same finalization rules, so a connection cut mid-block
// still yields a well-formed message. On cancellation the decoder stops at
// the next event and returns whatever is finalized; the in-progress block is
// discarded.
func decodeStream(ctx context.Context, stream ProviderStream, cb decodeCallbacks) (*Message, error) {
	msg := &Message{
		ID:   generateID(PrefixMessage),
		Role: RoleAssistant,
	}
	var usage Usage
	var open *openBlock

	finalize := func() {
		if open == nil {
			return
		}
		switch open.kind {
		case BlockText:
			msg.Content = append(msg.Content, NewTextBlock(open.text.String()))
		case BlockToolUse:
			input := parseToolInput(open.text.String())
			block := NewToolUseBlock(open.id, open.name, input)
			msg.Content = append(msg.Content, block)
			if cb.onToolUse != nil {
				cb.onToolUse(block)
			}
		}
		open = nil
	}

	for stream.Next() {
		if ctx.Err() != nil {
			_ = stream.Close()
			msg.Usage = &usage
			return msg, nil
		}
		ev := stream.Current()
		switch ev.Type {
		case StreamMessageStart:
			if ev.Usage != nil {
				usage.Input += ev.Usage.Input
			}
		case StreamContentBlockStart:
			finalize()
			if ev.Block == nil {
				continue
			}
			open = &openBlock{kind: ev.Block.Type, id: ev.Block.ID, name: ev.Block.Name}
		case StreamContentBlockDelta:
			if open == nil {
				continue
			}
			switch ev.Delta.Type {
			case DeltaText:
				open.text.WriteString(ev.Delta.Text)
				if cb.onText != nil && ev.Delta.Text != "" {
					cb.onText(ev.Delta.Text)
				}
			case DeltaInputJSON:
				open.text.WriteString(ev.Delta.PartialJSON)
			}
		case StreamContentBlockStop:
			finalize()
		case StreamMessageDelta:
			if ev.StopReason != "" {
				msg.StopReason = ev.StopReason
			}
			if ev.Usage != nil {
				// Some providers only report input tokens in the trailing
				// usage frame, so both counters accumulate here.
				usage.Input += ev.Usage.Input
				usage.Output += ev.Usage.Output
			}
		case StreamMessageStop:
			// Terminal; trailing events, if any, are ignored by the loop below.
		}
	}
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	_ = stream.Close()

	// Safety flush for streams that end mid-block.
	finalize()

	if msg.StopReason == "" {
		if len(msg.ToolUses()) > 0 {
			msg.StopReason = StopToolUse
		} else {
			msg.StopReason = StopEndTurn
		}
	}
	msg.Usage = &usage
	return msg, nil
}

// parseToolInput parses accumulated partial JSON into a tool input map.
// Parse failure is never fatal: the input defaults to {} and surfaces
// downstream through tool validation.
func parseToolInput(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil || input == nil {
		return map[string]any{}
	}
	return input
}
