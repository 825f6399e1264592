package agent

// EventStream is an iterator over events emitted during a receive.
// Usage:
//
//	stream, err := session.Receive(ctx)
//	for stream.Next() {
//	    event := stream.Current()
//	    // handle event
//	}
type EventStream struct {
	events  chan Event
	current Event
	done    bool
}

func newEventStream(events chan Event) *EventStream {
	return &EventStream{events: events}
}

// Next advances to the next event. Returns false when the stream is exhausted.
func (s *EventStream) Next() bool {
	if s.done {
		return false
	}
	event, ok := <-s.events
	if !ok {
		s.done = true
		return false
	}
	s.current = event
	return true
}

// Current returns the most recent event returned by Next.
func (s *EventStream) Current() Event {
	return s.current
}
