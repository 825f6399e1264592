// Package agent is an SDK for building conversational AI agents on top of
// chat-completion providers. It exposes a stateful [Session] that accepts a
// user message, streams the assistant response, executes any tool calls the
// model produces, feeds the results back, and repeats until the model stops
// or a turn limit is reached.
//
// Providers are pluggable behind the [Provider] interface; adapters for the
// Anthropic and OpenAI APIs live in the anthropic and openai subpackages.
// Sessions are owned by a [Manager], which handles create/resume/fork/close
// over a pluggable [Storage] backend.
//
// Basic usage:
//
//	m := agent.NewManager()
//	s, err := m.Create(ctx, agent.WithProvider(provider), agent.WithMaxTurns(8))
//	if err != nil { ... }
//	if err := s.Send("hello"); err != nil { ... }
//	stream, err := s.Receive(ctx)
//	if err != nil { ... }
//	for stream.Next() {
//		switch ev := stream.Current().(type) {
//		case *agent.TextEvent:
//			fmt.Print(ev.Text)
//		case *agent.StopEvent:
//			fmt.Println("done:", ev.Reason)
//		}
//	}
package agent
