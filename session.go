package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/formagent/agent-sdk-go/internal/budget"
	"github.com/formagent/agent-sdk-go/internal/config"
	"github.com/formagent/agent-sdk-go/internal/hookrunner"
	"github.com/formagent/agent-sdk-go/skill"
)

// Session is one conversation with the model. Sessions follow a strict
// send-then-receive protocol: Send queues exactly one user message, Receive
// streams the resulting turns. At most one Receive may be in flight.
type Session struct {
	mu    sync.Mutex
	state *SessionState
	opts  *sessionOptions

	registry     *ToolRegistry
	hooks        *hookrunner.Runner
	budget       *budget.Tracker
	systemPrompt string

	closed    bool
	receiving bool
	pending   bool

	// lifeCtx ends when the session closes; in-flight receives observe it.
	lifeCtx context.Context
	cancel  context.CancelFunc
}

// NewSession creates a standalone session. Most callers should go through
// Manager.Create, which also handles persistence and resume/fork.
func NewSession(opts ...Option) (*Session, error) {
	o := resolveOptions(opts)
	applySettings(o)
	now := time.Now().UTC()
	state := &SessionState{
		ID:        generateID(PrefixSession),
		Metadata:  o.metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if state.Metadata == nil {
		state.Metadata = make(map[string]any)
	}
	return newSession(state, o)
}

// newSession wires a session around existing state. Shared by NewSession and
// the manager's resume and fork paths.
func newSession(state *SessionState, o *sessionOptions) (*Session, error) {
	registry := NewToolRegistry()
	registry.SetLogger(o.logger)
	for _, def := range o.tools {
		registry.Register(def)
	}

	loader := o.skillLoader
	if loader == nil && len(o.skillDirs) > 0 {
		dl := skill.NewDirLoader()
		if _, err := dl.Discover(context.Background(), skill.DiscoverOptions{
			Directories: o.skillDirs,
			MaxDepth:    1,
		}); err != nil {
			return nil, fmt.Errorf("discover skills: %w", err)
		}
		loader = dl
	}
	if loader != nil {
		registry.Register(newSkillTool(loader))
	}
	if o.mcpManager != nil {
		registry.SetMCPManager(o.mcpManager)
	}
	// The filter runs once, after every tool source has registered.
	registry.ApplyFilter(o.toolFilter)

	runner, err := hookrunner.New(o.hooks)
	if err != nil {
		return nil, err
	}

	var tracker *budget.Tracker
	if !o.maxBudget.IsZero() || len(o.pricing) > 0 {
		tracker = budget.NewTracker(o.maxBudget, o.pricing)
	}

	prompt := o.systemPrompt
	if prompt == "" && o.systemPromptConfig != nil {
		prompt = buildSystemPrompt(o.systemPromptConfig, registry.Names())
	}

	lifeCtx, cancel := context.WithCancel(context.Background())
	return &Session{
		state:        state,
		opts:         o,
		registry:     registry,
		hooks:        runner,
		budget:       tracker,
		systemPrompt: prompt,
		lifeCtx:      lifeCtx,
		cancel:       cancel,
	}, nil
}

// applySettings fills option gaps from merged settings files. Explicit
// options always win.
func applySettings(o *sessionOptions) {
	if len(o.settingsPaths) == 0 {
		return
	}
	settings, err := config.LoadSettings(o.settingsPaths...)
	if err != nil {
		return
	}
	if o.model == "" {
		o.model = settings.Model
	}
	if o.maxTurns == 0 {
		o.maxTurns = settings.MaxTurns
	}
	if o.systemPrompt == "" && o.systemPromptConfig == nil && settings.SystemPrompt != "" {
		o.systemPrompt = settings.SystemPrompt
	}
	if o.maxBudget.IsZero() && settings.MaxBudgetUSD > 0 {
		o.maxBudget = decimal.NewFromFloat(settings.MaxBudgetUSD)
	}
	if len(settings.AllowedTools) > 0 || len(settings.DisallowedTools) > 0 {
		if o.toolFilter == nil {
			o.toolFilter = &ToolFilter{}
		}
		o.toolFilter.Allow = append(o.toolFilter.Allow, settings.AllowedTools...)
		o.toolFilter.Deny = append(o.toolFilter.Deny, settings.DisallowedTools...)
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ID
}

// Send queues a user text message for the next Receive.
func (s *Session) Send(text string) error {
	return s.SendMessage(NewUserMessage(text))
}

// SendMessage queues a user message with explicit content blocks.
func (s *Session) SendMessage(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.receiving {
		return ErrAlreadyReceiving
	}
	if msg.ID == "" {
		msg.ID = generateID(PrefixMessage)
	}
	if msg.Role == "" {
		msg.Role = RoleUser
	}
	s.state.Messages = append(s.state.Messages, msg)
	s.state.UpdatedAt = time.Now().UTC()
	s.pending = true
	return nil
}

// ReceiveOption adjusts a single Receive call.
type ReceiveOption func(*receiveOptions)

type receiveOptions struct {
	// continueTurn allows receiving without a pending user message, letting
	// the model continue from existing history.
	continueTurn bool
	maxTurns     int
}

// WithContinue lets Receive run without a pending Send, continuing from the
// current history.
func WithContinue() ReceiveOption {
	return func(r *receiveOptions) { r.continueTurn = true }
}

// WithReceiveMaxTurns overrides the session's max-turns cap for one Receive.
func WithReceiveMaxTurns(n int) ReceiveOption {
	return func(r *receiveOptions) { r.maxTurns = n }
}

// Receive runs the turn loop and returns a stream of events. The loop runs
// until the model stops calling tools, a cap is hit, ctx is cancelled, or the
// session closes. The returned stream must be drained.
func (s *Session) Receive(ctx context.Context, opts ...ReceiveOption) (*EventStream, error) {
	var ropts receiveOptions
	for _, opt := range opts {
		opt(&ropts)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.receiving {
		s.mu.Unlock()
		return nil, ErrAlreadyReceiving
	}
	if !s.pending && !ropts.continueTurn {
		s.mu.Unlock()
		return nil, ErrNoPendingMessage
	}
	if s.opts.provider == nil {
		s.mu.Unlock()
		return nil, ErrNoProvider
	}
	s.receiving = true
	s.pending = false
	s.mu.Unlock()

	events := make(chan Event, s.opts.streamBufferSize)
	runCtx, cancelRun := context.WithCancel(ctx)
	stopWatch := context.AfterFunc(s.lifeCtx, cancelRun)

	go func() {
		defer func() {
			stopWatch()
			cancelRun()
			s.finishReceive()
			close(events)
		}()
		s.runTurns(runCtx, events, &ropts)
	}()
	return newEventStream(events), nil
}

// finishReceive clears the receiving flag and persists a snapshot.
func (s *Session) finishReceive() {
	s.mu.Lock()
	s.receiving = false
	s.state.UpdatedAt = time.Now().UTC()
	snapshot := s.state.Clone()
	storage := s.opts.storage
	logger := s.opts.logger
	s.mu.Unlock()

	if storage == nil {
		return
	}
	if err := storage.Save(context.Background(), snapshot); err != nil {
		logger.Warn("persist session failed", "session", snapshot.ID, "error", err)
	}
}

// State returns a deep copy of the session state.
func (s *Session) State() *SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Messages returns a deep copy of the conversation history.
func (s *Session) Messages() []Message {
	return s.State().Messages
}

// Usage returns cumulative token usage across all turns.
func (s *Session) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Usage
}

// TotalCost returns the cumulative spend in USD. Zero when no budget
// tracking is configured.
func (s *Session) TotalCost() decimal.Decimal {
	if s.budget == nil {
		return decimal.Zero
	}
	return s.budget.TotalCost()
}

// Close terminates the session, cancelling any in-flight Receive and
// persisting a final snapshot. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.finishReceive()
	return nil
}
