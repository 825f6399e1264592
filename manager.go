package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Manager owns the lifecycle of sessions backed by a shared store. It hands
// out live sessions for create, resume, and fork, and tracks which are
// active so a resume of a running session returns the same instance.
type Manager struct {
	mu      sync.Mutex
	active  map[string]*Session
	storage Storage
	logger  *slog.Logger
	base    []Option
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerStorage sets the store shared by all sessions. Defaults to an
// in-memory store.
func WithManagerStorage(s Storage) ManagerOption {
	return func(m *Manager) { m.storage = s }
}

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDefaults sets session options applied to every session the manager
// creates, before per-call options.
func WithDefaults(opts ...Option) ManagerOption {
	return func(m *Manager) { m.base = append(m.base, opts...) }
}

// NewManager creates a session manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		active:  make(map[string]*Session),
		storage: NewMemoryStorage(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create makes a new session, or delegates to Resume/Fork when the
// WithResume or WithFork options are present.
func (m *Manager) Create(ctx context.Context, opts ...Option) (*Session, error) {
	combined := m.combine(opts)
	o := resolveOptions(combined)
	if o.resumeID != "" {
		return m.Resume(ctx, o.resumeID, opts...)
	}
	if o.forkID != "" {
		return m.Fork(ctx, o.forkID, opts...)
	}

	sess, err := NewSession(combined...)
	if err != nil {
		return nil, err
	}
	if err := m.storage.Save(ctx, sess.State()); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}
	m.register(sess)
	m.logger.Debug("session created", "session", sess.ID())
	return sess, nil
}

// Resume returns the live session if one is active under id, otherwise
// rehydrates it from the store.
func (m *Manager) Resume(ctx context.Context, id string, opts ...Option) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.active[id]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	state, err := m.storage.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	sess, err := m.buildSession(state, opts)
	if err != nil {
		return nil, err
	}
	m.register(sess)
	m.logger.Debug("session resumed", "session", id)
	return sess, nil
}

// Fork copies a persisted session into a new one sharing its history. The
// fork gets a fresh ID, records its parent, and resets timestamps; the
// original is untouched.
func (m *Manager) Fork(ctx context.Context, id string, opts ...Option) (*Session, error) {
	state, err := m.storage.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	forked := state.Clone()
	forked.ParentID = state.ID
	forked.ID = generateID(PrefixSession)
	now := time.Now().UTC()
	forked.CreatedAt = now
	forked.UpdatedAt = now

	sess, err := m.buildSession(forked, opts)
	if err != nil {
		return nil, err
	}
	if err := m.storage.Save(ctx, sess.State()); err != nil {
		return nil, fmt.Errorf("persist forked session: %w", err)
	}
	m.register(sess)
	m.logger.Debug("session forked", "session", sess.ID(), "parent", id)
	return sess, nil
}

// Close persists the session's final state and shuts it down.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if err := m.storage.Save(ctx, sess.State()); err != nil {
		m.logger.Warn("persist on close failed", "session", id, "error", err)
	}
	return sess.Close()
}

// CloseAll closes every active session concurrently.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			return m.Close(gctx, id)
		})
	}
	return g.Wait()
}

// Active returns the live session for id, if any.
func (m *Manager) Active(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.active[id]
	return sess, ok
}

// List returns the IDs of all persisted sessions.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.storage.List(ctx)
}

// Delete removes a persisted session. The session must not be active.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, isActive := m.active[id]
	m.mu.Unlock()
	if isActive {
		return fmt.Errorf("session %s is active; close it first", id)
	}
	return m.storage.Delete(ctx, id)
}

func (m *Manager) register(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[sess.ID()] = sess
}

// combine prepends manager defaults and injects the shared store and logger
// unless the caller overrides them.
func (m *Manager) combine(opts []Option) []Option {
	combined := make([]Option, 0, len(m.base)+len(opts)+2)
	combined = append(combined, WithStorage(m.storage), WithLogger(m.logger))
	combined = append(combined, m.base...)
	combined = append(combined, opts...)
	return combined
}

func (m *Manager) buildSession(state *SessionState, opts []Option) (*Session, error) {
	o := resolveOptions(m.combine(opts))
	o.resumeID = ""
	o.forkID = ""
	applySettings(o)
	return newSession(state, o)
}
