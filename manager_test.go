package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreatePersistsImmediately(t *testing.T) {
	store := NewMemoryStorage()
	m := NewManager(WithManagerStorage(store))

	sess, err := m.Create(context.Background())
	require.NoError(t, err)

	state, err := store.Load(context.Background(), sess.ID())
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), state.ID)
	assert.Empty(t, state.Messages)
}

func TestManagerResumeActiveReturnsSameInstance(t *testing.T) {
	m := NewManager()
	sess, err := m.Create(context.Background())
	require.NoError(t, err)

	again, err := m.Resume(context.Background(), sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, again)
}

func TestManagerResumeFromStorage(t *testing.T) {
	store := NewMemoryStorage()
	m := NewManager(WithManagerStorage(store))

	sess, err := m.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Send("remember me"))
	id := sess.ID()
	require.NoError(t, m.Close(context.Background(), id))

	resumed, err := m.Resume(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, resumed.ID())
	msgs := resumed.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "remember me", msgs[0].Text())
}

func TestManagerResumeNotFound(t *testing.T) {
	m := NewManager()
	_, err := m.Resume(context.Background(), "sess_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerCreateWithResumeOption(t *testing.T) {
	m := NewManager()
	sess, err := m.Create(context.Background())
	require.NoError(t, err)

	again, err := m.Create(context.Background(), WithResume(sess.ID()))
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), again.ID())
}

func TestManagerFork(t *testing.T) {
	store := NewMemoryStorage()
	m := NewManager(WithManagerStorage(store))

	orig, err := m.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, orig.Send("shared history"))
	require.NoError(t, m.Close(context.Background(), orig.ID()))

	fork, err := m.Fork(context.Background(), orig.ID())
	require.NoError(t, err)

	assert.NotEqual(t, orig.ID(), fork.ID())
	forkState := fork.State()
	assert.Equal(t, orig.ID(), forkState.ParentID)
	require.Len(t, forkState.Messages, 1)
	assert.Equal(t, "shared history", forkState.Messages[0].Text())

	// Divergence: the fork's new messages never reach the original.
	require.NoError(t, fork.Send("only in fork"))
	origState, err := store.Load(context.Background(), orig.ID())
	require.NoError(t, err)
	assert.Len(t, origState.Messages, 1)

	// Both snapshots exist independently.
	ids, err := m.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{orig.ID(), fork.ID()}, ids)
}

func TestManagerCloseNotActive(t *testing.T) {
	m := NewManager()
	err := m.Close(context.Background(), "sess_nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerClosePersistsFinalState(t *testing.T) {
	store := NewMemoryStorage()
	m := NewManager(WithManagerStorage(store))

	sess, err := m.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Send("final words"))
	require.NoError(t, m.Close(context.Background(), sess.ID()))

	state, err := store.Load(context.Background(), sess.ID())
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)

	// Closed sessions reject further use.
	assert.ErrorIs(t, sess.Send("too late"), ErrSessionClosed)
	_, ok := m.Active(sess.ID())
	assert.False(t, ok)
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager()
	a, err := m.Create(context.Background())
	require.NoError(t, err)
	b, err := m.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.CloseAll(context.Background()))
	assert.ErrorIs(t, a.Send("x"), ErrSessionClosed)
	assert.ErrorIs(t, b.Send("x"), ErrSessionClosed)
}

func TestManagerDelete(t *testing.T) {
	m := NewManager()
	sess, err := m.Create(context.Background())
	require.NoError(t, err)

	// Active sessions cannot be deleted.
	assert.Error(t, m.Delete(context.Background(), sess.ID()))

	require.NoError(t, m.Close(context.Background(), sess.ID()))
	require.NoError(t, m.Delete(context.Background(), sess.ID()))
	_, err = m.Resume(context.Background(), sess.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerDefaultsApplyToSessions(t *testing.T) {
	provider := &fakeProvider{scripts: [][]StreamEvent{textTurn("ok")}}
	m := NewManager(WithDefaults(WithProvider(provider), WithModel("default-model")))

	sess, err := m.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Send("hi"))
	stream, err := sess.Receive(context.Background())
	require.NoError(t, err)
	collect(t, stream)

	require.Len(t, provider.requests, 1)
	assert.Equal(t, "default-model", provider.requests[0].Model)
}
