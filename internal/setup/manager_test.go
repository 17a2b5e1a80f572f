package setup

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentrunner/internal/agent"
	"agentrunner/internal/store"
	"agentrunner/internal/types"
)

const (
	askConfirm   = `{"actions":[{"type":"ask_user","action":{"type":"confirm","message":"Go?","confirm_id":"c1"}}],"done":false}`
	completeTurn = `{"actions":[{"type":"complete","summary":"configured","items":["claude"]}],"done":false}`
)

func newTestManager(t *testing.T, h *harness, sender agent.TurnSender) (*Manager, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "memory.db")
	m := NewManager(ManagerConfig{
		Config:     h.cfg,
		Home:       h.home,
		Detector:   h.detector,
		NewSender:  func(string, string) agent.TurnSender { return sender },
		OpenGraph:  func() (*store.MemoryGraph, error) { return store.Open(dbPath, "") },
		NewSandbox: func(string) *Sandbox { return h.sandbox },
	})
	return m, dbPath
}

func storedSession(t *testing.T, dbPath, id string) *store.Session {
	t.Helper()
	g, err := store.Open(dbPath, "")
	require.NoError(t, err)
	defer g.Close()
	s, err := g.GetSession(id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func TestManager_RespondResumesSession(t *testing.T) {
	h := newHarness(t)
	sender := &scriptedSender{respond: replies(t, askConfirm, completeTurn)}
	m, dbPath := newTestManager(t, h, sender)
	ctx := context.Background()

	id, events, err := m.StartFull(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var kinds []types.EventKind
	for e := range events {
		kinds = append(kinds, e.Kind())
		if e.Kind() == types.EventNeedInput {
			require.NoError(t, m.Respond(id, types.ConfirmResponse{ConfirmID: "c1", Confirmed: true}))
		}
	}

	outcome, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, types.EventComplete, kinds[len(kinds)-1])

	assert.Zero(t, m.Active())
	assert.ErrorIs(t, m.Respond(id, types.Skip{}), ErrUnknownSession)
	_, err = m.Wait(ctx, id)
	assert.ErrorIs(t, err, ErrUnknownSession)

	s := storedSession(t, dbPath, id)
	assert.Equal(t, "success", s.Outcome)
	assert.Equal(t, 2, s.TurnCount)
}

func TestManager_InboxHoldsOneResponse(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	ask := replies(t, askConfirm, completeTurn)
	sender := &scriptedSender{respond: func(turn int, msg string) (*types.TurnResult, error) {
		if turn == 1 {
			<-release
		}
		return ask(turn, msg)
	}}
	m, _ := newTestManager(t, h, sender)
	ctx := context.Background()

	id, events, err := m.StartTool(ctx, "claude")
	require.NoError(t, err)

	require.NoError(t, m.Respond(id, types.ConfirmResponse{ConfirmID: "c1", Confirmed: true}))
	assert.ErrorIs(t, m.Respond(id, types.Skip{}), ErrInboxFull)
	close(release)

	for range events {
	}
	outcome, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Contains(t, sender.messages[1], `"confirmed":true`)
}

func TestManager_CancelEndsSuspendedSession(t *testing.T) {
	h := newHarness(t)
	sender := &scriptedSender{respond: replies(t, askConfirm)}
	m, dbPath := newTestManager(t, h, sender)
	ctx := context.Background()

	id, events, err := m.StartFull(ctx)
	require.NoError(t, err)

	var last types.Event
	for e := range events {
		last = e
		if e.Kind() == types.EventNeedInput {
			require.NoError(t, m.Cancel(id))
			require.NoError(t, m.Cancel(id))
			assert.ErrorIs(t, m.Respond(id, types.Skip{}), ErrSessionClosed)
		}
	}

	outcome, err := m.Wait(ctx, id)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, types.ErrorEvent{Message: "Setup cancelled by user.", Recoverable: false}, last)
	assert.ErrorIs(t, m.Cancel(id), ErrUnknownSession)
	assert.Equal(t, "cancelled", storedSession(t, dbPath, id).Outcome)
}

func TestManager_UnknownSession(t *testing.T) {
	h := newHarness(t)
	m, _ := newTestManager(t, h, &scriptedSender{respond: replies(t, completeTurn)})

	assert.ErrorIs(t, m.Respond("nope", types.Skip{}), ErrUnknownSession)
	assert.ErrorIs(t, m.Cancel("nope"), ErrUnknownSession)
	_, err := m.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownSession)

	_, _, err = m.StartTool(context.Background(), "")
	assert.Error(t, err)
}

func TestManager_ConcurrentSessionsShareStore(t *testing.T) {
	h := newHarness(t)
	sender := &scriptedSender{respond: replies(t,
		`{"actions":[{"type":"update_memory","node_type":"cli","label":"claude","data":"{}","edges":[]}],"done":true}`)}
	m, dbPath := newTestManager(t, h, sender)
	ctx := context.Background()

	const n = 4
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id, events, err := m.StartTool(ctx, "claude")
		require.NoError(t, err)
		ids[i] = id
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range events {
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n, m.Active())
	for _, id := range ids {
		outcome, err := m.Wait(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDone, outcome)
	}
	assert.Zero(t, m.Active())

	g, err := store.Open(dbPath, "")
	require.NoError(t, err)
	defer g.Close()
	sessions, err := g.ListSessions(10)
	require.NoError(t, err)
	assert.Len(t, sessions, n)

	snap, err := g.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 1)
}
