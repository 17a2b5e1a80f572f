package setup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"agentrunner/internal/agent"
	"agentrunner/internal/config"
	"agentrunner/internal/logging"
	"agentrunner/internal/store"
	"agentrunner/internal/types"
)

// eventBuffer is the capacity of a session's event channel. A consumer that
// stops draining eventually blocks its session.
const eventBuffer = 64

var (
	ErrUnknownSession = errors.New("unknown setup session")
	ErrInboxFull      = errors.New("session already has a pending response")
	ErrSessionClosed  = errors.New("session no longer accepts responses")
)

// ManagerConfig holds what every session of a Manager shares.
type ManagerConfig struct {
	Config   *config.Config
	Home     string
	Detector types.Detector

	// NewSender creates the turn client of a session. Defaults to an
	// agent.Client built from Config.Agent.
	NewSender func(sessionID, systemPrompt string) agent.TurnSender
	// OpenGraph opens a session's own memory graph handle. Defaults to
	// store.Open on the configured database.
	OpenGraph func() (*store.MemoryGraph, error)
	// NewSandbox defaults to NewSandbox over Config and Home.
	NewSandbox func(sessionID string) *Sandbox
}

// Manager runs independent setup sessions concurrently.
type Manager struct {
	cfg ManagerConfig

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id     string
	inbox  chan types.UserResponse
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool

	outcome Outcome
	err     error
}

// NewManager creates a manager. cfg.Config and cfg.Detector are required.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.NewSender == nil {
		agentCfg := cfg.Config.Agent
		timeout := cfg.Config.GetAgentTimeout()
		cfg.NewSender = func(sessionID, systemPrompt string) agent.TurnSender {
			return agent.NewClient(agentCfg, timeout, systemPrompt).
				WithAudit(logging.AuditWithSession(sessionID))
		}
	}
	if cfg.OpenGraph == nil {
		path := cfg.Config.ResolvedDatabasePath()
		driver := cfg.Config.Memory.Driver
		cfg.OpenGraph = func() (*store.MemoryGraph, error) {
			return store.Open(path, driver)
		}
	}
	if cfg.NewSandbox == nil {
		appCfg, home := cfg.Config, cfg.Home
		cfg.NewSandbox = func(sessionID string) *Sandbox {
			return NewSandbox(appCfg, home, logging.AuditWithSession(sessionID))
		}
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*session)}
}

// StartFull starts a full setup session. The returned channel carries the
// session's events and is closed when it ends.
func (m *Manager) StartFull(ctx context.Context) (string, <-chan types.Event, error) {
	return m.start(ctx, func(ctx context.Context, f *Flow) (Outcome, error) {
		return f.RunFull(ctx)
	})
}

// StartTool starts a session scoped to the named tool.
func (m *Manager) StartTool(ctx context.Context, name string) (string, <-chan types.Event, error) {
	if name == "" {
		return "", nil, fmt.Errorf("tool name is required")
	}
	return m.start(ctx, func(ctx context.Context, f *Flow) (Outcome, error) {
		return f.RunTool(ctx, name)
	})
}

func (m *Manager) start(ctx context.Context, run func(context.Context, *Flow) (Outcome, error)) (string, <-chan types.Event, error) {
	graph, err := m.cfg.OpenGraph()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open memory graph: %w", err)
	}

	id := uuid.New().String()
	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		id:     id,
		inbox:  make(chan types.UserResponse, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	events := make(chan types.Event, eventBuffer)

	flow := NewFlow(FlowConfig{
		SessionID:     id,
		Graph:         graph,
		Detector:      m.cfg.Detector,
		Sandbox:       m.cfg.NewSandbox(id),
		NewSender:     func(prompt string) agent.TurnSender { return m.cfg.NewSender(id, prompt) },
		Sink:          types.EventSinkFunc(func(e types.Event) { events <- e }),
		Inbox:         s.inbox,
		SandboxConfig: m.cfg.Config.Sandbox,
		MaxTurns:      m.cfg.Config.Agent.MaxTurns,
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	go func() {
		defer close(s.done)
		defer close(events)
		defer cancel()
		defer func() {
			if err := graph.Close(); err != nil {
				logging.SetupWarn("Closing memory graph for %s: %v", id, err)
			}
		}()
		s.outcome, s.err = run(sctx, flow)
	}()

	return id, events, nil
}

func (m *Manager) lookup(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// Respond delivers resp to the session's single-slot inbox without
// blocking.
func (m *Manager) Respond(id string, resp types.UserResponse) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.inbox <- resp:
		return nil
	default:
		return ErrInboxFull
	}
}

// Cancel closes the session's inbox and cancels its context. The session
// ends with OutcomeCancelled at its next suspension point.
func (m *Manager) Cancel(id string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.inbox)
	}
	s.mu.Unlock()
	s.cancel()
	return nil
}

// Wait blocks until the session ends and returns its outcome. Once Wait has
// returned an outcome the session is forgotten; later calls for id report
// ErrUnknownSession.
func (m *Manager) Wait(ctx context.Context, id string) (Outcome, error) {
	s, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	select {
	case <-s.done:
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return s.outcome, s.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Active returns the number of sessions that have not been waited for.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
