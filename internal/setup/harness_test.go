package setup

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"agentrunner/internal/agent"
	"agentrunner/internal/config"
	"agentrunner/internal/extensions"
	"agentrunner/internal/store"
	"agentrunner/internal/tactile"
	"agentrunner/internal/types"
)

// scriptedSender answers each turn with respond(turn, message).
type scriptedSender struct {
	mu       sync.Mutex
	prompts  []string
	messages []string
	respond  func(turn int, message string) (*types.TurnResult, error)
}

func (s *scriptedSender) SendTurn(_ context.Context, message, schema string) (*types.TurnResult, error) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	turn := len(s.messages)
	s.mu.Unlock()
	return s.respond(turn, message)
}

func (s *scriptedSender) turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// replies answers turn n with the n-th reply and repeats the last one.
func replies(t *testing.T, raw ...string) func(int, string) (*types.TurnResult, error) {
	t.Helper()
	results := make([]*types.TurnResult, len(raw))
	for i, r := range raw {
		res, err := types.DecodeTurn([]byte(r))
		require.NoError(t, err, r)
		results[i] = res
	}
	return func(turn int, _ string) (*types.TurnResult, error) {
		if turn > len(results) {
			turn = len(results)
		}
		return results[turn-1], nil
	}
}

// recordingExecutor stands in for the host: it records commands and returns
// a canned result.
type recordingExecutor struct {
	mu     sync.Mutex
	calls  []tactile.Command
	result tactile.ExecutionResult
}

func (e *recordingExecutor) Execute(_ context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, cmd)
	res := e.result
	return &res, nil
}

func (e *recordingExecutor) Validate(tactile.Command) error { return nil }

func (e *recordingExecutor) commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = c.CommandString()
	}
	return out
}

// fixedDetector returns reports in sequence, repeating the last.
type fixedDetector struct {
	mu      sync.Mutex
	reports []*types.DetectionReport
	calls   int
}

func (d *fixedDetector) DetectAll(context.Context) *types.DetectionReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	if i >= len(d.reports) {
		i = len(d.reports) - 1
	}
	d.calls++
	return d.reports[i]
}

func (d *fixedDetector) DetectOne(ctx context.Context, name string) *types.DetectionReport {
	full := d.DetectAll(ctx)
	out := &types.DetectionReport{OS: full.OS, Wrappers: []types.WrapperInfo{}}
	if tool, ok := full.Tool(name); ok {
		out.Tools = []types.ToolInfo{tool}
	} else {
		out.Tools = []types.ToolInfo{{Name: name, Profiles: []types.Profile{}}}
	}
	return out
}

func reportWith(installed ...string) *types.DetectionReport {
	r := &types.DetectionReport{
		OS:       types.OSInfo{OSType: "linux", Arch: "amd64"},
		Wrappers: []types.WrapperInfo{},
	}
	for _, name := range []string{"claude", "codex"} {
		info := types.ToolInfo{Name: name, Profiles: []types.Profile{}}
		for _, i := range installed {
			if i == name {
				info.Installed = true
				info.Version = "1.0.0"
			}
		}
		r.Tools = append(r.Tools, info)
	}
	return r
}

type recordingSink struct {
	mu     sync.Mutex
	events []types.Event
}

func (s *recordingSink) Emit(e types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Event(nil), s.events...)
}

func (s *recordingSink) last() types.Event {
	all := s.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (s *recordingSink) count(kind types.EventKind) int {
	n := 0
	for _, e := range s.all() {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

type harness struct {
	t        *testing.T
	home     string
	cfg      *config.Config
	graph    *store.MemoryGraph
	exec     *recordingExecutor
	sandbox  *Sandbox
	sink     *recordingSink
	inbox    chan types.UserResponse
	sender   *scriptedSender
	detector *fixedDetector

	// requiredTool overrides the bootstrap tool when set.
	requiredTool string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()

	graph, err := store.Open(filepath.Join(t.TempDir(), "memory.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })

	cfg := config.DefaultConfig()
	exec := &recordingExecutor{result: tactile.ExecutionResult{ExitCode: 0, Stdout: "ok"}}
	sandbox := NewSandboxWith(
		tactile.NewAllowlistExecutor(exec, cfg.Sandbox.AllowedCommands),
		tactile.NewPathGuard(home, cfg.Sandbox.AllowedWriteRoots),
		extensions.NewSyncer(home),
	)

	return &harness{
		t:        t,
		home:     home,
		cfg:      cfg,
		graph:    graph,
		exec:     exec,
		sandbox:  sandbox,
		sink:     &recordingSink{},
		inbox:    make(chan types.UserResponse, 1),
		sender:   &scriptedSender{respond: replies(t, `{"actions":[],"done":true}`)},
		detector: &fixedDetector{reports: []*types.DetectionReport{reportWith("claude")}},
	}
}

func (h *harness) flow(sessionID string) *Flow {
	return NewFlow(FlowConfig{
		SessionID: sessionID,
		Graph:     h.graph,
		Detector:  h.detector,
		Sandbox:   h.sandbox,
		NewSender: func(prompt string) agent.TurnSender {
			h.sender.mu.Lock()
			h.sender.prompts = append(h.sender.prompts, prompt)
			h.sender.mu.Unlock()
			return h.sender
		},
		Sink:          h.sink,
		Inbox:         h.inbox,
		SandboxConfig: h.cfg.Sandbox,
		RequiredTool:  h.requiredTool,
		GOOS:          "linux",
	})
}

func (h *harness) session(id string) *store.Session {
	h.t.Helper()
	s, err := h.graph.GetSession(id)
	require.NoError(h.t, err)
	require.NotNil(h.t, s)
	return s
}

func tactileResult(exit int, stdout, stderr string) tactile.ExecutionResult {
	return tactile.ExecutionResult{ExitCode: exit, Stdout: stdout, Stderr: stderr}
}
