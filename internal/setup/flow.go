// Package setup runs setup sessions: a turn loop in which an external
// reasoning step proposes actions, the sandbox executes them, and the results
// are fed back until the reasoning step completes, the user cancels, or the
// turn budget runs out.
package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"agentrunner/internal/agent"
	"agentrunner/internal/config"
	"agentrunner/internal/extensions"
	"agentrunner/internal/logging"
	"agentrunner/internal/store"
	"agentrunner/internal/types"
)

// MaxTurns is the default turn budget of a session.
const MaxTurns = 25

const (
	fullSetupMessage = "Analyze the system state and begin setup."
	continueMessage  = "Continue with the next step."
	feedbackHeader   = "Results from previous actions:\n\n"
)

// Graph is the memory graph as used by a session. *store.MemoryGraph
// satisfies it.
type Graph interface {
	SubgraphReader
	UpsertNode(id, nodeType, label string, data json.RawMessage) error
	AddEdge(sourceID, targetID, edgeType string) error
	CreateSession(id, scope string) error
	RecordTurn(sessionID string, turnNumber int, prompt, response, eventsJSON string) error
	EndSession(id, outcome string) error
}

var _ Graph = (*store.MemoryGraph)(nil)

// SenderFactory creates the turn client of a session from its briefing.
type SenderFactory func(systemPrompt string) agent.TurnSender

// FlowConfig holds the collaborators of one session.
type FlowConfig struct {
	SessionID string
	Graph     Graph
	Detector  types.Detector
	Sandbox   *Sandbox
	NewSender SenderFactory
	Sink      types.EventSink
	// Inbox delivers user responses. Closing it cancels the session.
	Inbox <-chan types.UserResponse

	// SandboxConfig is described to the reasoning step in the briefing.
	SandboxConfig config.SandboxConfig
	// MaxTurns defaults to MaxTurns.
	MaxTurns int
	// RequiredTool must be installed before a full setup can start.
	// Defaults to "claude".
	RequiredTool string
	// GOOS selects bootstrap install instructions. Defaults to runtime.GOOS.
	GOOS  string
	Audit *logging.AuditLogger
}

// Flow is one setup session. A Flow runs once.
//
// Cancelling the context passed to RunFull or RunTool is cooperative: it is
// observed at the top of each turn and while awaiting user input. An
// in-flight reasoning call or sandboxed command runs to completion or to its
// own timeout.
type Flow struct {
	cfg FlowConfig

	turnEvents []types.Event
	feedback   []string
	started    time.Time
	turns      int
}

// NewFlow creates a session from cfg.
func NewFlow(cfg FlowConfig) *Flow {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = MaxTurns
	}
	if cfg.RequiredTool == "" {
		cfg.RequiredTool = "claude"
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.Audit == nil {
		cfg.Audit = logging.AuditWithSession(cfg.SessionID)
	}
	return &Flow{cfg: cfg}
}

// RunFull detects every known tool, bootstraps the required tool when it is
// missing, then runs the turn loop over the full briefing.
func (f *Flow) RunFull(ctx context.Context) (Outcome, error) {
	f.begin("full")

	f.emit(types.StatusEvent{Message: "Detecting installed CLIs..."})
	report := f.cfg.Detector.DetectAll(ctx)
	f.emit(types.ShowResultEvent{Content: types.DetectionSummary{Tools: report.Summarize()}})

	if !report.Installed(f.cfg.RequiredTool) {
		var outcome Outcome
		var err error
		report, outcome, err = f.bootstrap(ctx, report)
		if err != nil {
			return f.finish(outcome, err)
		}
	}

	prompt, err := f.briefing(report).SystemPrompt()
	if err != nil {
		return f.fail(err)
	}
	return f.loop(ctx, prompt, fullSetupMessage)
}

// RunTool runs the turn loop scoped to a single named tool. Bootstrap is
// skipped.
func (f *Flow) RunTool(ctx context.Context, name string) (Outcome, error) {
	f.begin(name)

	f.emit(types.StatusEvent{Message: fmt.Sprintf("Detecting %s CLI...", name)})
	report := f.cfg.Detector.DetectOne(ctx, name)

	prompt, err := f.briefing(report).CLIPrompt(name)
	if err != nil {
		return f.fail(err)
	}
	return f.loop(ctx, prompt, fmt.Sprintf("Help set up the %s CLI.", name))
}

func (f *Flow) begin(scope string) {
	f.started = time.Now()
	if err := f.cfg.Graph.CreateSession(f.cfg.SessionID, scope); err != nil {
		logging.SetupWarn("Session %s not recorded: %v", f.cfg.SessionID, err)
	}
	f.cfg.Audit.SessionStart(scope)
	logging.Setup("Session %s started (scope=%s)", f.cfg.SessionID, scope)
}

// finish is the single terminal transition of a session.
func (f *Flow) finish(outcome Outcome, err error) (Outcome, error) {
	if perr := f.cfg.Graph.EndSession(f.cfg.SessionID, string(outcome)); perr != nil {
		logging.SetupWarn("Session %s end not recorded: %v", f.cfg.SessionID, perr)
	}
	f.cfg.Audit.SessionEnd(string(outcome), f.turns, time.Since(f.started))
	if err != nil {
		logging.Setup("Session %s ended: %s (%v)", f.cfg.SessionID, outcome, err)
	} else {
		logging.Setup("Session %s ended: %s", f.cfg.SessionID, outcome)
	}
	return outcome, err
}

func (f *Flow) fail(err error) (Outcome, error) {
	f.emit(types.ErrorEvent{Message: fmt.Sprintf("Agent error: %v", err), Recoverable: false})
	return f.finish(OutcomeAgentError, err)
}

func (f *Flow) emit(e types.Event) {
	f.turnEvents = append(f.turnEvents, e)
	f.cfg.Sink.Emit(e)
}

func (f *Flow) briefing(report *types.DetectionReport) *Briefing {
	var exts []extensions.Extension
	if f.cfg.Sandbox != nil {
		exts = f.cfg.Sandbox.Syncer().Discover(report.Tools)
	}
	return BuildBriefing(report, f.cfg.Graph, exts, f.cfg.SandboxConfig)
}

// bootstrap asks the user to install the required tool and waits. Any
// response other than a successful oauth_complete or a cancel proceeds with
// the original report.
func (f *Flow) bootstrap(ctx context.Context, report *types.DetectionReport) (*types.DetectionReport, Outcome, error) {
	tool := f.cfg.RequiredTool
	logging.Setup("%s not installed; waiting for bootstrap", tool)

	f.emit(types.NeedInputEvent{Action: types.InputRequest{
		Kind:         types.InputOAuthFlow,
		Provider:     tool,
		LoginCommand: tool + " login",
		Instructions: InstallInstructions(f.cfg.GOOS),
	}})

	resp, ok := f.await(ctx)
	if !ok {
		f.emit(types.ErrorEvent{Message: "Setup cancelled.", Recoverable: false})
		return nil, OutcomeCancelled, ErrCancelled
	}

	if done, isOAuth := resp.(types.OAuthComplete); isOAuth && done.Success {
		f.emit(types.StatusEvent{Message: fmt.Sprintf("Verifying %s CLI installation...", displayName(tool))})
		report = f.cfg.Detector.DetectAll(ctx)
		if !report.Installed(tool) {
			f.emit(types.ErrorEvent{
				Message:     fmt.Sprintf("%s CLI still not detected. Please install it and try again.", displayName(tool)),
				Recoverable: false,
			})
			return nil, OutcomeFailedBootstrap, ErrBootstrapFailed
		}
	}
	return report, "", nil
}

// await suspends until a user response arrives. It reports false for a
// cancel response, a closed inbox, or a cancelled context.
func (f *Flow) await(ctx context.Context) (types.UserResponse, bool) {
	select {
	case resp, ok := <-f.cfg.Inbox:
		if !ok {
			logging.SetupDebug("Session %s inbox closed", f.cfg.SessionID)
			return nil, false
		}
		if resp.ResponseType() == types.ResponseCancel {
			return nil, false
		}
		return resp, true
	case <-ctx.Done():
		return nil, false
	}
}

func (f *Flow) loop(ctx context.Context, systemPrompt, message string) (Outcome, error) {
	sender := f.cfg.NewSender(systemPrompt)

	for turn := 1; turn <= f.cfg.MaxTurns; turn++ {
		if ctx.Err() != nil {
			f.emit(types.ErrorEvent{Message: "Setup cancelled by user.", Recoverable: false})
			return f.finish(OutcomeCancelled, ErrCancelled)
		}

		f.turnEvents = nil
		f.feedback = nil

		pct := float64(turn) / float64(f.cfg.MaxTurns) * 100
		f.emit(types.ProgressEvent{
			Message: fmt.Sprintf("Agent turn %d/%d...", turn, f.cfg.MaxTurns),
			Percent: &pct,
		})
		f.emit(types.StatusEvent{Message: "Thinking..."})
		f.cfg.Audit.TurnStart(turn, len(message))

		result, err := sender.SendTurn(context.WithoutCancel(ctx), message, types.AgentTurnSchema)
		if err != nil {
			logging.SetupError("Turn %d failed: %v", turn, err)
			return f.fail(fmt.Errorf("turn %d: %w", turn, err))
		}
		f.turns = turn

		flow := f.runBatch(ctx, result.Actions)
		f.recordTurn(turn, message, result)
		f.cfg.Audit.TurnEnd(turn, len(result.Actions), result.Done)

		switch flow {
		case types.FlowComplete:
			return f.finish(OutcomeSuccess, nil)
		case types.FlowCancelled:
			return f.finish(OutcomeCancelled, ErrCancelled)
		}

		if result.Done {
			f.emit(types.CompleteEvent{Summary: "Setup finished.", Items: []string{}})
			return f.finish(OutcomeDone, nil)
		}
		message = nextMessage(f.feedback)
	}

	f.emit(types.ErrorEvent{
		Message:     "Setup agent exceeded maximum turns. Please retry or configure manually.",
		Recoverable: false,
	})
	return f.finish(OutcomeMaxTurnsExceeded, ErrMaxTurns)
}

// runBatch executes actions in order and stops at the first one that ends
// the session. Later actions in the batch are discarded.
func (f *Flow) runBatch(ctx context.Context, actions []types.Action) types.ActionFlow {
	for i, a := range actions {
		flow := a.Accept(ctx, f)
		if flow != types.FlowContinue {
			if skipped := len(actions) - i - 1; skipped > 0 {
				logging.SetupDebug("%s: discarding %d remaining actions", flow, skipped)
			}
			return flow
		}
	}
	return types.FlowContinue
}

func (f *Flow) recordTurn(turn int, prompt string, result *types.TurnResult) {
	events := make([]json.RawMessage, 0, len(f.turnEvents))
	for _, e := range f.turnEvents {
		data, err := types.MarshalEvent(e)
		if err != nil {
			continue
		}
		events = append(events, data)
	}
	eventsJSON, _ := json.Marshal(events)

	err := f.cfg.Graph.RecordTurn(f.cfg.SessionID, turn, prompt, types.DescribeActions(result.Actions), string(eventsJSON))
	if err != nil {
		logging.SetupWarn("Turn %d of %s not recorded: %v", turn, f.cfg.SessionID, err)
	}
}

// displayName capitalizes a tool name for user-facing messages.
func displayName(tool string) string {
	r, size := utf8.DecodeRuneInString(tool)
	if r == utf8.RuneError {
		return tool
	}
	return string(unicode.ToUpper(r)) + tool[size:]
}

func nextMessage(feedback []string) string {
	if len(feedback) == 0 {
		return continueMessage
	}
	return feedbackHeader + strings.Join(feedback, "\n\n")
}

// InstallInstructions returns how to install the Claude CLI on goos.
func InstallInstructions(goos string) string {
	const loginSteps = "2. After installation, run: claude login\n" +
		"3. Complete the OAuth flow in your browser\n" +
		"4. Click 'I've logged in' when done"

	switch goos {
	case "linux":
		return "To install Claude CLI:\n\n" +
			"1. Run: curl -fsSL https://claude.ai/install.sh | bash\n" + loginSteps
	case "darwin":
		return "To install Claude CLI:\n\n" +
			"1. Run: brew install claude\n" +
			"   OR: curl -fsSL https://claude.ai/install.sh | bash\n" + loginSteps
	case "windows":
		return "To install Claude CLI:\n\n" +
			"1. Run in PowerShell: irm https://claude.ai/install.ps1 | iex\n" + loginSteps
	default:
		return "Please visit https://claude.ai/download to install the Claude CLI " +
			"for your platform.\n\nAfter installation, run: claude login"
	}
}
