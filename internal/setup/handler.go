package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"agentrunner/internal/logging"
	"agentrunner/internal/types"
)

// Feedback truncation limits, in bytes.
const (
	stdoutFeedbackLimit = 500
	stderrFeedbackLimit = 200
	testFeedbackLimit   = 300
)

var _ types.ActionHandler = (*Flow)(nil)

func (f *Flow) addFeedback(format string, args ...interface{}) {
	f.feedback = append(f.feedback, fmt.Sprintf(format, args...))
}

func (f *Flow) HandleStatus(_ context.Context, a types.StatusAction) types.ActionFlow {
	f.emit(types.StatusEvent{Message: a.Message})
	return types.FlowContinue
}

func (f *Flow) HandleRunCommand(ctx context.Context, a types.RunCommandAction) types.ActionFlow {
	if a.Description != "" {
		f.emit(types.StatusEvent{Message: a.Description})
	}
	line := types.CommandLine(a.Command, a.Args)

	res, err := f.cfg.Sandbox.Run(context.WithoutCancel(ctx), f.cfg.SessionID, a.Command, a.Args)
	if err != nil {
		logging.SetupDebug("run_command %s rejected: %v", line, err)
		f.addFeedback("Command failed: %v", err)
		f.emit(types.ErrorEvent{Message: err.Error(), Recoverable: true})
		return types.FlowContinue
	}

	f.emit(types.ShowResultEvent{Content: types.CommandOutput{
		Command:  line,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
	}})
	f.addFeedback("Command `%s` completed (exit %d).\nstdout: %s\nstderr: %s",
		line, res.ExitCode,
		truncate(res.Stdout, stdoutFeedbackLimit),
		truncate(res.Stderr, stderrFeedbackLimit))
	return types.FlowContinue
}

func (f *Flow) HandleWriteConfig(_ context.Context, a types.WriteConfigAction) types.ActionFlow {
	if a.Description != "" {
		f.emit(types.StatusEvent{Message: a.Description})
	}

	resolved, err := f.cfg.Sandbox.WriteConfig(a.Path, a.Content)
	if err != nil {
		f.addFeedback("Failed to write config: %v", err)
		f.emit(types.ErrorEvent{Message: err.Error(), Recoverable: true})
		return types.FlowContinue
	}

	f.emit(types.ShowResultEvent{Content: types.ConfigWritten{Path: resolved, Description: a.Description}})
	f.addFeedback("Config written: %s", a.Path)
	return types.FlowContinue
}

func (f *Flow) HandleTestIntegration(ctx context.Context, a types.TestIntegrationAction) types.ActionFlow {
	f.emit(types.StatusEvent{Message: fmt.Sprintf("Testing %s...", a.ModelName)})

	res, err := f.cfg.Sandbox.Run(context.WithoutCancel(ctx), f.cfg.SessionID, a.Command, a.Args)
	if err != nil {
		f.addFeedback("Test for %s failed: %v", a.ModelName, err)
		return types.FlowContinue
	}

	success := res.Succeeded()
	output := res.Stderr
	verdict := "FAIL"
	if success {
		output = res.Stdout
		verdict = "PASS"
	}
	f.emit(types.ShowResultEvent{Content: types.TestResult{Model: a.ModelName, Success: success, Output: output}})
	f.addFeedback("Test for %s: %s (exit %d). Output: %s",
		a.ModelName, verdict, res.ExitCode, truncate(output, testFeedbackLimit))
	return types.FlowContinue
}

func (f *Flow) HandleAskUser(ctx context.Context, a types.AskUserAction) types.ActionFlow {
	f.emit(types.NeedInputEvent{Action: a.Action})

	resp, ok := f.await(ctx)
	if !ok {
		f.emit(types.ErrorEvent{Message: "Setup cancelled by user.", Recoverable: false})
		return types.FlowCancelled
	}

	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte("{}")
	}
	f.addFeedback("User responded: %s", data)
	return types.FlowContinue
}

func (f *Flow) HandleSyncSkill(_ context.Context, a types.SyncSkillAction) types.ActionFlow {
	f.emit(types.StatusEvent{Message: fmt.Sprintf("Syncing skill '%s' to %s...", a.SkillName, a.TargetCLI)})

	if err := f.cfg.Sandbox.Syncer().CopySkill(a.SourceCLI, a.TargetCLI, a.SkillName); err != nil {
		f.addFeedback("Failed to sync skill: %v", err)
		return types.FlowContinue
	}
	f.addFeedback("Skill '%s' synced to %s", a.SkillName, a.TargetCLI)
	return types.FlowContinue
}

func (f *Flow) HandleSyncMCP(_ context.Context, a types.SyncMCPAction) types.ActionFlow {
	f.emit(types.StatusEvent{Message: fmt.Sprintf("Syncing MCP '%s' to %s...", a.MCPName, a.TargetCLI)})

	if err := f.cfg.Sandbox.Syncer().InstallMCP(a.TargetCLI, a.MCPName, a.Config); err != nil {
		f.addFeedback("Failed to sync MCP: %v", err)
		return types.FlowContinue
	}
	f.addFeedback("MCP '%s' installed in %s", a.MCPName, a.TargetCLI)
	return types.FlowContinue
}

// HandleUpdateMemory upserts "<type>:<label>" and links it to nodes of the
// same type. Failures are logged only.
func (f *Flow) HandleUpdateMemory(_ context.Context, a types.UpdateMemoryAction) types.ActionFlow {
	id := a.NodeType + ":" + a.Label

	var data json.RawMessage
	if a.Data != "" {
		data = json.RawMessage(a.Data)
	}
	if err := f.cfg.Graph.UpsertNode(id, a.NodeType, a.Label, data); err != nil {
		logging.SetupWarn("update_memory %s: %v", id, err)
	}
	for _, e := range a.Edges {
		target := a.NodeType + ":" + e.TargetLabel
		if err := f.cfg.Graph.AddEdge(id, target, e.EdgeType); err != nil {
			logging.SetupWarn("update_memory edge %s -> %s: %v", id, target, err)
		}
	}
	return types.FlowContinue
}

func (f *Flow) HandleComplete(_ context.Context, a types.CompleteAction) types.ActionFlow {
	items := a.Items
	if items == nil {
		items = []string{}
	}
	f.emit(types.CompleteEvent{Summary: a.Summary, Items: items})
	return types.FlowComplete
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
