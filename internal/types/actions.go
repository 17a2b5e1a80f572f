package types

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ActionType tags an instruction proposed by the reasoning step.
type ActionType string

const (
	ActionStatus          ActionType = "status"
	ActionRunCommand      ActionType = "run_command"
	ActionWriteConfig     ActionType = "write_config"
	ActionTestIntegration ActionType = "test_integration"
	ActionAskUser         ActionType = "ask_user"
	ActionSyncSkill       ActionType = "sync_skill"
	ActionSyncMCP         ActionType = "sync_mcp"
	ActionUpdateMemory    ActionType = "update_memory"
	ActionComplete        ActionType = "complete"
)

// ActionFlow tells the turn loop what to do after an action ran.
type ActionFlow int

const (
	// FlowContinue proceeds to the next action in the batch.
	FlowContinue ActionFlow = iota
	// FlowComplete ends the session successfully; later actions are skipped.
	FlowComplete
	// FlowCancelled ends the session as cancelled; later actions are skipped.
	FlowCancelled
)

func (f ActionFlow) String() string {
	switch f {
	case FlowComplete:
		return "complete"
	case FlowCancelled:
		return "cancelled"
	default:
		return "continue"
	}
}

// ActionHandler executes actions. Adding an Action variant adds a method
// here, so every handler fails to compile until it covers the new kind.
type ActionHandler interface {
	HandleStatus(ctx context.Context, a StatusAction) ActionFlow
	HandleRunCommand(ctx context.Context, a RunCommandAction) ActionFlow
	HandleWriteConfig(ctx context.Context, a WriteConfigAction) ActionFlow
	HandleTestIntegration(ctx context.Context, a TestIntegrationAction) ActionFlow
	HandleAskUser(ctx context.Context, a AskUserAction) ActionFlow
	HandleSyncSkill(ctx context.Context, a SyncSkillAction) ActionFlow
	HandleSyncMCP(ctx context.Context, a SyncMCPAction) ActionFlow
	HandleUpdateMemory(ctx context.Context, a UpdateMemoryAction) ActionFlow
	HandleComplete(ctx context.Context, a CompleteAction) ActionFlow
}

// Action is one of the nine closed action variants.
type Action interface {
	Type() ActionType
	Accept(ctx context.Context, h ActionHandler) ActionFlow
}

type StatusAction struct {
	Message string `json:"message" validate:"required"`
}

type RunCommandAction struct {
	Command     string   `json:"command" validate:"required"`
	Args        []string `json:"args"`
	Description string   `json:"description"`
}

type WriteConfigAction struct {
	Path        string `json:"path" validate:"required"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

type TestIntegrationAction struct {
	ModelName string   `json:"model_name"`
	Command   string   `json:"command" validate:"required"`
	Args      []string `json:"args"`
}

type AskUserAction struct {
	Action InputRequest `json:"action"`
}

type SyncSkillAction struct {
	SourceCLI string `json:"source_cli" validate:"required"`
	TargetCLI string `json:"target_cli" validate:"required"`
	SkillName string `json:"skill_name" validate:"required"`
}

type SyncMCPAction struct {
	SourceCLI string `json:"source_cli"`
	TargetCLI string `json:"target_cli" validate:"required"`
	MCPName   string `json:"mcp_name" validate:"required"`
	// Config is the entry body; JSON for .json targets, free text for TOML.
	Config string `json:"config" validate:"required"`
}

type UpdateMemoryAction struct {
	NodeType string     `json:"node_type" validate:"required"`
	Label    string     `json:"label" validate:"required"`
	Data     string     `json:"data"`
	Edges    []EdgeSpec `json:"edges" validate:"dive"`
}

// EdgeSpec links the updated node to the node of the same type with
// TargetLabel.
type EdgeSpec struct {
	TargetLabel string `json:"target_label" validate:"required"`
	EdgeType    string `json:"edge_type" validate:"required"`
}

type CompleteAction struct {
	Summary string   `json:"summary"`
	Items   []string `json:"items"`
}

func (StatusAction) Type() ActionType          { return ActionStatus }
func (RunCommandAction) Type() ActionType      { return ActionRunCommand }
func (WriteConfigAction) Type() ActionType     { return ActionWriteConfig }
func (TestIntegrationAction) Type() ActionType { return ActionTestIntegration }
func (AskUserAction) Type() ActionType         { return ActionAskUser }
func (SyncSkillAction) Type() ActionType       { return ActionSyncSkill }
func (SyncMCPAction) Type() ActionType         { return ActionSyncMCP }
func (UpdateMemoryAction) Type() ActionType    { return ActionUpdateMemory }
func (CompleteAction) Type() ActionType        { return ActionComplete }

func (a StatusAction) Accept(ctx context.Context, h ActionHandler) ActionFlow {
	return h.HandleStatus(ctx, a)
}

func (a RunCommandAction) Accept(ctx context.Context, h ActionHandler) ActionFlow {
	return h.HandleRunCommand(ctx, a)
}

func (a WriteConfigAction) Accept(ctx context.Context, h ActionHandler) ActionFlow {
	return h.HandleWriteConfig(ctx, a)
}

func (a TestIntegrationAction) Accept(ctx context.Context, h ActionHandler) ActionFlow {
	return h.HandleTestIntegration(ctx, a)
}

func (a AskUserAction) Accept(ctx context.Context, h ActionHandler) ActionFlow {
	return h.HandleAskUser(ctx, a)
}

func (a SyncSkillAction) Accept(ctx context.Context, h ActionHandler) ActionFlow {
	return h.HandleSyncSkill(ctx, a)
}

func (a SyncMCPAction) Accept(ctx context.Context, h ActionHandler) ActionFlow {
	return h.HandleSyncMCP(ctx, a)
}

func (a UpdateMemoryAction) Accept(ctx context.Context, h ActionHandler) ActionFlow {
	return h.HandleUpdateMemory(ctx, a)
}

func (a CompleteAction) Accept(ctx context.Context, h ActionHandler) ActionFlow {
	return h.HandleComplete(ctx, a)
}

// CommandLine renders command and args the way feedback and results show them.
func CommandLine(command string, args []string) string {
	return strings.TrimSpace(command + " " + strings.Join(args, " "))
}

// =============================================================================
// TURN DECODING
// =============================================================================

// TurnResult is one validated reply of the reasoning step.
type TurnResult struct {
	Actions []Action
	Done    bool
}

var actionValidator = validator.New(validator.WithRequiredStructEnabled())

type wireTurn struct {
	Actions *[]json.RawMessage `json:"actions"`
	Done    *bool              `json:"done"`
}

// DecodeTurn parses and validates a turn reply of the form
// {"actions": [...], "done": bool}. Every action must be a known variant with
// its required fields present.
func DecodeTurn(raw []byte) (*TurnResult, error) {
	var w wireTurn
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("invalid turn JSON: %w", err)
	}
	if w.Actions == nil {
		return nil, fmt.Errorf("turn is missing \"actions\"")
	}
	if w.Done == nil {
		return nil, fmt.Errorf("turn is missing \"done\"")
	}

	result := &TurnResult{Done: *w.Done, Actions: make([]Action, 0, len(*w.Actions))}
	for i, item := range *w.Actions {
		a, err := DecodeAction(item)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		result.Actions = append(result.Actions, a)
	}
	return result, nil
}

// DecodeAction parses one tagged action object.
func DecodeAction(data []byte) (Action, error) {
	tag, err := peekTag(data, "type")
	if err != nil {
		return nil, err
	}
	data, err = normalizeStringFields(data, "data", "config")
	if err != nil {
		return nil, err
	}

	switch ActionType(tag) {
	case ActionStatus:
		return decodeAction[StatusAction](data)
	case ActionRunCommand:
		return decodeAction[RunCommandAction](data)
	case ActionWriteConfig:
		return decodeAction[WriteConfigAction](data)
	case ActionTestIntegration:
		return decodeAction[TestIntegrationAction](data)
	case ActionAskUser:
		return decodeAction[AskUserAction](data)
	case ActionSyncSkill:
		return decodeAction[SyncSkillAction](data)
	case ActionSyncMCP:
		return decodeAction[SyncMCPAction](data)
	case ActionUpdateMemory:
		return decodeAction[UpdateMemoryAction](data)
	case ActionComplete:
		return decodeAction[CompleteAction](data)
	default:
		return nil, fmt.Errorf("unknown action type %q", tag)
	}
}

func decodeAction[T Action](data []byte) (Action, error) {
	var a T
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("invalid %s action: %w", a.Type(), err)
	}
	if err := actionValidator.Struct(a); err != nil {
		return nil, fmt.Errorf("invalid %s action: %w", a.Type(), err)
	}
	return a, nil
}

// normalizeStringFields accepts either a string or any other JSON value for
// the named members and rewrites non-strings to their compact JSON text.
func normalizeStringFields(data []byte, names ...string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	changed := false
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(string(raw))
		if trimmed == "null" {
			delete(fields, name)
			changed = true
			continue
		}
		if strings.HasPrefix(trimmed, `"`) {
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return nil, err
		}
		text, err := json.Marshal(compact.String())
		if err != nil {
			return nil, err
		}
		fields[name] = text
		changed = true
	}
	if !changed {
		return data, nil
	}
	return json.Marshal(fields)
}

// DescribeActions renders a batch as a short summary for the turn log,
// e.g. "status, run_command(claude --version), complete".
func DescribeActions(actions []Action) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		switch v := a.(type) {
		case RunCommandAction:
			parts = append(parts, fmt.Sprintf("%s(%s)", v.Type(), CommandLine(v.Command, v.Args)))
		case TestIntegrationAction:
			parts = append(parts, fmt.Sprintf("%s(%s)", v.Type(), v.ModelName))
		case WriteConfigAction:
			parts = append(parts, fmt.Sprintf("%s(%s)", v.Type(), v.Path))
		case SyncSkillAction:
			parts = append(parts, fmt.Sprintf("%s(%s->%s)", v.Type(), v.SkillName, v.TargetCLI))
		case SyncMCPAction:
			parts = append(parts, fmt.Sprintf("%s(%s->%s)", v.Type(), v.MCPName, v.TargetCLI))
		case UpdateMemoryAction:
			parts = append(parts, fmt.Sprintf("%s(%s:%s)", v.Type(), v.NodeType, v.Label))
		default:
			parts = append(parts, string(a.Type()))
		}
	}
	if len(parts) == 0 {
		return "(no actions)"
	}
	return strings.Join(parts, ", ")
}
