package tactile

import (
	"context"

	"agentrunner/internal/logging"
)

// AllowlistExecutor refuses any command whose binary is not literally one of
// a fixed set of names, then delegates to an inner Executor. The set is
// copied at construction and never changes.
type AllowlistExecutor struct {
	inner   Executor
	allowed map[string]struct{}
	audit   *logging.AuditLogger
}

// NewAllowlistExecutor wraps inner with the given binary names.
func NewAllowlistExecutor(inner Executor, allowed []string) *AllowlistExecutor {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}
	return &AllowlistExecutor{inner: inner, allowed: set, audit: logging.Audit()}
}

// WithAudit scopes allow/block audit records to a session.
func (a *AllowlistExecutor) WithAudit(l *logging.AuditLogger) *AllowlistExecutor {
	a.audit = l
	return a
}

// Allowed reports whether binary is on the allowlist.
func (a *AllowlistExecutor) Allowed(binary string) bool {
	_, ok := a.allowed[binary]
	return ok
}

// Validate returns a *ViolationError for a binary that is not allowlisted.
// Names are matched literally: "/usr/bin/claude" does not match "claude".
func (a *AllowlistExecutor) Validate(cmd Command) error {
	if !a.Allowed(cmd.Binary) {
		return &ViolationError{Kind: ViolationCommand, Subject: cmd.Binary}
	}
	return a.inner.Validate(cmd)
}

// Execute validates cmd and runs it through the inner executor.
func (a *AllowlistExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if err := a.Validate(cmd); err != nil {
		a.audit.SafetyCheck(cmd.CommandString(), false, err.Error())
		logging.TactileWarn("Blocked command: %s", cmd.CommandString())
		return nil, err
	}
	a.audit.SafetyCheck(cmd.CommandString(), true, "allowlisted")

	result, err := a.inner.Execute(ctx, cmd)
	if err != nil {
		a.audit.ToolExec(cmd.Binary, -1, 0, err.Error())
		return nil, err
	}
	if result.Killed {
		a.audit.ToolExec(cmd.Binary, result.ExitCode, result.Duration, result.KillReason)
		return result, nil
	}
	a.audit.ToolExec(cmd.Binary, result.ExitCode, result.Duration, "")
	return result, nil
}
