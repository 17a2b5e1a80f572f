package setup

import (
	"context"

	"agentrunner/internal/config"
	"agentrunner/internal/extensions"
	"agentrunner/internal/logging"
	"agentrunner/internal/tactile"
)

// Sandbox is the side-effect boundary of a session. Its allowlists are fixed
// at construction.
type Sandbox struct {
	exec   tactile.Executor
	guard  *tactile.PathGuard
	syncer *extensions.Syncer
}

// NewSandbox builds the allowlisted executor, path guard and extension
// syncer described by cfg.Sandbox, rooted at home.
func NewSandbox(cfg *config.Config, home string, audit *logging.AuditLogger) *Sandbox {
	inner := tactile.NewDirectExecutorWithConfig(tactile.ExecutorConfig{
		DefaultTimeout: cfg.GetCommandTimeout(),
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
	})
	return &Sandbox{
		exec:   tactile.NewAllowlistExecutor(inner, cfg.Sandbox.AllowedCommands).WithAudit(audit),
		guard:  tactile.NewPathGuard(home, cfg.Sandbox.AllowedWriteRoots).WithAudit(audit),
		syncer: extensions.NewSyncer(home),
	}
}

// NewSandboxWith assembles a sandbox from prebuilt parts.
func NewSandboxWith(exec tactile.Executor, guard *tactile.PathGuard, syncer *extensions.Syncer) *Sandbox {
	return &Sandbox{exec: exec, guard: guard, syncer: syncer}
}

// Run executes an allowlisted command. A *tactile.ViolationError means
// nothing was spawned.
func (s *Sandbox) Run(ctx context.Context, sessionID, command string, args []string) (*tactile.ExecutionResult, error) {
	return s.exec.Execute(ctx, tactile.Command{
		Binary:    command,
		Arguments: args,
		SessionID: sessionID,
	})
}

// WriteConfig writes content under an allowed root and returns the resolved
// path.
func (s *Sandbox) WriteConfig(path, content string) (string, error) {
	return s.guard.WriteFile(path, content)
}

// Syncer returns the extension syncer.
func (s *Sandbox) Syncer() *extensions.Syncer {
	return s.syncer
}
