// Package tactile is the side-effect boundary of a setup session: it runs
// allowlisted commands and writes files under allowlisted roots. Nothing
// outside this package spawns processes or writes configuration on behalf of
// the reasoning step.
package tactile

import (
	"strings"
	"time"
)

// Command is a process to run.
type Command struct {
	// Binary is the executable name as proposed (e.g. "claude", "npm").
	Binary string `json:"binary"`

	// Arguments are passed verbatim; no shell is involved.
	Arguments []string `json:"arguments"`

	// WorkingDirectory defaults to the current directory when empty.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Timeout overrides the executor default. Zero means the default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// SessionID links this execution to a setup session (for audit).
	SessionID string `json:"session_id,omitempty"`
}

// CommandString returns the full command for display and logging.
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ExecutionResult is the captured outcome of a command that ran.
type ExecutionResult struct {
	// ExitCode is the command's exit code (-1 if not available).
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed indicates the command was terminated by its timeout.
	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates output exceeded MaxOutputBytes.
	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`
}

// Succeeded reports a zero exit status.
func (r *ExecutionResult) Succeeded() bool {
	return !r.Killed && r.ExitCode == 0
}

// ExecutorConfig configures a DirectExecutor.
type ExecutorConfig struct {
	// DefaultTimeout applies when Command.Timeout is zero. Zero disables it.
	DefaultTimeout time.Duration

	// MaxOutputBytes caps each of stdout and stderr.
	MaxOutputBytes int64
}

// DefaultExecutorConfig returns the executor defaults: no timeout, 1MB of
// output per stream.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxOutputBytes: 1024 * 1024,
	}
}
