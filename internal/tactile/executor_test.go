package tactile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"agentrunner/internal/logging"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
}

func TestDirectExecutorCapturesOutput(t *testing.T) {
	skipOnWindows(t)
	e := NewDirectExecutor()

	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "echo out; echo err >&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.False(t, res.Succeeded())
}

func TestDirectExecutorMissingBinaryIsToolFailure(t *testing.T) {
	e := NewDirectExecutor()

	_, err := e.Execute(context.Background(), Command{Binary: "definitely-not-a-real-binary-xyz"})
	var tf *ToolFailureError
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, "definitely-not-a-real-binary-xyz", tf.Binary)
}

func TestDirectExecutorTimeout(t *testing.T) {
	skipOnWindows(t)
	e := NewDirectExecutorWithConfig(ExecutorConfig{DefaultTimeout: 100 * time.Millisecond})

	res, err := e.Execute(context.Background(), Command{Binary: "sleep", Arguments: []string{"5"}})
	require.NoError(t, err)
	assert.True(t, res.Killed)
	assert.False(t, res.Succeeded())
	assert.Equal(t, "timeout after 100ms", res.KillReason)
}

func TestDirectExecutorTruncatesOutput(t *testing.T) {
	skipOnWindows(t)
	e := NewDirectExecutorWithConfig(ExecutorConfig{MaxOutputBytes: 10})

	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "printf 0123456789abcdef"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789", res.Stdout)
	assert.True(t, res.Truncated)
	assert.Equal(t, int64(6), res.TruncatedBytes)
}

// recordingExecutor never spawns anything.
type recordingExecutor struct {
	calls []Command
}

func (r *recordingExecutor) Execute(_ context.Context, cmd Command) (*ExecutionResult, error) {
	r.calls = append(r.calls, cmd)
	return &ExecutionResult{ExitCode: 0, Stdout: "ok"}, nil
}

func (r *recordingExecutor) Validate(Command) error { return nil }

// killedExecutor reports every command as killed by a timeout.
type killedExecutor struct{}

func (killedExecutor) Execute(_ context.Context, cmd Command) (*ExecutionResult, error) {
	return &ExecutionResult{ExitCode: -1, Killed: true, KillReason: "timeout after 1s"}, nil
}

func (killedExecutor) Validate(Command) error { return nil }

// observeAudit routes every logger into an in-memory observer.
func observeAudit(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(logging.Replace(zap.New(core)))
	return logs
}

func TestAllowlistRejectsWithoutSpawning(t *testing.T) {
	inner := &recordingExecutor{}
	a := NewAllowlistExecutor(inner, []string{"which", "claude"})

	logs := observeAudit(t)

	_, err := a.Execute(context.Background(), Command{Binary: "rm", Arguments: []string{"-rf", "/"}})
	var v *ViolationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, ViolationCommand, v.Kind)
	assert.Equal(t, "Command 'rm' is not in the allowlist", err.Error())
	assert.Empty(t, inner.calls)
	blocked := logs.FilterField(zap.String("event", string(logging.AuditSafetyBlock))).All()
	require.Len(t, blocked, 1)
	assert.Equal(t, "rm -rf /", blocked[0].ContextMap()["action"])
}

func TestAllowlistAuditsKilledCommandAsFailure(t *testing.T) {
	logs := observeAudit(t)
	inner := &killedExecutor{}
	a := NewAllowlistExecutor(inner, []string{"sleep"})

	res, err := a.Execute(context.Background(), Command{Binary: "sleep", Arguments: []string{"5"}})
	require.NoError(t, err)
	assert.True(t, res.Killed)

	failed := logs.FilterField(zap.String("event", string(logging.AuditToolError))).All()
	require.Len(t, failed, 1)
	assert.Equal(t, "timeout after 1s", failed[0].ContextMap()["error"])
	assert.Empty(t, logs.FilterField(zap.String("event", string(logging.AuditToolComplete))).All())
}

func TestAllowlistMatchesLiterally(t *testing.T) {
	inner := &recordingExecutor{}
	a := NewAllowlistExecutor(inner, []string{"claude"})

	for _, bin := range []string{"/usr/bin/claude", "claude ", "Claude", "./claude"} {
		_, err := a.Execute(context.Background(), Command{Binary: bin})
		assert.Error(t, err, bin)
	}
	assert.Empty(t, inner.calls)

	res, err := a.Execute(context.Background(), Command{Binary: "claude", Arguments: []string{"--version"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Stdout)
	require.Len(t, inner.calls, 1)
}

func TestPathGuard(t *testing.T) {
	home := t.TempDir()
	g := NewPathGuard(home, []string{"~/.config/agent-runner/", "~/.local/bin/"})

	cases := []struct {
		path string
		ok   bool
	}{
		{"~/.config/agent-runner/models/x.toml", true},
		{"~/.local/bin/wrapper", true},
		{filepath.Join(home, ".config", "agent-runner", "a.yaml"), true},
		{"/etc/passwd", false},
		{"~/.config/agent-runner", false},
		{"~/.config/agent-runner/../other/x", false},
		{"~/.config/agent-runner-evil/x", false},
		{"relative/x", false},
		{"~/.bashrc", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			_, err := g.Resolve(tc.path)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			var v *ViolationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, ViolationPath, v.Kind)
		})
	}
}

func TestPathGuardWriteRoundTrip(t *testing.T) {
	home := t.TempDir()
	g := NewPathGuard(home, []string{"~/.config/agent-runner/"})

	resolved, err := g.WriteFile("~/.config/agent-runner/models/x.toml", "C")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "agent-runner", "models", "x.toml"), resolved)

	data, err := os.ReadFile(resolved)
	require.NoError(t, err)
	assert.Equal(t, "C", string(data))
}

func TestPathGuardRejectsWithoutWriting(t *testing.T) {
	home := t.TempDir()
	g := NewPathGuard(home, []string{"~/.config/agent-runner/"})

	_, err := g.WriteFile("/etc/passwd", "x")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Write path '/etc/passwd'"))

	var v *ViolationError
	assert.True(t, errors.As(err, &v))
}

func TestPathGuardRejectsSymlinkEscape(t *testing.T) {
	skipOnWindows(t)
	home := t.TempDir()
	outside := t.TempDir()
	root := filepath.Join(home, ".config", "agent-runner")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing"), filepath.Join(root, "dangling")))

	g := NewPathGuard(home, []string{"~/.config/agent-runner/"})

	for _, path := range []string{
		"~/.config/agent-runner/link/escaped.txt",
		"~/.config/agent-runner/link/deeper/escaped.txt",
		"~/.config/agent-runner/dangling",
	} {
		_, err := g.WriteFile(path, "X")
		var v *ViolationError
		require.ErrorAs(t, err, &v, path)
		assert.Equal(t, ViolationPath, v.Kind)
	}

	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPathGuardFollowsSymlinkInsideRoot(t *testing.T) {
	skipOnWindows(t)
	home := t.TempDir()
	root := filepath.Join(home, ".config", "agent-runner")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "models"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(root, "models"), filepath.Join(root, "current")))

	g := NewPathGuard(home, []string{"~/.config/agent-runner/"})

	_, err := g.WriteFile("~/.config/agent-runner/current/x.toml", "C")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, "models", "x.toml"))
	require.NoError(t, err)
	assert.Equal(t, "C", string(data))
}
