package agent

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentrunner/internal/config"
	"agentrunner/internal/types"
)

type call struct {
	name string
	args []string
}

// scripted replays canned replies and records every invocation.
type scripted struct {
	calls   []call
	replies []reply
}

type reply struct {
	stdout, stderr string
	exitCode       int
	err            error
}

func (s *scripted) run(_ context.Context, name string, args []string) ([]byte, []byte, int, error) {
	s.calls = append(s.calls, call{name: name, args: append([]string(nil), args...)})
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return []byte(r.stdout), []byte(r.stderr), r.exitCode, r.err
}

func newScripted(t *testing.T, replies ...reply) (*Client, *scripted) {
	t.Helper()
	s := &scripted{replies: replies}
	c := NewClient(config.DefaultConfig().Agent, 0, "SYSTEM")
	c.run = s.run
	return c, s
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(config.AgentConfig{}, 0, "")
	assert.Equal(t, "claude", c.command)
	assert.Equal(t, "claude-sonnet-4-6", c.model)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, []string{"Read", "Bash", "Glob", "Grep"}, c.allowedTools)
	assert.Empty(t, c.SessionID())
}

func TestFirstTurnCarriesSystemPrompt(t *testing.T) {
	c, s := newScripted(t, reply{stdout: `{"actions":[],"done":true}`})

	res, err := c.SendTurn(context.Background(), "hello", types.AgentTurnSchema)
	require.NoError(t, err)
	assert.True(t, res.Done)

	require.Len(t, s.calls, 1)
	args := s.calls[0].args
	assert.Equal(t, "claude", s.calls[0].name)
	assert.Equal(t, []string{
		"-p", "--output-format", "json", "--model", "claude-sonnet-4-6",
		"--allowedTools", "Read,Bash,Glob,Grep", "--no-session-persistence",
		"--json-schema", types.AgentTurnSchema,
	}, args[:len(args)-1])
	assert.Equal(t, "SYSTEM\n\n---\n\nhello", args[len(args)-1])
	assert.NotContains(t, args, "--resume")
}

func TestContinuationHandleResumes(t *testing.T) {
	c, s := newScripted(t,
		reply{stdout: `{"actions":[],"done":false}`, stderr: "Starting...\nSession: abc-123\nReady."},
		reply{stdout: `{"actions":[],"done":true}`},
	)

	_, err := c.SendTurn(context.Background(), "first", "{}")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", c.SessionID())

	_, err = c.SendTurn(context.Background(), "second", "{}")
	require.NoError(t, err)

	args := s.calls[1].args
	assert.Equal(t, "second", args[len(args)-1])
	assert.Equal(t, []string{"--resume", "abc-123"}, args[len(args)-3:len(args)-1])
}

func TestWithoutHandleEveryTurnIsFresh(t *testing.T) {
	c, s := newScripted(t, reply{stdout: `{"actions":[],"done":false}`})

	for i := 0; i < 2; i++ {
		_, err := c.SendTurn(context.Background(), "msg", "{}")
		require.NoError(t, err)
	}
	for _, cl := range s.calls {
		assert.NotContains(t, cl.args, "--resume")
		assert.True(t, strings.HasPrefix(cl.args[len(cl.args)-1], "SYSTEM"))
	}
}

func TestExtractSessionID(t *testing.T) {
	assert.Equal(t, "abc-123-def", extractSessionID("Starting session...\nSession: abc-123-def\nReady."))
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000",
		extractSessionID("session_id: 550e8400-e29b-41d4-a716-446655440000\n"))
	assert.Empty(t, extractSessionID("no session info here"))
}

func TestNonZeroExitIsTransportError(t *testing.T) {
	c, _ := newScripted(t, reply{
		stderr:   strings.Repeat("x", 900),
		exitCode: 2,
		err:      &exec.ExitError{},
	})

	_, err := c.SendTurn(context.Background(), "m", "{}")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 2, terr.ExitCode)
	assert.Len(t, terr.Stderr, 500)
}

func TestSpawnFailureIsTransportError(t *testing.T) {
	c, _ := newScripted(t, reply{err: errors.New("executable file not found")})

	_, err := c.SendTurn(context.Background(), "m", "{}")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, -1, terr.ExitCode)
}

func TestMalformedReplyIsParseError(t *testing.T) {
	raw := "this is not json " + strings.Repeat("y", 400)
	c, _ := newScripted(t, reply{stdout: raw})

	_, err := c.SendTurn(context.Background(), "m", "{}")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, raw[:200], perr.Snippet)
	assert.Contains(t, err.Error(), "Raw output:")
}

func TestUnknownActionIsParseError(t *testing.T) {
	c, _ := newScripted(t, reply{stdout: `{"actions":[{"type":"reboot"}],"done":false}`})

	_, err := c.SendTurn(context.Background(), "m", "{}")
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestEnvelopeUnwrap(t *testing.T) {
	cases := map[string]string{
		"structured_output": `{"type":"result","structured_output":{"actions":[{"type":"status","message":"s"}],"done":true}}`,
		"result object":     `{"type":"result","result":{"actions":[],"done":true}}`,
		"result string":     `{"type":"result","result":"{\"actions\":[],\"done\":true}"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := parseTurn([]byte(raw))
			require.NoError(t, err)
			assert.True(t, res.Done)
		})
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "fake-claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestTimeoutKillsProcess(t *testing.T) {
	script := writeScript(t, "exec sleep 5")
	c := NewClient(config.AgentConfig{Command: script}, 100*time.Millisecond, "")

	start := time.Now()
	_, err := c.SendTurn(context.Background(), "m", "{}")
	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 100*time.Millisecond, terr.After)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRealProcessRoundTrip(t *testing.T) {
	script := writeScript(t, `echo "Session: sid-9" >&2
echo '{"actions":[{"type":"complete","summary":"ok","items":[]}],"done":false}'`)
	c := NewClient(config.AgentConfig{Command: script}, 5*time.Second, "")

	res, err := c.SendTurn(context.Background(), "m", "{}")
	require.NoError(t, err)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, types.ActionComplete, res.Actions[0].Type())
	assert.Equal(t, "sid-9", c.SessionID())
}
