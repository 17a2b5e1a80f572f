// Package agent wraps the external reasoning step: one `claude -p` subprocess
// per turn, constrained by a JSON schema and resumed through a continuation
// handle scraped from its diagnostic output.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"agentrunner/internal/config"
	"agentrunner/internal/logging"
	"agentrunner/internal/types"
)

// DefaultTimeout bounds one reasoning round trip.
const DefaultTimeout = 120 * time.Second

// TurnSender performs one reasoning round trip.
type TurnSender interface {
	SendTurn(ctx context.Context, message, schema string) (*types.TurnResult, error)
}

// runFunc executes name with args and returns the captured output. exitCode
// is meaningful only when err is nil or wraps *exec.ExitError.
type runFunc func(ctx context.Context, name string, args []string) (stdout, stderr []byte, exitCode int, err error)

// Client invokes the reasoning CLI. A Client belongs to exactly one setup
// session and is not safe for concurrent use.
type Client struct {
	command      string
	model        string
	allowedTools []string
	timeout      time.Duration
	systemPrompt string

	sessionID string
	run       runFunc
	audit     *logging.AuditLogger
}

// NewClient creates a client for one setup session. systemPrompt is prepended
// to the first message only.
func NewClient(cfg config.AgentConfig, timeout time.Duration, systemPrompt string) *Client {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	tools := cfg.AllowedTools
	if len(tools) == 0 {
		tools = []string{"Read", "Bash", "Glob", "Grep"}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		command:      command,
		model:        model,
		allowedTools: tools,
		timeout:      timeout,
		systemPrompt: systemPrompt,
		run:          runProcess,
		audit:        logging.Audit(),
	}
}

// WithAudit scopes audit records to a setup session.
func (c *Client) WithAudit(a *logging.AuditLogger) *Client {
	c.audit = a
	return c
}

// SessionID returns the continuation handle, or "" if none was seen yet.
func (c *Client) SessionID() string {
	return c.sessionID
}

// SendTurn sends message and returns the validated reply. The first call of a
// session carries the system prompt; later calls resume the continuation
// handle when one has been recorded. SendTurn never retries.
func (c *Client) SendTurn(ctx context.Context, message, schema string) (*types.TurnResult, error) {
	args := c.buildArgs(message, schema)

	timer := logging.StartTimer(logging.CategoryAgent, "reasoning turn")
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logging.AgentDebug("invoking %s (model=%s, resume=%q, prompt_len=%d)", c.command, c.model, c.sessionID, len(message))
	stdout, stderr, exitCode, err := c.run(ctx, c.command, args)
	elapsed := timer.StopWithThreshold(c.timeout / 2)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			terr := &TimeoutError{After: c.timeout}
			c.audit.LLMCall(c.model, elapsed, terr)
			return nil, terr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			exitCode = -1
		}
		terr := &TransportError{
			ExitCode: exitCode,
			Stderr:   truncate(string(stderr), 500),
			Err:      err,
		}
		c.audit.LLMCall(c.model, elapsed, terr)
		return nil, terr
	}

	result, err := parseTurn(stdout)
	if err != nil {
		c.audit.LLMCall(c.model, elapsed, err)
		return nil, err
	}

	if sid := extractSessionID(string(stderr)); sid != "" {
		if sid != c.sessionID {
			logging.AgentDebug("continuation handle recorded: %s", sid)
		}
		c.sessionID = sid
	}

	c.audit.LLMCall(c.model, elapsed, nil)
	logging.Agent("turn reply: %d actions, done=%v", len(result.Actions), result.Done)
	return result, nil
}

func (c *Client) buildArgs(message, schema string) []string {
	args := []string{
		"-p",
		"--output-format", "json",
		"--model", c.model,
		"--allowedTools", strings.Join(c.allowedTools, ","),
		"--no-session-persistence",
		"--json-schema", schema,
	}

	prompt := message
	if c.sessionID != "" {
		args = append(args, "--resume", c.sessionID)
	} else {
		prompt = c.systemPrompt + "\n\n---\n\n" + message
	}
	return append(args, prompt)
}

// parseTurn decodes the CLI reply. The CLI may wrap the schema-constrained
// object in a result envelope, carried either as "structured_output" or as a
// JSON string in "result".
func parseTurn(stdout []byte) (*types.TurnResult, error) {
	body := bytes.TrimSpace(stdout)
	if len(body) == 0 {
		return nil, &ParseError{Err: errors.New("empty response")}
	}

	result, err := types.DecodeTurn(unwrapEnvelope(body))
	if err != nil {
		return nil, &ParseError{Snippet: truncate(string(body), 200), Err: err}
	}
	return result, nil
}

func unwrapEnvelope(body []byte) []byte {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return body
	}
	if _, ok := top["actions"]; ok {
		return body
	}
	if inner, ok := top["structured_output"]; ok && isObject(inner) {
		return inner
	}
	if inner, ok := top["result"]; ok {
		if isObject(inner) {
			return inner
		}
		var text string
		if err := json.Unmarshal(inner, &text); err == nil && isObject([]byte(strings.TrimSpace(text))) {
			return []byte(strings.TrimSpace(text))
		}
	}
	return body
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// extractSessionID scans diagnostic output for "Session: <id>" or
// "session_id: <id>". Absence is not an error.
func extractSessionID(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, "Session: "); ok {
			return strings.TrimSpace(rest)
		}
		if rest, ok := strings.CutPrefix(trimmed, "session_id: "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func runProcess(ctx context.Context, name string, args []string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return stdout.Bytes(), stderr.Bytes(), exitCode, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), stderr.Bytes(), exitCode, nil
}

// truncate keeps at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
