package logging

import (
	"time"

	"go.uber.org/zap"
)

// AuditEventType names a structured audit record.
type AuditEventType string

const (
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"
	AuditTurnStart    AuditEventType = "turn_start"
	AuditTurnEnd      AuditEventType = "turn_end"

	AuditLLMCall  AuditEventType = "llm_call"
	AuditLLMError AuditEventType = "llm_error"

	AuditSafetyAllow AuditEventType = "safety_allow"
	AuditSafetyBlock AuditEventType = "safety_block"

	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"
	AuditFileWrite    AuditEventType = "file_write"
)

// AuditLogger writes one structured entry per audit event under the audit
// category. Every entry carries the event type and, when scoped, the session.
type AuditLogger struct {
	sessionID string
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithSession creates an audit logger scoped to a setup session.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

func (a *AuditLogger) log(event AuditEventType, msg string, fields ...zap.Field) {
	if !IsCategoryEnabled(CategoryAudit) {
		return
	}
	base := []zap.Field{zap.String("event", string(event))}
	if a.sessionID != "" {
		base = append(base, zap.String("session", a.sessionID))
	}
	Get(CategoryAudit).Zap().Info(msg, append(base, fields...)...)
}

// SessionStart logs session start.
func (a *AuditLogger) SessionStart(target string) {
	a.log(AuditSessionStart, "session started", zap.String("target", target))
}

// SessionEnd logs session end with its outcome.
func (a *AuditLogger) SessionEnd(outcome string, turnCount int, dur time.Duration) {
	a.log(AuditSessionEnd, "session ended",
		zap.String("outcome", outcome),
		zap.Int("turn_count", turnCount),
		zap.Int64("dur_ms", dur.Milliseconds()))
}

// TurnStart logs the start of a reasoning turn.
func (a *AuditLogger) TurnStart(turn int, inputLen int) {
	a.log(AuditTurnStart, "turn started", zap.Int("turn", turn), zap.Int("input_len", inputLen))
}

// TurnEnd logs the end of a reasoning turn.
func (a *AuditLogger) TurnEnd(turn int, actions int, done bool) {
	a.log(AuditTurnEnd, "turn ended", zap.Int("turn", turn), zap.Int("actions", actions), zap.Bool("done", done))
}

// LLMCall logs a reasoning-step round trip.
func (a *AuditLogger) LLMCall(model string, dur time.Duration, err error) {
	if err != nil {
		a.log(AuditLLMError, "llm call failed", zap.String("model", model), zap.Int64("dur_ms", dur.Milliseconds()), zap.Error(err))
		return
	}
	a.log(AuditLLMCall, "llm call", zap.String("model", model), zap.Int64("dur_ms", dur.Milliseconds()))
}

// SafetyCheck logs a sandbox allow/block decision.
func (a *AuditLogger) SafetyCheck(action string, allowed bool, reason string) {
	event := AuditSafetyAllow
	if !allowed {
		event = AuditSafetyBlock
	}
	a.log(event, "sandbox decision",
		zap.String("action", action),
		zap.Bool("allowed", allowed),
		zap.String("reason", reason))
}

// ToolExec logs a completed sandboxed command.
func (a *AuditLogger) ToolExec(binary string, exitCode int, dur time.Duration, errMsg string) {
	if errMsg != "" {
		a.log(AuditToolError, "command failed", zap.String("binary", binary), zap.String("error", errMsg))
		return
	}
	a.log(AuditToolComplete, "command completed",
		zap.String("binary", binary),
		zap.Int("exit_code", exitCode),
		zap.Int64("dur_ms", dur.Milliseconds()))
}

// FileWrite logs a sandboxed config write.
func (a *AuditLogger) FileWrite(path string, size int) {
	a.log(AuditFileWrite, "file written", zap.String("path", path), zap.Int("size", size))
}
