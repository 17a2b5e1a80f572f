package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agentrunner/internal/logging"
)

// =============================================================================
// SETUP SESSION LOG
// =============================================================================

// Session is one run of the setup orchestrator.
type Session struct {
	ID        string     `json:"id"`
	Scope     string     `json:"scope"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Outcome   string     `json:"outcome,omitempty"`
	TurnCount int        `json:"turn_count"`
}

// Turn is one completed reasoning round-trip within a session.
type Turn struct {
	SessionID     string    `json:"session_id"`
	TurnNumber    int       `json:"turn_number"`
	Prompt        string    `json:"prompt"`
	Response      string    `json:"response"`
	EventsEmitted string    `json:"events_emitted"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateSession records the start of a session. scope is "full" or the
// name of the single tool being configured.
func (g *MemoryGraph) CreateSession(id, scope string) error {
	logging.StoreDebug("Creating session %s (scope=%s)", id, scope)

	_, err := g.db.Exec(
		"INSERT INTO setup_sessions (id, started_at, scope) VALUES (?, ?, ?)",
		id, now(), scope,
	)
	if err != nil {
		logging.StoreError("Failed to create session %s: %v", id, err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// RecordTurn appends a turn and advances the session's turn_count.
// Re-recording an existing (session, turn) pair is a no-op.
func (g *MemoryGraph) RecordTurn(sessionID string, turnNumber int, prompt, response, eventsJSON string) error {
	timer := logging.StartTimer(logging.CategoryStore, "RecordTurn")
	defer timer.Stop()

	tx, err := g.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin turn transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO setup_turns (session_id, turn_number, agent_prompt, agent_response, events_emitted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, turnNumber, prompt, response, eventsJSON, now(),
	); err != nil {
		logging.StoreError("Failed to record turn %d for %s: %v", turnNumber, sessionID, err)
		return fmt.Errorf("failed to record turn: %w", err)
	}

	if _, err := tx.Exec(
		"UPDATE setup_sessions SET turn_count = MAX(COALESCE(turn_count, 0), ?) WHERE id = ?",
		turnNumber, sessionID,
	); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

// EndSession sets ended_at and outcome. Only the first call for a session
// has any effect.
func (g *MemoryGraph) EndSession(id, outcome string) error {
	res, err := g.db.Exec(
		"UPDATE setup_sessions SET ended_at = ?, outcome = ? WHERE id = ? AND ended_at IS NULL",
		now(), outcome, id,
	)
	if err != nil {
		logging.StoreError("Failed to end session %s: %v", id, err)
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logging.StoreWarn("Session %s already ended or unknown; outcome %s not recorded", id, outcome)
	}
	return nil
}

const sessionColumns = "id, COALESCE(scope, ''), started_at, ended_at, COALESCE(outcome, ''), COALESCE(turn_count, 0)"

// GetSession returns the session with id, or nil when there is none.
func (g *MemoryGraph) GetSession(id string) (*Session, error) {
	row := g.db.QueryRow("SELECT "+sessionColumns+" FROM setup_sessions WHERE id = ?", id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// ListSessions returns the most recently started sessions first.
func (g *MemoryGraph) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := g.db.Query(
		"SELECT "+sessionColumns+" FROM setup_sessions ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetTurns returns a session's turns in turn order.
func (g *MemoryGraph) GetTurns(sessionID string) ([]Turn, error) {
	rows, err := g.db.Query(
		`SELECT session_id, turn_number, agent_prompt, agent_response, events_emitted, created_at
		 FROM setup_turns WHERE session_id = ? ORDER BY turn_number`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var created string
		if err := rows.Scan(&t.SessionID, &t.TurnNumber, &t.Prompt, &t.Response, &t.EventsEmitted, &created); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.CreatedAt = parseTime(created)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func scanSession(r rowScanner) (Session, error) {
	var (
		s       Session
		started string
		ended   sql.NullString
	)
	if err := r.Scan(&s.ID, &s.Scope, &started, &ended, &s.Outcome, &s.TurnCount); err != nil {
		return Session{}, err
	}
	s.StartedAt = parseTime(started)
	if ended.Valid {
		t := parseTime(ended.String)
		s.EndedAt = &t
	}
	return s, nil
}
